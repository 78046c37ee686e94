package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"dropwatch/internal/browser"
	"dropwatch/internal/catalog"
	"dropwatch/internal/inventory"
	"dropwatch/internal/selector"
	"dropwatch/internal/session"
	"dropwatch/internal/status"

	"github.com/stretchr/testify/require"
)

type loopCatalog struct {
	campaigns []catalog.Campaign
	errs      []error
	calls     int
}

func (c *loopCatalog) FetchCampaign(ctx context.Context) (catalog.Campaign, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return catalog.Campaign{}, c.errs[i]
	}
	if i >= len(c.campaigns) {
		i = len(c.campaigns) - 1
	}
	return c.campaigns[i], nil
}

func (c *loopCatalog) IsStreamerLive(ctx context.Context, name string) (*bool, error) {
	return nil, nil
}

type loopInv struct {
	progress    []inventory.Progress
	progressErr error
	claims      []inventory.ClaimRecord
	calls       int
	claimCalls  int
	claimErr    error
}

func (s *loopInv) FetchProgress(ctx context.Context) (inventory.Progress, error) {
	if s.progressErr != nil {
		return nil, s.progressErr
	}
	i := s.calls
	s.calls++
	if i >= len(s.progress) {
		i = len(s.progress) - 1
	}
	if i < 0 {
		return inventory.Progress{}, nil
	}
	return s.progress[i], nil
}

func (s *loopInv) FetchRecentClaims(ctx context.Context) ([]inventory.ClaimRecord, error) {
	return s.claims, nil
}

func (s *loopInv) ClaimReady(ctx context.Context) (int, error) {
	s.claimCalls++
	if s.claimErr != nil {
		return 0, s.claimErr
	}
	return 0, nil
}

type scriptRunner struct {
	results []session.Result
	calls   []selector.WorkItem
}

func (r *scriptRunner) Run(ctx context.Context, item selector.WorkItem, completed map[string]struct{}) session.Result {
	i := len(r.calls)
	r.calls = append(r.calls, item)
	if i >= len(r.results) {
		i = len(r.results) - 1
	}
	return r.results[i]
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Send(title, message string) {
	n.messages = append(n.messages, message)
}

func liveStreamer(name, item string) catalog.StreamerDrop {
	return catalog.StreamerDrop{Streamer: name, Item: item, IsLive: true}
}

func TestLoopExitsWhenCampaignNotStarted(t *testing.T) {
	start := time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC)
	cat := &loopCatalog{campaigns: []catalog.Campaign{
		{NotStarted: true, StartTime: &start},
	}}
	runner := &scriptRunner{results: []session.Result{{}}}
	notifier := &recordingNotifier{}

	loop := New(cat, &loopInv{}, runner, nil, notifier, Config{Backoff: time.Millisecond})
	err := loop.Run(context.Background())

	require.NoError(t, err)
	require.Empty(t, runner.calls)
	require.Len(t, notifier.messages, 1)
	require.Contains(t, notifier.messages[0], "starts")
}

func TestLoopDiagnosticStaysAliveBeforeStart(t *testing.T) {
	cat := &loopCatalog{campaigns: []catalog.Campaign{{NotStarted: true}}}
	runner := &scriptRunner{results: []session.Result{{}}}

	loop := New(cat, &loopInv{}, runner, nil, nil, Config{
		Backoff:    time.Millisecond,
		Diagnostic: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := loop.Run(ctx)

	require.NoError(t, err)
	require.Empty(t, runner.calls)
	require.Greater(t, cat.calls, 1)
}

func TestLoopRunsStreamerSessionThenExits(t *testing.T) {
	cat := &loopCatalog{campaigns: []catalog.Campaign{
		{Streamers: []catalog.StreamerDrop{liveStreamer("Alice", "Alice Hat")}},
	}}
	inv := &loopInv{progress: []inventory.Progress{{}}}
	runner := &scriptRunner{results: []session.Result{
		{Outcome: session.OutcomeCompleted},
	}}
	notifier := &recordingNotifier{}
	store := status.NewStore()

	loop := New(cat, inv, runner, store, notifier, Config{Backoff: time.Millisecond})
	err := loop.Run(context.Background())

	// cycle 1 runs Alice's session; cycle 2 finds nobody actionable and
	// no general drops, which is terminal success
	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	require.Equal(t, "Alice", runner.calls[0].Target)
	require.False(t, runner.calls[0].General)
	require.Contains(t, loop.Completed(), "alice")
	require.GreaterOrEqual(t, inv.claimCalls, 1)
}

func TestLoopRunsGeneralSessionThenExits(t *testing.T) {
	campaign := catalog.Campaign{
		General: []catalog.GeneralDrop{
			{Item: "Garage Door", Alias: "GARAGE", Hours: 8},
		},
		Streamers: []catalog.StreamerDrop{liveStreamer("Alice", "Alice Hat")},
	}
	cat := &loopCatalog{campaigns: []catalog.Campaign{campaign}}
	inv := &loopInv{progress: []inventory.Progress{
		{"Alice Hat": 100, "Garage Door": 10},
		{"Alice Hat": 100, "Garage Door": 100},
	}}
	runner := &scriptRunner{results: []session.Result{
		{Outcome: session.OutcomeCompleted},
	}}
	notifier := &recordingNotifier{}

	loop := New(cat, inv, runner, nil, notifier, Config{Backoff: time.Millisecond})
	err := loop.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	require.True(t, runner.calls[0].General)
	require.Equal(t, "Garage Door", runner.calls[0].Target)
	require.Equal(t, "Alice", runner.calls[0].HostStreamer)
}

func TestLoopGeneralAbsenceCountsAsComplete(t *testing.T) {
	// a general entry that never appears in a populated inventory does
	// not keep the loop alive forever
	campaign := catalog.Campaign{
		General: []catalog.GeneralDrop{
			{Item: "Phantom Item", Alias: "PHANTOM", Hours: 4},
		},
	}
	cat := &loopCatalog{campaigns: []catalog.Campaign{campaign}}
	inv := &loopInv{progress: []inventory.Progress{{"Old Poster": 100}}}
	runner := &scriptRunner{results: []session.Result{{}}}
	notifier := &recordingNotifier{}

	loop := New(cat, inv, runner, nil, notifier, Config{Backoff: time.Millisecond})
	err := loop.Run(context.Background())

	require.NoError(t, err)
	require.Empty(t, runner.calls)
}

func TestLoopEmptyInventoryIsNotTerminal(t *testing.T) {
	// an empty progress read is indistinguishable from a failed scrape;
	// it must never satisfy the terminal all-generals-complete check
	campaign := catalog.Campaign{
		General: []catalog.GeneralDrop{
			{Item: "Garage Door", Alias: "GARAGE", Hours: 8},
		},
		Streamers: []catalog.StreamerDrop{
			{Streamer: "Alice", Item: "Alice Hat", IsLive: false},
		},
	}
	cat := &loopCatalog{campaigns: []catalog.Campaign{campaign}}
	inv := &loopInv{progress: []inventory.Progress{{}}}
	runner := &scriptRunner{results: []session.Result{{}}}
	notifier := &recordingNotifier{}

	loop := New(cat, inv, runner, nil, notifier, Config{Backoff: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := loop.Run(ctx)

	require.NoError(t, err)
	require.Empty(t, runner.calls)
	require.Greater(t, cat.calls, 1)
	require.NotContains(t, notifier.messages, "All general drops are complete.")
}

func TestLoopTransientInventoryFailureIsNotTerminal(t *testing.T) {
	campaign := catalog.Campaign{
		General: []catalog.GeneralDrop{
			{Item: "Garage Door", Alias: "GARAGE", Hours: 8},
		},
		Streamers: []catalog.StreamerDrop{
			{Streamer: "Alice", Item: "Alice Hat", IsLive: false},
		},
	}
	cat := &loopCatalog{campaigns: []catalog.Campaign{campaign}}
	inv := &loopInv{progressErr: errors.New("navigation timeout")}
	runner := &scriptRunner{results: []session.Result{{}}}
	notifier := &recordingNotifier{}

	loop := New(cat, inv, runner, nil, notifier, Config{Backoff: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := loop.Run(ctx)

	// the failed scrape backs off and retries instead of ending the run
	require.NoError(t, err)
	require.Empty(t, runner.calls)
	require.Greater(t, cat.calls, 1)
	require.NotContains(t, notifier.messages, "All general drops are complete.")
}

func TestLoopFatalWhenRunnerLosesSurface(t *testing.T) {
	cat := &loopCatalog{campaigns: []catalog.Campaign{
		{Streamers: []catalog.StreamerDrop{liveStreamer("Alice", "Alice Hat")}},
	}}
	inv := &loopInv{progress: []inventory.Progress{{}}}
	runner := &scriptRunner{results: []session.Result{
		{Outcome: session.OutcomeFailed, Fatal: true, Err: browser.ErrSurfaceClosed},
	}}

	loop := New(cat, inv, runner, nil, nil, Config{Backoff: time.Millisecond})
	err := loop.Run(context.Background())

	require.ErrorIs(t, err, browser.ErrSurfaceClosed)
}

func TestLoopFatalWhenInventoryGone(t *testing.T) {
	cat := &loopCatalog{campaigns: []catalog.Campaign{
		{Streamers: []catalog.StreamerDrop{liveStreamer("Alice", "Alice Hat")}},
	}}
	inv := &loopInv{progressErr: browser.ErrSurfaceClosed}
	runner := &scriptRunner{results: []session.Result{{}}}

	loop := New(cat, inv, runner, nil, nil, Config{Backoff: time.Millisecond})
	err := loop.Run(context.Background())

	require.ErrorIs(t, err, browser.ErrSurfaceClosed)
	require.Empty(t, runner.calls)
}

func TestLoopSwitchReselectsWithoutBackoff(t *testing.T) {
	campaign := catalog.Campaign{
		General: []catalog.GeneralDrop{
			{Item: "Garage Door", Alias: "GARAGE", Hours: 8},
		},
		Streamers: []catalog.StreamerDrop{liveStreamer("Alice", "Alice Hat")},
	}
	cat := &loopCatalog{campaigns: []catalog.Campaign{campaign}}
	// cycle 1: Alice complete, general in progress -> general session,
	// interrupted with a switch request as Alice's drop resumes
	// cycle 2: Alice progressing -> her session runs and completes
	// cycle 3: everything done
	inv := &loopInv{progress: []inventory.Progress{
		{"Alice Hat": 100, "Garage Door": 10},
		{"Alice Hat": 40, "Garage Door": 10},
		{"Alice Hat": 100, "Garage Door": 100},
	}}
	runner := &scriptRunner{results: []session.Result{
		{Outcome: session.OutcomeInterrupted, Switch: true},
		{Outcome: session.OutcomeCompleted},
	}}

	loop := New(cat, inv, runner, nil, nil, Config{Backoff: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := loop.Run(ctx)

	// a one-minute backoff would trip the test timeout if the switch
	// path slept between sessions
	require.NoError(t, err)
	require.Len(t, runner.calls, 2)
	require.True(t, runner.calls[0].General)
	require.Equal(t, "Alice", runner.calls[1].Target)
}

func TestLoopFailedSessionBacksOffBeforeRepick(t *testing.T) {
	cat := &loopCatalog{campaigns: []catalog.Campaign{
		{Streamers: []catalog.StreamerDrop{liveStreamer("Alice", "Alice Hat")}},
	}}
	inv := &loopInv{progress: []inventory.Progress{{}}}
	runner := &scriptRunner{results: []session.Result{
		{Outcome: session.OutcomeFailed, Err: errors.New("stream not found")},
		{Outcome: session.OutcomeCompleted},
	}}

	backoff := 30 * time.Millisecond
	loop := New(cat, inv, runner, nil, nil, Config{Backoff: backoff})

	started := time.Now()
	err := loop.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, runner.calls, 2)
	// the failed open must not re-pick Alice back to back
	require.GreaterOrEqual(t, time.Since(started), backoff)
}

func TestLoopPublishesSnapshot(t *testing.T) {
	campaign := catalog.Campaign{
		General: []catalog.GeneralDrop{
			{Item: "Garage Door", Alias: "GARAGE", Hours: 8},
		},
		Streamers: []catalog.StreamerDrop{liveStreamer("Alice", "Alice Hat")},
	}
	cat := &loopCatalog{campaigns: []catalog.Campaign{campaign}}
	inv := &loopInv{progress: []inventory.Progress{
		{"Alice Hat": 40, "Garage Door": 100, "Old Poster": 100},
	}}
	runner := &scriptRunner{results: []session.Result{
		{Outcome: session.OutcomeFailed, Fatal: true, Err: browser.ErrSurfaceClosed},
	}}
	store := status.NewStore()

	loop := New(cat, inv, runner, store, nil, Config{Backoff: time.Millisecond})
	_ = loop.Run(context.Background())

	snap := store.Get()
	require.Equal(t, []status.Entry{{Name: "Alice Hat", Percent: 40}}, snap.InProgress)
	require.Equal(t, []string{"Garage Door", "Old Poster"}, snap.Completed)
	require.NotNil(t, snap.Current)
	require.Equal(t, "Alice", snap.Current.Target)
	require.False(t, snap.LastUpdated.IsZero())
}
