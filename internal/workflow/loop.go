// Package workflow drives the whole run: scrape campaign and
// inventory, select work, run watch sessions, claim rewards, repeat
// until everything is complete or the process is asked to exit.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"dropwatch/internal/browser"
	"dropwatch/internal/catalog"
	"dropwatch/internal/inventory"
	"dropwatch/internal/match"
	"dropwatch/internal/notify"
	"dropwatch/internal/selector"
	"dropwatch/internal/session"
	"dropwatch/internal/status"
)

// generalAbsenceImpliesComplete preserves the legacy policy of the
// terminal check: a general entry with no inventory match at all is
// counted as complete. This can misread an entry the platform has not
// rendered yet; it is kept as an explicit, named decision pending
// validation against live behavior.
const generalAbsenceImpliesComplete = true

// SessionRunner abstracts the watch session for tests.
type SessionRunner interface {
	Run(ctx context.Context, item selector.WorkItem, completed map[string]struct{}) session.Result
}

type Config struct {
	// Backoff is the delay when nothing is actionable.
	Backoff time.Duration
	// Diagnostic keeps the loop alive on conditions that normally
	// exit the process, such as a campaign that has not started.
	Diagnostic bool
}

type Loop struct {
	catalog  session.Catalog
	inv      inventory.Source
	runner   SessionRunner
	status   *status.Store
	notifier notify.Notifier
	cfg      Config

	// completed lives for the whole process: a claimed streamer is
	// never re-selected until restart.
	completed map[string]struct{}
}

func New(
	cat session.Catalog,
	inv inventory.Source,
	runner SessionRunner,
	store *status.Store,
	notifier notify.Notifier,
	cfg Config,
) *Loop {
	if cfg.Backoff <= 0 {
		cfg.Backoff = 10 * time.Second
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if store == nil {
		store = status.NewStore()
	}
	return &Loop{
		catalog:   cat,
		inv:       inv,
		runner:    runner,
		status:    store,
		notifier:  notifier,
		cfg:       cfg,
		completed: make(map[string]struct{}),
	}
}

// Completed exposes the claimed-streamer set (read-only use).
func (l *Loop) Completed() map[string]struct{} {
	return l.completed
}

// Run executes cycles until a terminal condition. It returns nil on
// graceful endings (cancellation, campaign not started, everything
// claimed) and an error only when the automation surface is lost.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			slog.Info("exit requested, stopping workflow loop")
			return nil
		}

		campaign, err := l.catalog.FetchCampaign(ctx)
		if err != nil {
			slog.WarnContext(ctx, "campaign scrape failed", "err", err)
			if !l.sleep(ctx) {
				return nil
			}
			continue
		}

		if campaign.NotStarted {
			if l.cfg.Diagnostic {
				slog.Info("campaign not started, staying alive in diagnostic mode")
				if !l.sleep(ctx) {
					return nil
				}
				continue
			}
			msg := "The drop campaign has not started yet."
			if campaign.StartTime != nil {
				msg = fmt.Sprintf(
					"The drop campaign starts %s.",
					campaign.StartTime.Local().Format(time.RFC1123),
				)
			}
			slog.Info("campaign not started, exiting", "start_time", campaign.StartTime)
			l.notifier.Send("Drops", msg)
			return nil
		}

		progress, err := l.inv.FetchProgress(ctx)
		if err != nil {
			if errors.Is(err, browser.ErrSurfaceClosed) {
				return l.fatal(err)
			}
			slog.WarnContext(ctx, "inventory scrape failed", "err", err)
			progress = inventory.Progress{}
		}
		claims, err := l.inv.FetchRecentClaims(ctx)
		if err != nil {
			if errors.Is(err, browser.ErrSurfaceClosed) {
				return l.fatal(err)
			}
			slog.WarnContext(ctx, "recent-claim sweep failed", "err", err)
		}

		items := selector.Select(campaign, progress, l.completed, claims)

		var current *selector.WorkItem
		if len(items) > 0 {
			current = &items[0]
		}
		l.publish(campaign, progress, current)

		if current != nil && !current.General {
			err := l.runStreamerSession(ctx, *current)
			if err != nil {
				return err
			}
			continue
		}

		// defensive: a reward may have completed between cycles
		err = l.claimReady(ctx)
		if err != nil {
			return err
		}

		if l.allGeneralsComplete(campaign, progress) {
			slog.Info("all general drops complete, exiting")
			l.notifier.Send("Drops", "All general drops are complete.")
			return nil
		}

		if current != nil && current.General {
			// a Switch interruption falls through here too: the
			// next iteration re-enters streamer-priority mode
			// immediately, with no backoff
			err := l.runGeneralSession(ctx, *current)
			if err != nil {
				return err
			}
			continue
		}

		slog.Info("nothing actionable, backing off")
		if !l.sleep(ctx) {
			return nil
		}
	}
}

func (l *Loop) runStreamerSession(ctx context.Context, item selector.WorkItem) error {
	l.notifier.Send("Drops", fmt.Sprintf("Now watching %s", item.Target))
	res := l.runner.Run(ctx, item, l.completed)
	slog.Info("session ended", "target", item.Target, "outcome", res.Outcome.String())
	if res.Fatal {
		return l.fatal(res.Err)
	}

	// always sweep for claimables, whatever the session outcome
	err := l.claimReady(ctx)
	if err != nil {
		return err
	}
	if res.Outcome == session.OutcomeCompleted {
		l.completed[strings.ToLower(item.Target)] = struct{}{}
	}
	if res.Outcome == session.OutcomeFailed {
		// the stream would not open; give upstream a moment before
		// re-picking the same candidate
		l.sleep(ctx)
	}
	return nil
}

func (l *Loop) runGeneralSession(ctx context.Context, item selector.WorkItem) error {
	l.notifier.Send("Drops", fmt.Sprintf(
		"Watching %s for general drop %q", item.HostStreamer, item.Target,
	))
	res := l.runner.Run(ctx, item, l.completed)
	slog.Info(
		"general session ended",
		"target", item.Target,
		"outcome", res.Outcome.String(),
		"switch", res.Switch,
	)
	if res.Fatal {
		return l.fatal(res.Err)
	}
	if res.Outcome == session.OutcomeCompleted {
		return l.claimReady(ctx)
	}
	if res.Outcome == session.OutcomeFailed {
		l.sleep(ctx)
	}
	return nil
}

// claimReady scans for visible claim controls and activates each once.
// Zero matches is not an error; only surface loss is.
func (l *Loop) claimReady(ctx context.Context) error {
	count, err := l.inv.ClaimReady(ctx)
	if err != nil {
		if errors.Is(err, browser.ErrSurfaceClosed) {
			return l.fatal(err)
		}
		slog.WarnContext(ctx, "claim sweep failed", "err", err)
		return nil
	}
	if count > 0 {
		slog.Info("claimed rewards", "count", count)
		l.notifier.Send("Drops", fmt.Sprintf("Claimed %d reward(s)", count))
	}
	return nil
}

func (l *Loop) fatal(err error) error {
	slog.Error("automation surface lost, stopping", "err", err)
	l.notifier.Send("Drops", "Browser automation was lost; exiting.")
	if err == nil {
		err = browser.ErrSurfaceClosed
	}
	return err
}

// allGeneralsComplete is the terminal-success check. Entries that
// resolve below 100% keep the loop going; unresolved entries follow
// the generalAbsenceImpliesComplete policy.
func (l *Loop) allGeneralsComplete(campaign catalog.Campaign, progress inventory.Progress) bool {
	if len(campaign.General) == 0 {
		return true
	}
	// an empty inventory read proves nothing about completion: it is
	// what a failed or not-yet-rendered scrape looks like, and the
	// absence policy must never turn that into terminal success
	if len(progress) == 0 {
		return false
	}
	for _, g := range campaign.General {
		res, ok := match.Match(g.Item, g.Alias, progress)
		if !ok {
			slog.Debug(
				"general entry missing from inventory",
				"item", g.Item,
				"terms", strings.Join(match.SearchTerms(g.Item, g.Alias), ", "),
				"titles", len(progress),
			)
			if generalAbsenceImpliesComplete {
				continue
			}
			return false
		}
		if res.Percent < 100 {
			return false
		}
	}
	return true
}

func (l *Loop) publish(campaign catalog.Campaign, progress inventory.Progress, current *selector.WorkItem) {
	snap := status.Snapshot{}

	titles := make([]string, 0, len(progress))
	for title := range progress {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	for _, title := range titles {
		percent := progress[title]
		if percent >= 100 {
			snap.Completed = append(snap.Completed, title)
			continue
		}
		snap.InProgress = append(snap.InProgress, status.Entry{Name: title, Percent: percent})
	}

	for _, sd := range campaign.Streamers {
		if _, ok := match.Match(sd.Streamer, sd.Item, progress); !ok {
			snap.NotStarted = append(snap.NotStarted, sd.Streamer)
		}
	}
	for _, g := range campaign.General {
		if _, ok := match.Match(g.Item, g.Alias, progress); !ok {
			snap.NotStarted = append(snap.NotStarted, g.Item)
		}
	}

	if current != nil {
		snap.Current = &status.Item{
			Target:  current.Target,
			General: current.General,
			Percent: current.Percent,
			Host:    current.HostStreamer,
		}
	}
	l.status.Set(snap)
}

// sleep waits out the backoff delay; false means ctx was cancelled.
func (l *Loop) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(l.cfg.Backoff):
		return true
	}
}
