// Package session runs one watch session: it opens the chosen stream,
// keeps polling the inventory until the tracked reward completes, and
// reports how the session ended.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"dropwatch/internal/browser"
	"dropwatch/internal/catalog"
	"dropwatch/internal/inventory"
	"dropwatch/internal/match"
	"dropwatch/internal/selector"
)

// Catalog is the campaign surface the runner needs for live-status
// fallback checks and general-mode switch detection.
type Catalog interface {
	FetchCampaign(ctx context.Context) (catalog.Campaign, error)
	IsStreamerLive(ctx context.Context, name string) (*bool, error)
}

// StreamHost opens stream surfaces; see browser.Host.
type StreamHost interface {
	OpenStream(ctx context.Context, urlOrLookupKey string) (browser.Surface, error)
}

type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeTimedOut
	OutcomeInterrupted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeTimedOut:
		return "timed out"
	case OutcomeInterrupted:
		return "interrupted"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Result describes how a session ended. Fatal is only set together
// with OutcomeFailed and means the automation surface is gone: the
// whole workflow must stop, not reselect.
type Result struct {
	Outcome Outcome
	// Switch asks the workflow loop to re-enter streamer-priority
	// mode immediately (general mode only).
	Switch bool
	Fatal  bool
	Err    error
}

type Config struct {
	// PollInterval is the period between inventory polls.
	PollInterval time.Duration
	// LiveCheckInterval is the period between catalog live-status
	// re-checks (streamer mode) and switch checks (general mode).
	LiveCheckInterval time.Duration
	// MaxWatch bounds the total session duration.
	MaxWatch time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:      time.Minute,
		LiveCheckInterval: 2 * time.Minute,
		MaxWatch:          8 * time.Hour,
	}
}

type Runner struct {
	catalog Catalog
	inv     inventory.Source
	host    StreamHost
	cfg     Config

	// OnProgress, when set, is invoked after every poll with the
	// latest resolved percent (nil while unresolved). The workflow
	// loop uses it to refresh the presentation snapshot per tick.
	OnProgress func(percent *int)
}

func NewRunner(cat Catalog, inv inventory.Source, host StreamHost, cfg Config) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.LiveCheckInterval < cfg.PollInterval {
		cfg.LiveCheckInterval = cfg.PollInterval
	}
	if cfg.MaxWatch <= 0 {
		cfg.MaxWatch = DefaultConfig().MaxWatch
	}
	return &Runner{catalog: cat, inv: inv, host: host, cfg: cfg}
}

// Run drives one session to an end state. The completed set is read
// only, for general-mode switch detection.
func (r *Runner) Run(ctx context.Context, item selector.WorkItem, completed map[string]struct{}) Result {
	surface, err := r.openStream(ctx, item)
	if err != nil {
		slog.WarnContext(ctx, "could not open stream", "target", item.Target, "err", err)
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		err := surface.Close(closeCtx)
		if err != nil && !errors.Is(err, browser.ErrSurfaceClosed) {
			slog.Warn("closing session surface", "err", err)
		}
	}()

	slog.InfoContext(
		ctx, "watch session started",
		"target", item.Target,
		"general", item.General,
		"host", item.HostStreamer,
	)
	return r.watch(ctx, item, completed)
}

// openStream resolves the stream through the campaign detail page
// first, falling back to the direct url. Failure is non-fatal: the
// caller reselects.
func (r *Runner) openStream(ctx context.Context, item selector.WorkItem) (browser.Surface, error) {
	surface, err := r.host.OpenStream(ctx, item.HostStreamer)
	if err == nil {
		return surface, nil
	}
	if item.StreamURL == "" {
		return nil, err
	}
	slog.DebugContext(
		ctx, "detail page open failed, trying direct url",
		"target", item.HostStreamer,
		"err", err,
	)
	return r.host.OpenStream(ctx, item.StreamURL)
}

func (r *Runner) watch(ctx context.Context, item selector.WorkItem, completed map[string]struct{}) Result {
	liveEvery := int(r.cfg.LiveCheckInterval / r.cfg.PollInterval)
	if liveEvery < 1 {
		liveEvery = 1
	}

	var lastPercent *int
	waited := time.Duration(0)
	for tick := 0; ; tick++ {
		if ctx.Err() != nil {
			return Result{Outcome: OutcomeInterrupted, Err: ctx.Err()}
		}

		progress, err := r.inv.FetchProgress(ctx)
		if err != nil {
			if errors.Is(err, browser.ErrSurfaceClosed) {
				return Result{Outcome: OutcomeFailed, Fatal: true, Err: err}
			}
			slog.WarnContext(ctx, "inventory poll failed", "err", err)
		} else {
			res, ok := match.Match(item.TrackTitle, "", progress)
			if ok {
				percent := res.Percent
				lastPercent = &percent
				slog.InfoContext(
					ctx, "progress",
					"title", res.Title,
					"percent", res.Percent,
				)
				if res.Percent >= 100 {
					return r.claim(ctx)
				}
			} else if !item.General && lastPercent != nil {
				// a reward at 100% can drop out of the progress
				// list and render a claim button instead
				return r.claim(ctx)
			} else {
				slog.DebugContext(
					ctx, "no inventory entry for target",
					"target", item.Target,
					"terms", strings.Join(match.SearchTerms(item.TrackTitle, ""), ", "),
				)
			}
			if r.OnProgress != nil {
				r.OnProgress(lastPercent)
			}
		}

		if tick%liveEvery == 0 && tick > 0 {
			if interrupted := r.checkLiveAndSwitch(ctx, item, completed); interrupted != nil {
				return *interrupted
			}
		}

		if waited >= r.cfg.MaxWatch {
			slog.InfoContext(ctx, "max watch time reached", "target", item.Target)
			return Result{Outcome: OutcomeTimedOut}
		}

		select {
		case <-ctx.Done():
			return Result{Outcome: OutcomeInterrupted, Err: ctx.Err()}
		case <-time.After(r.cfg.PollInterval):
		}
		waited += r.cfg.PollInterval
	}
}

func (r *Runner) claim(ctx context.Context) Result {
	_, err := r.inv.ClaimReady(ctx)
	if err != nil {
		if errors.Is(err, browser.ErrSurfaceClosed) {
			return Result{Outcome: OutcomeFailed, Fatal: true, Err: err}
		}
		// the workflow claims again right after every session, a
		// transient claim failure here does not fail the session
		slog.WarnContext(ctx, "claim after completion failed", "err", err)
	}
	return Result{Outcome: OutcomeCompleted}
}

func (r *Runner) checkLiveAndSwitch(ctx context.Context, item selector.WorkItem, completed map[string]struct{}) *Result {
	if !item.General {
		live, err := r.catalog.IsStreamerLive(ctx, item.Target)
		if err != nil {
			slog.WarnContext(ctx, "live check failed", "streamer", item.Target, "err", err)
			return nil
		}
		if live != nil && !*live {
			slog.InfoContext(ctx, "streamer went offline, abandoning session", "streamer", item.Target)
			return &Result{Outcome: OutcomeInterrupted}
		}
		return nil
	}

	// general mode: leave immediately once any streamer-specific
	// reward can make progress again
	campaign, err := r.catalog.FetchCampaign(ctx)
	if err != nil {
		slog.WarnContext(ctx, "switch check failed", "err", err)
		return nil
	}
	progress, err := r.inv.FetchProgress(ctx)
	if err != nil {
		if errors.Is(err, browser.ErrSurfaceClosed) {
			return &Result{Outcome: OutcomeFailed, Fatal: true, Err: err}
		}
		return nil
	}
	for _, sd := range campaign.Streamers {
		if !sd.IsLive {
			continue
		}
		if _, done := completed[strings.ToLower(sd.Streamer)]; done {
			continue
		}
		res, ok := match.Match(sd.Streamer, sd.Item, progress)
		if ok && res.Percent < 100 {
			slog.InfoContext(
				ctx, "streamer drop available again, leaving general mode",
				"streamer", sd.Streamer,
				"percent", res.Percent,
			)
			return &Result{Outcome: OutcomeInterrupted, Switch: true}
		}
	}
	return nil
}
