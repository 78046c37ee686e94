// Package selector turns one cycle's campaign and inventory state into
// an ordered list of actionable work items.
package selector

import (
	"log/slog"
	"sort"
	"strings"

	"dropwatch/internal/catalog"
	"dropwatch/internal/inventory"
	"dropwatch/internal/match"
	"dropwatch/lib/textutil"
)

// Priority tiers: lower is more urgent. Streamer-specific items always
// preempt general ones, so general items never share a ranking with
// streamer items; the tier only orders streamer candidates.
const (
	TierInProgress = 1
	TierUnstarted  = 2
)

// RecencyWindowDays excludes an unstarted streamer whose reward was
// claimed this recently, to avoid repeat-claim churn right after a
// campaign rotation.
const RecencyWindowDays = 21

// WorkItem is one unit of watchable work. Invariant: an item is never
// produced with a resolved percent of 100 or more; a completed reward
// triggers a claim, not a watch session.
type WorkItem struct {
	// Target is the streamer name, or the general item name.
	Target  string
	General bool
	// Priority is the streamer tier; zero for general items.
	Priority int
	// Percent is the matched inventory completion, nil when the
	// target has no inventory entry yet.
	Percent *int
	// TrackTitle is the term the session runner polls the inventory
	// for: the matched title when one resolved, else the campaign
	// alias or item name.
	TrackTitle string
	// HostStreamer/StreamURL locate the stream that hosts the watch
	// session. For streamer items the host is the target itself.
	HostStreamer string
	StreamURL    string
}

// Select ranks the actionable work. Streamer-specific candidates are
// returned whenever any exist; the general fallback item is produced
// only when they don't. An empty result means nothing is actionable
// and the caller should back off.
func Select(
	campaign catalog.Campaign,
	progress inventory.Progress,
	completed map[string]struct{},
	claims []inventory.ClaimRecord,
) []WorkItem {
	items := selectStreamers(campaign, progress, completed, claims)
	if len(items) > 0 {
		return items
	}

	general, ok := selectGeneral(campaign, progress)
	if !ok {
		return nil
	}
	return []WorkItem{general}
}

func selectStreamers(
	campaign catalog.Campaign,
	progress inventory.Progress,
	completed map[string]struct{},
	claims []inventory.ClaimRecord,
) []WorkItem {
	var items []WorkItem
	for _, sd := range campaign.Streamers {
		if !sd.IsLive {
			continue
		}
		name := strings.TrimSpace(sd.Streamer)
		if name == "" {
			continue
		}
		if _, done := completed[strings.ToLower(name)]; done {
			continue
		}

		item := WorkItem{
			Target:       name,
			TrackTitle:   name,
			HostStreamer: name,
			StreamURL:    sd.URL,
		}

		res, ok := match.Match(name, sd.Item, progress)
		switch {
		case ok && res.Percent >= 100:
			// claimable, not watchable; claiming happens every
			// cycle regardless of selection
			continue
		case ok:
			percent := res.Percent
			item.Percent = &percent
			item.Priority = TierInProgress
			item.TrackTitle = res.Title
		default:
			if days, claimed := daysSinceClaim(name, claims); claimed && days <= RecencyWindowDays {
				slog.Debug(
					"skipping recently claimed streamer",
					"streamer", name,
					"days_since_claim", days,
				)
				continue
			}
			item.Priority = TierUnstarted
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority < items[j].Priority
		}
		return percentOrZero(items[i]) < percentOrZero(items[j])
	})
	return items
}

func percentOrZero(item WorkItem) int {
	if item.Percent == nil {
		return 0
	}
	return *item.Percent
}

// selectGeneral picks the longest-duration incomplete general drop (the
// longest reward is assumed the most valuable use of watch time) and a
// live streamer to host the session, preferring a host whose own reward
// is already progressing.
func selectGeneral(campaign catalog.Campaign, progress inventory.Progress) (WorkItem, bool) {
	generals := make([]catalog.GeneralDrop, len(campaign.General))
	copy(generals, campaign.General)
	sort.SliceStable(generals, func(i, j int) bool {
		return generals[i].Hours > generals[j].Hours
	})

	for _, g := range generals {
		res, ok := match.Match(g.Item, g.Alias, progress)
		if ok && res.Percent >= 100 {
			continue
		}

		host, hostOK := pickHost(campaign, progress)
		if !hostOK {
			return WorkItem{}, false
		}

		item := WorkItem{
			Target:       g.Item,
			General:      true,
			TrackTitle:   g.Item,
			HostStreamer: host.Streamer,
			StreamURL:    host.URL,
		}
		if g.Alias != "" {
			item.TrackTitle = g.Alias
		}
		if ok {
			percent := res.Percent
			item.Percent = &percent
			item.TrackTitle = res.Title
		}
		return item, true
	}
	return WorkItem{}, false
}

func pickHost(campaign catalog.Campaign, progress inventory.Progress) (catalog.StreamerDrop, bool) {
	var fallback *catalog.StreamerDrop
	for i, sd := range campaign.Streamers {
		if !sd.IsLive {
			continue
		}
		if fallback == nil {
			fallback = &campaign.Streamers[i]
		}
		res, ok := match.Match(sd.Streamer, sd.Item, progress)
		if ok && res.Percent < 100 {
			return sd, true
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return catalog.StreamerDrop{}, false
}

// daysSinceClaim resolves a streamer against the recent-claim sweep
// using the same name variations the matcher uses.
func daysSinceClaim(streamer string, claims []inventory.ClaimRecord) (int, bool) {
	target := textutil.NormalizeName(streamer)
	if target == "" {
		return 0, false
	}
	best := 0
	found := false
	for _, record := range claims {
		if !claimNameMatches(target, record.Name) {
			continue
		}
		if !found || record.DaysSinceClaim < best {
			best = record.DaysSinceClaim
			found = true
		}
	}
	return best, found
}

func claimNameMatches(target, recordName string) bool {
	name := textutil.NormalizeName(recordName)
	if name == "" {
		return false
	}
	if strings.Contains(name, target) {
		return true
	}
	for _, v := range textutil.NameVariations(recordName) {
		if v == target || strings.Contains(target, v) {
			return true
		}
	}
	return false
}
