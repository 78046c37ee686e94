package catalog

import "time"

// GeneralDrop is a reward shared across all viewers regardless of which
// qualifying stream they watch.
type GeneralDrop struct {
	Item string
	// Alias is the short campaign name from headers like
	// "FROST GENERAL DROP", which sometimes differs from the item name
	// rendered on the reward inventory.
	Alias  string
	Hours  int
	Header string
}

// StreamerDrop only accrues progress while watching the designated
// streamer's channel.
type StreamerDrop struct {
	Streamer string
	Item     string
	Hours    int
	URL      string
	IsLive   bool
}

// Campaign is the state of the tracker site at one scrape. Values are
// recreated every cycle and never mutated.
type Campaign struct {
	General   []GeneralDrop
	Streamers []StreamerDrop

	// NotStarted is set when the tracker shows a countdown instead of
	// drop listings. StartTime carries the scheduled start when the
	// countdown exposes one.
	NotStarted bool
	StartTime  *time.Time
}
