package inventory

import "context"

// Progress maps a platform-rendered reward title to its completion
// percentage (0-100).
type Progress map[string]int

// ClaimRecord is one entry of the recently-claimed sweep: a claimed
// reward's name and how many days ago it was claimed.
type ClaimRecord struct {
	Name           string
	DaysSinceClaim int
}

// Source is the surface the decision core requires from the reward
// inventory collaborator.
type Source interface {
	FetchProgress(ctx context.Context) (Progress, error)
	FetchRecentClaims(ctx context.Context) ([]ClaimRecord, error)
	// ClaimReady activates every visible claim control once and
	// returns how many were claimed. Zero is not an error. An error
	// wrapping browser.ErrSurfaceClosed is fatal for the process.
	ClaimReady(ctx context.Context) (int, error)
}
