// Package status holds the read-only snapshot of the workflow's state
// for the presentation layer. The core refreshes it once per cycle and
// once per poll tick; the dashboard only ever reads it.
package status

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

type Entry struct {
	Name    string `json:"name"`
	Percent int    `json:"percent"`
}

type Item struct {
	Target  string `json:"target"`
	General bool   `json:"general"`
	Percent *int   `json:"percent"`
	Host    string `json:"host,omitempty"`
}

type Snapshot struct {
	InProgress  []Entry   `json:"in_progress"`
	NotStarted  []string  `json:"not_started"`
	Completed   []string  `json:"completed"`
	Current     *Item     `json:"current"`
	LastUpdated time.Time `json:"last_updated"`
}

type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Set(snap Snapshot) {
	snap.LastUpdated = time.Now()
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// SetCurrentPercent refreshes just the active item's percent, used on
// every poll tick between full cycle refreshes.
func (s *Store) SetCurrentPercent(percent *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Current == nil {
		return
	}
	s.snap.Current.Percent = percent
	s.snap.LastUpdated = time.Now()
}

func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Store) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.Get())
	})
}
