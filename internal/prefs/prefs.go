// Package prefs persists operator preferences (the tray toggles) and
// reloads them live when the file changes on disk, so a toggle from
// the tray process applies without polling.
package prefs

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"dropwatch/lib/configutil"

	"github.com/fsnotify/fsnotify"
)

type Preferences struct {
	Headless      bool `json:"headless"`
	Notifications bool `json:"notifications"`
}

func Defaults() Preferences {
	return Preferences{Headless: true, Notifications: true}
}

type Store struct {
	path string

	mu      sync.RWMutex
	current Preferences
}

// Load reads the preferences file, falling back to defaults when it
// does not exist yet.
func Load(path string) (*Store, error) {
	current := Defaults()
	loaded, err := configutil.ReadConfig[Preferences](path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		current = loaded
	}
	return &Store{path: path, current: current}, nil
}

func (s *Store) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) Set(p Preferences) error {
	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	return configutil.WriteConfig(s.path, p)
}

// Handler serves the preferences over the dashboard: GET returns the
// current values, POST replaces them (and persists, so the file watcher
// in a second process sees the change too).
func (s *Store) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
		case http.MethodPost:
			var p Preferences
			err := json.NewDecoder(r.Body).Decode(&p)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			err = s.Set(p)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.Get())
	})
}

// Watch reloads the store whenever the file changes, until ctx is
// cancelled. onChange may be nil.
func (s *Store) Watch(ctx context.Context, onChange func(Preferences)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// watch the directory: editors and atomic writes replace the file
	err = watcher.Add(filepath.Dir(s.path))
	if err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				loaded, err := configutil.ReadConfig[Preferences](s.path)
				if err != nil {
					slog.Warn("reloading preferences", "err", err)
					continue
				}
				s.mu.Lock()
				s.current = loaded
				s.mu.Unlock()
				slog.Info("preferences reloaded", "headless", loaded.Headless, "notifications", loaded.Notifications)
				if onChange != nil {
					onChange(loaded)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("preferences watcher", "err", err)
			}
		}
	}()
	return nil
}
