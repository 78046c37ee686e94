package prefs

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "prefs.json"))
	require.NoError(t, err)
	require.Equal(t, Defaults(), store.Get())
}

func TestLoadExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	err := os.WriteFile(path, []byte(`{"headless": false, "notifications": true}`), 0644)
	require.NoError(t, err)

	store, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Preferences{Headless: false, Notifications: true}, store.Get())
}

func TestSetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	store, err := Load(path)
	require.NoError(t, err)

	want := Preferences{Headless: false, Notifications: false}
	require.NoError(t, store.Set(want))
	require.Equal(t, want, store.Get())

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, want, reloaded.Get())
}

func TestHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	store, err := Load(path)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	store.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/prefs", nil))
	require.Equal(t, 200, rec.Code)

	var got Preferences
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, Defaults(), got)

	rec = httptest.NewRecorder()
	store.Handler().ServeHTTP(rec, httptest.NewRequest(
		"POST", "/api/prefs",
		strings.NewReader(`{"headless": false, "notifications": false}`),
	))
	require.Equal(t, 200, rec.Code)
	require.Equal(t, Preferences{Headless: false, Notifications: false}, store.Get())

	rec = httptest.NewRecorder()
	store.Handler().ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/prefs", nil))
	require.Equal(t, 405, rec.Code)
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	store, err := Load(path)
	require.NoError(t, err)
	require.True(t, store.Get().Notifications)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan Preferences, 1)
	err = store.Watch(ctx, func(p Preferences) {
		select {
		case changed <- p:
		default:
		}
	})
	require.NoError(t, err)

	// the writer is another process in production, mimic it directly
	err = os.WriteFile(path, []byte(`{"headless": true, "notifications": false}`), 0644)
	require.NoError(t, err)

	select {
	case p := <-changed:
		require.False(t, p.Notifications)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not pick up the change")
	}
	require.False(t, store.Get().Notifications)
}
