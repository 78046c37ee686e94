package status

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreSetAndGet(t *testing.T) {
	store := NewStore()
	require.True(t, store.Get().LastUpdated.IsZero())

	store.Set(Snapshot{
		InProgress: []Entry{{Name: "Alice Hat", Percent: 40}},
		Completed:  []string{"Garage Door"},
	})

	snap := store.Get()
	require.Len(t, snap.InProgress, 1)
	require.False(t, snap.LastUpdated.IsZero())
}

func TestSetCurrentPercent(t *testing.T) {
	store := NewStore()

	// no current item: the tick update is a no-op
	percent := 55
	store.SetCurrentPercent(&percent)
	require.Nil(t, store.Get().Current)

	store.Set(Snapshot{Current: &Item{Target: "Alice"}})
	store.SetCurrentPercent(&percent)

	current := store.Get().Current
	require.NotNil(t, current)
	require.Equal(t, 55, *current.Percent)

	store.SetCurrentPercent(nil)
	require.Nil(t, store.Get().Current.Percent)
}

func TestHandlerServesJSON(t *testing.T) {
	store := NewStore()
	store.Set(Snapshot{NotStarted: []string{"Bob"}})

	rec := httptest.NewRecorder()
	store.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))

	require.Equal(t, 200, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, []string{"Bob"}, snap.NotStarted)
}
