package testutil

import (
	"context"
	"testing"

	"github.com/HerbHall/cliphub/internal/config"
	"github.com/HerbHall/cliphub/internal/services"
	"github.com/HerbHall/cliphub/internal/store"
)

// Content returns a pointer to s, the form clip operations take raw input in.
func Content(s string) *string {
	return &s
}

// ClipEnv bundles a clip service with the store and clock behind it.
type ClipEnv struct {
	Store   *store.SQLiteStore
	Clock   *Clock
	Service *services.ClipService
}

// NewClipEnv creates a ClipService on a fresh in-memory store. Timestamps
// come from the returned Clock, which only moves when advanced.
func NewClipEnv(t *testing.T, maxLength int, opts ...services.ClipOption) *ClipEnv {
	t.Helper()
	st := NewStore(t)
	clock := NewClock()

	opts = append([]services.ClipOption{services.WithClock(clock.Now)}, opts...)
	svc, err := services.NewClipService(context.Background(), st,
		config.ClipsConfig{MaxLength: maxLength}, opts...)
	if err != nil {
		t.Fatalf("testutil.NewClipEnv: %v", err)
	}
	return &ClipEnv{Store: st, Clock: clock, Service: svc}
}

// CountClips returns the number of rows in the clips table.
func (e *ClipEnv) CountClips(t *testing.T) int {
	t.Helper()
	ctx := context.Background()
	h, err := e.Store.Open(ctx)
	if err != nil {
		t.Fatalf("open handle: %v", err)
	}
	defer h.Close()

	var n int
	if err := h.QueryRowContext(ctx, `SELECT COUNT(*) FROM clips`).Scan(&n); err != nil {
		t.Fatalf("count clips: %v", err)
	}
	return n
}
