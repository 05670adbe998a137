package services

import (
	"context"
	"fmt"
)

// ClipCounter counts stored clips with read-only queries. Unlike
// NewClipService it applies no migrations, so it can inspect a database
// that must be left as found. A database without a clips table holds zero
// clips.
type ClipCounter struct {
	gw Opener
}

// NewClipCounter creates a ClipCounter over gw.
func NewClipCounter(gw Opener) *ClipCounter {
	return &ClipCounter{gw: gw}
}

// Count returns the number of stored clips.
func (c *ClipCounter) Count(ctx context.Context) (int, error) {
	h, err := c.gw.Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("count clips: %w", err)
	}
	defer h.Close()

	var tables int
	err = h.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'clips'`,
	).Scan(&tables)
	if err != nil {
		return 0, fmt.Errorf("look up clips table: %w", err)
	}
	if tables == 0 {
		return 0, nil
	}
	return countClips(ctx, h)
}
