// Package services holds ClipHub's clip repository: content validation and
// CRUD over the storage gateway. HTTP handlers depend on the ClipRepository
// interface, never on SQL.
package services

import (
	"context"

	"github.com/HerbHall/cliphub/internal/store"
	"github.com/HerbHall/cliphub/pkg/models"
)

// ClipRepository provides validated CRUD access to clips. Missing clips are
// reported through the boolean results, never as errors. Invalid content is
// reported as *ValidationError.
type ClipRepository interface {
	// List returns all clips, newest first.
	List(ctx context.Context) ([]models.Clip, error)

	// Get returns a clip by ID.
	Get(ctx context.Context, id int64) (models.Clip, bool, error)

	// Create validates raw content and stores it as a new clip.
	Create(ctx context.Context, raw *string) (models.Clip, error)

	// Update validates raw content and replaces the content of clip id.
	Update(ctx context.Context, id int64, raw *string) (models.Clip, bool, error)

	// Delete removes a clip by ID and reports whether it existed.
	Delete(ctx context.Context, id int64) (bool, error)
}

// Opener hands out storage handles.
type Opener interface {
	Open(ctx context.Context) (*store.Handle, error)
}

// Gateway is the part of the storage gateway the repository uses.
type Gateway interface {
	Opener
	Migrate(ctx context.Context, name string, migrations []store.Migration) error
}

// Compile-time interface guards.
var (
	_ ClipRepository = (*ClipService)(nil)
	_ Gateway        = (*store.SQLiteStore)(nil)
)
