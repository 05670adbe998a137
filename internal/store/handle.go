package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// ErrScopeEnded is returned by Open when the scope carried by the context
// has already been released.
var ErrScopeEnded = errors.New("storage scope ended")

// Handle is one storage connection used by a single unit of work. Statements
// issued through a handle run strictly in sequence.
type Handle struct {
	conn   *sql.Conn
	scoped bool

	mu     sync.Mutex
	closed bool
}

// Close releases the handle. It is idempotent. Handles that belong to a
// scope are released when the scope ends, so Close on them does nothing.
func (h *Handle) Close() error {
	if h == nil || h.scoped {
		return nil
	}
	return h.release()
}

func (h *Handle) release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if err := h.conn.Close(); err != nil {
		return fmt.Errorf("release sqlite connection: %w", err)
	}
	return nil
}

// ExecContext executes a statement on the handle's connection.
func (h *Handle) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return h.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query on the handle's connection.
func (h *Handle) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return h.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query on the handle's connection.
func (h *Handle) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return h.conn.QueryRowContext(ctx, query, args...)
}

// Tx executes fn within a database transaction. The transaction is
// committed if fn returns nil, rolled back otherwise.
func (h *Handle) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := h.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type scopeKey struct{}

// scope tracks the handles opened for one unit of work, at most one per store.
type scope struct {
	mu      sync.Mutex
	handles map[*SQLiteStore]*Handle
	ended   bool
}

// WithScope starts a unit of work. Handles opened with the returned context
// are reused for the whole scope and released by end, which must be called
// on every exit path (typically deferred). end is idempotent and reports any
// release failure. Nothing is acquired until the first Open.
func WithScope(ctx context.Context) (scoped context.Context, end func() error) {
	sc := &scope{handles: make(map[*SQLiteStore]*Handle)}
	return context.WithValue(ctx, scopeKey{}, sc), sc.end
}

func scopeFrom(ctx context.Context) *scope {
	sc, _ := ctx.Value(scopeKey{}).(*scope)
	return sc
}

func (sc *scope) handle(ctx context.Context, s *SQLiteStore) (*Handle, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.ended {
		return nil, ErrScopeEnded
	}
	if h, ok := sc.handles[s]; ok {
		return h, nil
	}

	h, err := s.acquire(ctx, true)
	if err != nil {
		return nil, err
	}
	sc.handles[s] = h
	return h, nil
}

func (sc *scope) end() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.ended = true
	var errs []error
	for s, h := range sc.handles {
		if err := h.release(); err != nil {
			errs = append(errs, err)
		}
		delete(sc.handles, s)
	}
	return errors.Join(errs...)
}
