package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/cliphub/internal/config"
	"github.com/HerbHall/cliphub/internal/event"
	"github.com/HerbHall/cliphub/internal/metrics"
	"github.com/HerbHall/cliphub/internal/store"
	"github.com/HerbHall/cliphub/pkg/models"
)

// timeLayout is the persisted timestamp format. It is fixed width, so for
// UTC values string order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000-07:00"

// clipColumns is the shared column list for clip queries.
const clipColumns = `id, content, created_at, updated_at`

// ClipService implements ClipRepository on top of the storage gateway.
type ClipService struct {
	gw        Gateway
	maxLength int
	now       func() time.Time
	logger    *zap.Logger
	events    event.Publisher
	metrics   *metrics.Metrics
}

// ClipOption customizes a ClipService.
type ClipOption func(*ClipService)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) ClipOption {
	return func(s *ClipService) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) ClipOption {
	return func(s *ClipService) { s.logger = logger }
}

// WithPublisher publishes clip.created, clip.updated and clip.deleted events
// after each committed mutation.
func WithPublisher(p event.Publisher) ClipOption {
	return func(s *ClipService) { s.events = p }
}

// WithMetrics records operation outcomes.
func WithMetrics(m *metrics.Metrics) ClipOption {
	return func(s *ClipService) { s.metrics = m }
}

// NewClipService creates a ClipService and ensures the clips schema exists.
// It is meant to be called once at startup; a failure here is fatal.
func NewClipService(ctx context.Context, gw Gateway, cfg config.ClipsConfig, opts ...ClipOption) (*ClipService, error) {
	if err := gw.Migrate(ctx, "clips", clipMigrations); err != nil {
		return nil, fmt.Errorf("clips migrations: %w", err)
	}

	s := &ClipService{
		gw:        gw,
		maxLength: cfg.MaxLength,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	if s.maxLength <= 0 {
		s.maxLength = DefaultMaxContentLength
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MaxLength returns the configured content limit.
func (s *ClipService) MaxLength() int {
	return s.maxLength
}

func (s *ClipService) List(ctx context.Context) ([]models.Clip, error) {
	h, err := s.gw.Open(ctx)
	if err != nil {
		s.metrics.ClipOp("list", metrics.ResultError)
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer h.Close()

	rows, err := h.QueryContext(ctx,
		`SELECT `+clipColumns+` FROM clips ORDER BY created_at DESC, id DESC`)
	if err != nil {
		s.metrics.ClipOp("list", metrics.ResultError)
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	clips := []models.Clip{}
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			s.metrics.ClipOp("list", metrics.ResultError)
			return nil, fmt.Errorf("scan clip row: %w", err)
		}
		clips = append(clips, c)
	}
	if err := rows.Err(); err != nil {
		s.metrics.ClipOp("list", metrics.ResultError)
		return nil, fmt.Errorf("list clips: %w", err)
	}

	s.metrics.ClipOp("list", metrics.ResultOK)
	return clips, nil
}

// Count returns the number of stored clips.
func (s *ClipService) Count(ctx context.Context) (int, error) {
	h, err := s.gw.Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("count clips: %w", err)
	}
	defer h.Close()

	return countClips(ctx, h)
}

func (s *ClipService) Get(ctx context.Context, id int64) (models.Clip, bool, error) {
	h, err := s.gw.Open(ctx)
	if err != nil {
		s.metrics.ClipOp("get", metrics.ResultError)
		return models.Clip{}, false, fmt.Errorf("get clip %d: %w", id, err)
	}
	defer h.Close()

	c, found, err := getClip(ctx, h, id)
	switch {
	case err != nil:
		s.metrics.ClipOp("get", metrics.ResultError)
	case !found:
		s.metrics.ClipOp("get", metrics.ResultNotFound)
	default:
		s.metrics.ClipOp("get", metrics.ResultOK)
	}
	return c, found, err
}

func (s *ClipService) Create(ctx context.Context, raw *string) (models.Clip, error) {
	content, err := s.validate("create", raw)
	if err != nil {
		return models.Clip{}, err
	}

	h, err := s.gw.Open(ctx)
	if err != nil {
		s.metrics.ClipOp("create", metrics.ResultError)
		return models.Clip{}, fmt.Errorf("create clip: %w", err)
	}
	defer h.Close()

	now := s.timestamp()
	ts := now.Format(timeLayout)

	var id int64
	err = h.Tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO clips (content, created_at, updated_at) VALUES (?, ?, ?)`,
			content, ts, ts,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		s.metrics.ClipOp("create", metrics.ResultError)
		return models.Clip{}, fmt.Errorf("create clip: %w", err)
	}

	c := models.Clip{ID: id, Content: content, CreatedAt: now, UpdatedAt: now}
	s.metrics.ClipOp("create", metrics.ResultOK)
	s.logger.Debug("clip created", zap.Int64("id", id), zap.Int("length", len(content)))
	s.publish(ctx, event.TopicClipCreated, c)
	return c, nil
}

// Update replaces a clip's content. Content is validated before the clip's
// existence is looked at. When no clip has the given id nothing is written
// and found is false.
func (s *ClipService) Update(ctx context.Context, id int64, raw *string) (models.Clip, bool, error) {
	content, err := s.validate("update", raw)
	if err != nil {
		return models.Clip{}, false, err
	}

	h, err := s.gw.Open(ctx)
	if err != nil {
		s.metrics.ClipOp("update", metrics.ResultError)
		return models.Clip{}, false, fmt.Errorf("update clip %d: %w", id, err)
	}
	defer h.Close()

	ts := s.timestamp().Format(timeLayout)

	var affected int64
	err = h.Tx(ctx, func(tx *sql.Tx) error {
		// max() keeps updated_at >= created_at if the clock steps backwards.
		res, err := tx.ExecContext(ctx,
			`UPDATE clips SET content = ?, updated_at = max(?, created_at) WHERE id = ?`,
			content, ts, id,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		s.metrics.ClipOp("update", metrics.ResultError)
		return models.Clip{}, false, fmt.Errorf("update clip %d: %w", id, err)
	}
	if affected == 0 {
		s.metrics.ClipOp("update", metrics.ResultNotFound)
		return models.Clip{}, false, nil
	}

	c, found, err := getClip(ctx, h, id)
	if err != nil {
		s.metrics.ClipOp("update", metrics.ResultError)
		return models.Clip{}, false, err
	}
	if !found {
		// Deleted by another unit of work between the update and the read.
		s.metrics.ClipOp("update", metrics.ResultNotFound)
		return models.Clip{}, false, nil
	}

	s.metrics.ClipOp("update", metrics.ResultOK)
	s.logger.Debug("clip updated", zap.Int64("id", id))
	s.publish(ctx, event.TopicClipUpdated, c)
	return c, true, nil
}

func (s *ClipService) Delete(ctx context.Context, id int64) (bool, error) {
	h, err := s.gw.Open(ctx)
	if err != nil {
		s.metrics.ClipOp("delete", metrics.ResultError)
		return false, fmt.Errorf("delete clip %d: %w", id, err)
	}
	defer h.Close()

	var affected int64
	err = h.Tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM clips WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		s.metrics.ClipOp("delete", metrics.ResultError)
		return false, fmt.Errorf("delete clip %d: %w", id, err)
	}
	if affected == 0 {
		s.metrics.ClipOp("delete", metrics.ResultNotFound)
		return false, nil
	}

	s.metrics.ClipOp("delete", metrics.ResultOK)
	s.logger.Debug("clip deleted", zap.Int64("id", id))
	s.publish(ctx, event.TopicClipDeleted, models.ClipRef{ID: id})
	return true, nil
}

// validate applies the content rules and records rejections.
func (s *ClipService) validate(op string, raw *string) (string, error) {
	content, err := ValidateContent(raw, s.maxLength)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			s.metrics.ValidationFailure(string(verr.Reason))
		}
		s.metrics.ClipOp(op, metrics.ResultInvalid)
		return "", err
	}
	return content, nil
}

// timestamp returns the current time in UTC at the stored precision.
func (s *ClipService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *ClipService) publish(ctx context.Context, topic string, payload any) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, event.Event{
		Topic:     topic,
		Source:    "clips",
		Timestamp: s.timestamp(),
		Payload:   payload,
	})
	if err != nil {
		s.logger.Warn("publish clip event", zap.String("topic", topic), zap.Error(err))
	}
}

func countClips(ctx context.Context, q querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM clips`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count clips: %w", err)
	}
	return n, nil
}

// querier is satisfied by *store.Handle and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getClip(ctx context.Context, q querier, id int64) (models.Clip, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)
	c, err := scanClip(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Clip{}, false, nil
		}
		return models.Clip{}, false, fmt.Errorf("get clip %d: %w", id, err)
	}
	return c, true, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanClip maps one clips row onto a Clip.
func scanClip(sc scanner) (models.Clip, error) {
	var (
		c                models.Clip
		created, updated string
	)
	if err := sc.Scan(&c.ID, &c.Content, &created, &updated); err != nil {
		return models.Clip{}, err
	}

	var err error
	if c.CreatedAt, err = parseTime(created); err != nil {
		return models.Clip{}, fmt.Errorf("clip %d created_at: %w", c.ID, err)
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return models.Clip{}, fmt.Errorf("clip %d updated_at: %w", c.ID, err)
	}
	return c, nil
}

// parseTime accepts the stored layout and, for rows written by other tools,
// any RFC 3339 timestamp.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}

// clipMigrations defines the database schema for clips.
var clipMigrations = []store.Migration{
	{
		Version:     1,
		Description: "create clips table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS clips (
					id         INTEGER PRIMARY KEY AUTOINCREMENT,
					content    TEXT NOT NULL,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				)`)
			return err
		},
	},
	{
		Version:     2,
		Description: "index clips by created_at",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_clips_created_at ON clips(created_at, id)`)
			return err
		},
	},
}
