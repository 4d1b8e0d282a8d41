// Package store persists generated posts and their images.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/ledger"
	"github.com/postwright/postwright/pkg/models"
	"github.com/postwright/postwright/pkg/sqlitedb"
)

// Artifacts reads, creates and updates generation artifacts.
type Artifacts interface {
	Get(ctx context.Context, id int64) (models.Post, error)
	CreateArtifact(ctx context.Context, content string, meta models.ArtifactMeta) (int64, error)
	UpdateArtifact(ctx context.Context, id int64, upd models.ArtifactUpdate) error
}

// Store is the SQLite post store.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ Artifacts = (*Store)(nil)

const createPostsTable = `
CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	image_url TEXT NOT NULL DEFAULT '',
	image_source TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'draft',
	source_type TEXT NOT NULL,
	source_data TEXT NOT NULL DEFAULT '{}',
	job_id TEXT NOT NULL DEFAULT '',
	ai_cost_micros INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at);
`

// New opens the store at dbPath and runs auto-migration.
func New(dbPath string) (*Store, error) {
	db, err := sqlitedb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open post store: %w", err)
	}
	if err := sqlitedb.Migrate(db, createPostsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate post store: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

type postRow struct {
	ID           int64  `db:"id"`
	Content      string `db:"content"`
	ImageURL     string `db:"image_url"`
	ImageSource  string `db:"image_source"`
	Status       string `db:"status"`
	SourceType   string `db:"source_type"`
	SourceData   string `db:"source_data"`
	JobID        string `db:"job_id"`
	AICostMicros int64  `db:"ai_cost_micros"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

func (r postRow) post() models.Post {
	p := models.Post{
		ID:          r.ID,
		Content:     r.Content,
		ImageURL:    r.ImageURL,
		ImageSource: models.ImageSource(r.ImageSource),
		Status:      models.PostStatus(r.Status),
		SourceType:  models.SourceType(r.SourceType),
		JobID:       r.JobID,
		AICost:      ledger.FromMicros(r.AICostMicros),
		CreatedAt:   sqlitedb.ParseTime(r.CreatedAt),
		UpdatedAt:   sqlitedb.ParseTime(r.UpdatedAt),
	}
	if r.SourceData != "" && r.SourceData != "{}" {
		_ = json.Unmarshal([]byte(r.SourceData), &p.SourceData)
	}
	return p
}

const selectPost = `SELECT id, content, image_url, image_source, status, source_type, source_data,
	job_id, ai_cost_micros, created_at, updated_at FROM posts`

// CreateArtifact stores a new draft post and returns its id.
func (s *Store) CreateArtifact(ctx context.Context, content string, meta models.ArtifactMeta) (int64, error) {
	if strings.TrimSpace(content) == "" {
		return 0, errors.NewValidationError("content", "required")
	}
	if meta.SourceType == "" {
		return 0, errors.NewValidationError("source_type", "required")
	}

	data := "{}"
	if len(meta.SourceData) > 0 {
		b, err := json.Marshal(meta.SourceData)
		if err != nil {
			return 0, errors.Wrap(errors.Mark(err, errors.ErrPersistence), "encode source data")
		}
		data = string(b)
	}

	now := sqlitedb.FormatTime(s.now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (content, image_url, image_source, status, source_type, source_data, job_id, ai_cost_micros, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		content, meta.ImageURL, string(meta.ImageSource), string(models.PostDraft), string(meta.SourceType),
		data, meta.JobID, ledger.ToMicros(meta.AICost), now, now,
	)
	if err != nil {
		return 0, errors.Wrap(errors.Mark(err, errors.ErrPersistence), "create artifact")
	}
	return res.LastInsertId()
}

// UpdateArtifact applies the non-nil fields of upd.
func (s *Store) UpdateArtifact(ctx context.Context, id int64, upd models.ArtifactUpdate) error {
	var sets []string
	var args []any
	if upd.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *upd.Content)
	}
	if upd.ImageURL != nil {
		sets = append(sets, "image_url = ?")
		args = append(args, *upd.ImageURL)
	}
	if upd.ImageSource != nil {
		sets = append(sets, "image_source = ?")
		args = append(args, string(*upd.ImageSource))
	}
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return errors.NewValidationError("status", fmt.Sprintf("unknown status %q", *upd.Status))
		}
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.AICost != nil {
		if upd.AICost.IsNegative() {
			return errors.NewValidationError("ai_cost", "must not be negative")
		}
		sets = append(sets, "ai_cost_micros = ?")
		args = append(args, ledger.ToMicros(*upd.AICost))
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, sqlitedb.FormatTime(s.now()), id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return errors.Wrap(errors.Mark(err, errors.ErrPersistence), "update artifact")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Newf(errors.ErrNotFound, "post %d not found", id)
	}
	return nil
}

// UpdateStatus moves a post through draft, copied and posted.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status models.PostStatus) error {
	return s.UpdateArtifact(ctx, id, models.ArtifactUpdate{Status: &status})
}

// Get returns one post.
func (s *Store) Get(ctx context.Context, id int64) (models.Post, error) {
	var r postRow
	err := s.db.GetContext(ctx, &r, selectPost+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Post{}, errors.Newf(errors.ErrNotFound, "post %d not found", id)
	}
	if err != nil {
		return models.Post{}, fmt.Errorf("get post: %w", err)
	}
	return r.post(), nil
}

// List returns up to limit posts, newest first. A non-empty status filters.
func (s *Store) List(ctx context.Context, status models.PostStatus, limit int) ([]models.Post, error) {
	if limit <= 0 {
		limit = 20
	}
	q := selectPost
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var rows []postRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	posts := make([]models.Post, 0, len(rows))
	for _, r := range rows {
		posts = append(posts, r.post())
	}
	return posts, nil
}

// Counts returns the number of posts per status.
func (s *Store) Counts(ctx context.Context) (map[models.PostStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM posts GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}
	out := make(map[models.PostStatus]int, len(rows))
	for _, r := range rows {
		out[models.PostStatus(r.Status)] = r.N
	}
	return out, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
