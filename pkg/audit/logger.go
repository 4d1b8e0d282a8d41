// Package audit keeps the processing log: one row per finished job with its
// outcome, cost and details.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/postwright/postwright/pkg/ledger"
	"github.com/postwright/postwright/pkg/models"
	"github.com/postwright/postwright/pkg/sqlitedb"
)

// Logger writes and queries processing log rows.
type Logger struct {
	db   *sqlx.DB
	cfg  models.AuditConfig
	now  func() time.Time
	done chan struct{}
	wg   sync.WaitGroup
}

// New opens the processing log database and starts the retention loop.
func New(cfg models.AuditConfig) (*Logger, error) {
	db, err := sqlitedb.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	l := &Logger{
		db:   db,
		cfg:  cfg,
		now:  time.Now,
		done: make(chan struct{}),
	}

	if cfg.RetentionDays > 0 {
		l.wg.Add(1)
		go l.retentionLoop()
	}

	return l, nil
}

func migrate(db *sqlx.DB) error {
	return sqlitedb.Migrate(db,
		`CREATE TABLE IF NOT EXISTS processing_logs (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id       TEXT NOT NULL,
			process_type TEXT NOT NULL,
			status       TEXT NOT NULL,
			details      TEXT NOT NULL DEFAULT '',
			cost_micros  INTEGER NOT NULL DEFAULT 0,
			duration_ms  INTEGER NOT NULL DEFAULT 0,
			metadata     TEXT NOT NULL DEFAULT '{}',
			created_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_processing_type ON processing_logs(process_type)`,
		`CREATE INDEX IF NOT EXISTS idx_processing_created ON processing_logs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_processing_job ON processing_logs(job_id)`,
	)
}

// Log inserts a processing log row. Details longer than MaxDetailSize are
// truncated.
func (l *Logger) Log(ctx context.Context, entry models.ProcessingLog) error {
	if l == nil || l.db == nil {
		return nil
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}

	details := entry.Details
	if l.cfg.MaxDetailSize > 0 && len(details) > l.cfg.MaxDetailSize {
		details = details[:l.cfg.MaxDetailSize]
	}
	meta := "{}"
	if len(entry.Metadata) > 0 {
		b, _ := json.Marshal(entry.Metadata)
		meta = string(b)
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO processing_logs
		(job_id, process_type, status, details, cost_micros, duration_ms, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.JobID, string(entry.ProcessType), string(entry.Status), details,
		ledger.ToMicros(entry.Cost), entry.DurationMs, meta, sqlitedb.FormatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("log processing: %w", err)
	}
	return nil
}

type logRow struct {
	ID          int64  `db:"id"`
	JobID       string `db:"job_id"`
	ProcessType string `db:"process_type"`
	Status      string `db:"status"`
	Details     string `db:"details"`
	CostMicros  int64  `db:"cost_micros"`
	DurationMs  int64  `db:"duration_ms"`
	Metadata    string `db:"metadata"`
	CreatedAt   string `db:"created_at"`
}

// Query returns rows matching q, newest first.
func (l *Logger) Query(ctx context.Context, q models.ProcessingLogQuery) ([]models.ProcessingLog, error) {
	query := `SELECT id, job_id, process_type, status, details, cost_micros, duration_ms, metadata, created_at
		FROM processing_logs WHERE 1=1`
	var args []any

	if q.ProcessType != "" {
		query += " AND process_type = ?"
		args = append(args, string(q.ProcessType))
	}
	if q.Status != "" {
		query += " AND status = ?"
		args = append(args, string(q.Status))
	}
	if !q.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, sqlitedb.FormatTime(q.Since))
	}

	query += " ORDER BY created_at DESC, id DESC"

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var rows []logRow
	if err := l.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query processing logs: %w", err)
	}

	entries := make([]models.ProcessingLog, 0, len(rows))
	for _, r := range rows {
		e := models.ProcessingLog{
			ID:          r.ID,
			JobID:       r.JobID,
			ProcessType: models.ProcessType(r.ProcessType),
			Status:      models.ProcessStatus(r.Status),
			Details:     r.Details,
			Cost:        ledger.FromMicros(r.CostMicros),
			DurationMs:  r.DurationMs,
			CreatedAt:   sqlitedb.ParseTime(r.CreatedAt),
		}
		if r.Metadata != "" && r.Metadata != "{}" {
			_ = json.Unmarshal([]byte(r.Metadata), &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Stats returns success and error counts per process type.
func (l *Logger) Stats(ctx context.Context) ([]models.ProcessingStat, error) {
	var rows []struct {
		ProcessType string        `db:"process_type"`
		Success     int           `db:"ok"`
		Errors      int           `db:"failed"`
		Micros      sql.NullInt64 `db:"micros"`
	}
	err := l.db.SelectContext(ctx, &rows,
		`SELECT process_type,
		        SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END) AS ok,
		        SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END) AS failed,
		        SUM(cost_micros) AS micros
		 FROM processing_logs GROUP BY process_type ORDER BY process_type`)
	if err != nil {
		return nil, fmt.Errorf("processing stats: %w", err)
	}

	stats := make([]models.ProcessingStat, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, models.ProcessingStat{
			ProcessType: models.ProcessType(r.ProcessType),
			Success:     r.Success,
			Errors:      r.Errors,
			TotalCost:   ledger.FromMicros(r.Micros.Int64),
		})
	}
	return stats, nil
}

// Cleanup deletes rows older than the retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := l.now().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM processing_logs WHERE created_at < ?`, sqlitedb.FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("processing log cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			_, _ = l.Cleanup(context.Background())
		}
	}
}
