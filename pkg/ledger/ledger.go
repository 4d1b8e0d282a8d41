// Package ledger is the append-only record of priced provider operations.
package ledger

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/models"
	"github.com/postwright/postwright/pkg/sqlitedb"
)

// Ledger records and queries cost entries. There is no update or delete:
// corrections are compensating entries.
type Ledger interface {
	// Append validates and stores an entry, returning its id.
	Append(ctx context.Context, entry models.CostEntry) (int64, error)
	// Summary aggregates entries in [start, end) by service and UTC day.
	Summary(ctx context.Context, start, end time.Time) (models.CostSummary, error)
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]models.CostEntry, error)
	// Total returns the summed cost in [start, end).
	Total(ctx context.Context, start, end time.Time) (decimal.Decimal, error)
	// ByOperation aggregates entries in [start, end) by operation label.
	ByOperation(ctx context.Context, start, end time.Time) ([]models.OperationCost, error)
	// ExportCSV writes entries in [start, end) as CSV, oldest first.
	ExportCSV(ctx context.Context, w io.Writer, start, end time.Time) error
	// Close releases resources.
	Close() error
}

// SQLiteLedger implements Ledger with a SQLite database. Costs are stored as
// integer micro-dollars so sums are exact.
type SQLiteLedger struct {
	db  *sqlx.DB
	now func() time.Time
}

const createTable = `
CREATE TABLE IF NOT EXISTS cost_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	service TEXT NOT NULL,
	operation TEXT NOT NULL,
	tokens_used INTEGER,
	cost_micros INTEGER NOT NULL CHECK (cost_micros >= 0),
	job_id TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cost_entries_time ON cost_entries(created_at);
CREATE INDEX IF NOT EXISTS idx_cost_entries_job ON cost_entries(job_id);
`

// Option configures a SQLiteLedger.
type Option func(*SQLiteLedger)

// WithClock sets the clock used to stamp entries without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(l *SQLiteLedger) { l.now = now }
}

// New opens the ledger at dbPath and runs auto-migration.
func New(dbPath string, opts ...Option) (*SQLiteLedger, error) {
	db, err := sqlitedb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if err := sqlitedb.Migrate(db, createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger db: %w", err)
	}
	l := &SQLiteLedger{db: db, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

type entryRow struct {
	ID         int64         `db:"id"`
	Service    string        `db:"service"`
	Operation  string        `db:"operation"`
	TokensUsed sql.NullInt64 `db:"tokens_used"`
	CostMicros int64         `db:"cost_micros"`
	JobID      string        `db:"job_id"`
	Metadata   string        `db:"metadata"`
	CreatedAt  string        `db:"created_at"`
}

func (r entryRow) entry() models.CostEntry {
	e := models.CostEntry{
		ID:        r.ID,
		Service:   models.Service(r.Service),
		Operation: r.Operation,
		Cost:      FromMicros(r.CostMicros),
		JobID:     r.JobID,
		CreatedAt: sqlitedb.ParseTime(r.CreatedAt),
	}
	if r.TokensUsed.Valid {
		n := int(r.TokensUsed.Int64)
		e.TokensUsed = &n
	}
	if r.Metadata != "" && r.Metadata != "{}" {
		_ = json.Unmarshal([]byte(r.Metadata), &e.Metadata)
	}
	return e
}

// Validate checks an entry before it is stored.
func Validate(entry models.CostEntry) error {
	if !entry.Service.Valid() {
		return errors.NewValidationError("service", fmt.Sprintf("unknown service %q", entry.Service))
	}
	if strings.TrimSpace(entry.Operation) == "" {
		return errors.NewValidationError("operation", "required")
	}
	if entry.Cost.IsNegative() {
		return errors.NewValidationError("cost", "must not be negative")
	}
	if entry.TokensUsed != nil && *entry.TokensUsed < 0 {
		return errors.NewValidationError("tokens_used", "must not be negative")
	}
	return nil
}

// Append validates and stores an entry.
func (l *SQLiteLedger) Append(ctx context.Context, entry models.CostEntry) (int64, error) {
	if err := Validate(entry); err != nil {
		return 0, err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}

	meta := "{}"
	if len(entry.Metadata) > 0 {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return 0, errors.Wrap(errors.Mark(err, errors.ErrPersistence), "encode metadata")
		}
		meta = string(b)
	}

	var tokens sql.NullInt64
	if entry.TokensUsed != nil {
		tokens = sql.NullInt64{Int64: int64(*entry.TokensUsed), Valid: true}
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO cost_entries (service, operation, tokens_used, cost_micros, job_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(entry.Service), entry.Operation, tokens, ToMicros(entry.Cost), entry.JobID, meta,
		sqlitedb.FormatTime(entry.CreatedAt),
	)
	if err != nil {
		return 0, errors.Wrap(errors.Mark(err, errors.ErrPersistence), "append cost entry")
	}
	return res.LastInsertId()
}

// Summary aggregates entries in [start, end). Empty windows yield zero totals
// and empty breakdowns.
func (l *SQLiteLedger) Summary(ctx context.Context, start, end time.Time) (models.CostSummary, error) {
	from, to := sqlitedb.FormatTime(start), sqlitedb.FormatTime(end)
	sum := models.CostSummary{
		WindowStart: start.UTC(),
		WindowEnd:   end.UTC(),
		TotalCost:   decimal.Zero,
		ByService:   []models.ServiceCost{},
		ByDay:       []models.DayCost{},
	}

	var services []struct {
		Service string `db:"service"`
		Micros  int64  `db:"micros"`
		Calls   int    `db:"calls"`
	}
	err := l.db.SelectContext(ctx, &services,
		`SELECT service, COALESCE(SUM(cost_micros), 0) AS micros, COUNT(*) AS calls
		 FROM cost_entries WHERE created_at >= ? AND created_at < ?
		 GROUP BY service ORDER BY micros DESC, service`,
		from, to,
	)
	if err != nil {
		return sum, fmt.Errorf("summary by service: %w", err)
	}

	var total int64
	for _, s := range services {
		total += s.Micros
		sum.ByService = append(sum.ByService, models.ServiceCost{
			Service:   models.Service(s.Service),
			Cost:      FromMicros(s.Micros),
			CallCount: s.Calls,
		})
	}
	sum.TotalCost = FromMicros(total)

	var days []struct {
		Day    string `db:"day"`
		Micros int64  `db:"micros"`
	}
	err = l.db.SelectContext(ctx, &days,
		`SELECT substr(created_at, 1, 10) AS day, COALESCE(SUM(cost_micros), 0) AS micros
		 FROM cost_entries WHERE created_at >= ? AND created_at < ?
		 GROUP BY day ORDER BY day`,
		from, to,
	)
	if err != nil {
		return sum, fmt.Errorf("summary by day: %w", err)
	}
	for _, d := range days {
		sum.ByDay = append(sum.ByDay, models.DayCost{Date: d.Day, Cost: FromMicros(d.Micros)})
	}
	return sum, nil
}

// Recent returns up to limit entries, newest first.
func (l *SQLiteLedger) Recent(ctx context.Context, limit int) ([]models.CostEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []entryRow
	err := l.db.SelectContext(ctx, &rows,
		`SELECT id, service, operation, tokens_used, cost_micros, job_id, metadata, created_at
		 FROM cost_entries ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent costs: %w", err)
	}
	entries := make([]models.CostEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}

// Total returns the summed cost in [start, end).
func (l *SQLiteLedger) Total(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	var micros int64
	err := l.db.GetContext(ctx, &micros,
		`SELECT COALESCE(SUM(cost_micros), 0) FROM cost_entries WHERE created_at >= ? AND created_at < ?`,
		sqlitedb.FormatTime(start), sqlitedb.FormatTime(end),
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("total cost: %w", err)
	}
	return FromMicros(micros), nil
}

// ByOperation aggregates entries in [start, end) by operation, most
// expensive first.
func (l *SQLiteLedger) ByOperation(ctx context.Context, start, end time.Time) ([]models.OperationCost, error) {
	var rows []struct {
		Operation string `db:"operation"`
		Count     int    `db:"calls"`
		Micros    int64  `db:"micros"`
		Tokens    int64  `db:"tokens"`
	}
	err := l.db.SelectContext(ctx, &rows,
		`SELECT operation, COUNT(*) AS calls, COALESCE(SUM(cost_micros), 0) AS micros,
		        COALESCE(SUM(tokens_used), 0) AS tokens
		 FROM cost_entries WHERE created_at >= ? AND created_at < ?
		 GROUP BY operation ORDER BY micros DESC, operation`,
		sqlitedb.FormatTime(start), sqlitedb.FormatTime(end),
	)
	if err != nil {
		return nil, fmt.Errorf("cost by operation: %w", err)
	}
	out := make([]models.OperationCost, 0, len(rows))
	for _, r := range rows {
		total := FromMicros(r.Micros)
		avg := decimal.Zero
		if r.Count > 0 {
			avg = total.Div(decimal.NewFromInt(int64(r.Count))).Round(6)
		}
		out = append(out, models.OperationCost{
			Operation:   r.Operation,
			Count:       r.Count,
			TotalCost:   total,
			AverageCost: avg,
			TotalTokens: r.Tokens,
		})
	}
	return out, nil
}

// ExportCSV writes entries in [start, end), oldest first.
func (l *SQLiteLedger) ExportCSV(ctx context.Context, w io.Writer, start, end time.Time) error {
	var rows []entryRow
	err := l.db.SelectContext(ctx, &rows,
		`SELECT id, service, operation, tokens_used, cost_micros, job_id, metadata, created_at
		 FROM cost_entries WHERE created_at >= ? AND created_at < ? ORDER BY created_at, id`,
		sqlitedb.FormatTime(start), sqlitedb.FormatTime(end),
	)
	if err != nil {
		return fmt.Errorf("export costs: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Timestamp", "Service", "Operation", "Tokens", "Cost", "Job ID"}); err != nil {
		return err
	}
	for _, r := range rows {
		tokens := ""
		if r.TokensUsed.Valid {
			tokens = strconv.FormatInt(r.TokensUsed.Int64, 10)
		}
		record := []string{
			r.CreatedAt,
			r.Service,
			r.Operation,
			tokens,
			FromMicros(r.CostMicros).StringFixed(6),
			r.JobID,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Close releases the database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// ToMicros converts a dollar amount to integer micro-dollars, rounding half
// away from zero.
func ToMicros(d decimal.Decimal) int64 {
	return d.Shift(6).Round(0).IntPart()
}

// FromMicros converts micro-dollars back to dollars.
func FromMicros(micros int64) decimal.Decimal {
	return decimal.New(micros, -6)
}
