package dailylog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"satqm/internal/model"
	"satqm/internal/patterns"
	"satqm/internal/storage"
)

// RecordPattern selects daily-log rows belonging to a product. The fields
// are SQL LIKE patterns matched against the record identity tuple.
type RecordPattern struct {
	Source    string `yaml:"source"`
	Service   string `yaml:"service"`
	Satellite string `yaml:"satellite"`
	Channel   string `yaml:"channel"`
	Segment   string `yaml:"segment"`
}

type Repository struct {
	db       *sql.DB
	dialect  storage.Dialect
	patterns *patterns.Map[[]RecordPattern]
}

func NewRepository(db *sql.DB, dialect storage.Dialect, pm *patterns.Map[[]RecordPattern]) *Repository {
	return &Repository{db: db, dialect: dialect, patterns: pm}
}

func (r *Repository) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS daily_log_entry (
			source TEXT NOT NULL,
			service TEXT NOT NULL,
			satellite TEXT NOT NULL,
			channel TEXT NOT NULL,
			segment TEXT NOT NULL,
			slot_time BIGINT NOT NULL,
			reference_time BIGINT NOT NULL,
			filename TEXT NOT NULL,
			received_timeliness BIGINT,
			remark TEXT NOT NULL,
			PRIMARY KEY (source, service, satellite, channel, segment, slot_time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_log_slot ON daily_log_entry(slot_time)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_log_reference ON daily_log_entry(reference_time)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("dailylog: init: %w", err)
		}
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Add upserts entries by their full identity tuple so that re-importing the
// same log file is idempotent.
func (r *Repository) Add(ctx context.Context, entries []model.DailyLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, r.dialect.Rebind(
		`INSERT INTO daily_log_entry
			(source, service, satellite, channel, segment, slot_time,
			 reference_time, filename, received_timeliness, remark)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, service, satellite, channel, segment, slot_time)
		DO UPDATE SET
			reference_time = excluded.reference_time,
			filename = excluded.filename,
			received_timeliness = excluded.received_timeliness,
			remark = excluded.remark`))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		var timeliness sql.NullInt64
		if e.ReceivedTimeliness != nil {
			timeliness = sql.NullInt64{Int64: e.ReceivedTimeliness.Unix(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			e.Source, e.Service, e.Satellite, e.Channel, e.Segment,
			e.SlotTime.UTC().Unix(),
			e.ReferenceTime.UTC().Unix(),
			e.Filename,
			timeliness,
			string(e.Remark),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("dailylog: add: %w", err)
		}
	}
	return tx.Commit()
}

// FindByTimeslot returns all records for the exact slot whose identity
// matches the pattern set of the product. A product that matches no pattern
// rule, or an empty pattern map, means no filtering.
func (r *Repository) FindByTimeslot(ctx context.Context, slot time.Time, productName string) ([]model.DailyLogEntry, error) {
	query := `SELECT source, service, satellite, channel, segment, slot_time,
		reference_time, filename, received_timeliness, remark
		FROM daily_log_entry WHERE slot_time = ?`
	args := []any{slot.UTC().Unix()}

	if productName != "" && productName != "*" && !r.patterns.Empty() {
		if pats, ok := r.patterns.Lookup(productName); ok && len(pats) > 0 {
			var clauses []string
			for _, p := range pats {
				clauses = append(clauses,
					`(source LIKE ? AND service LIKE ? AND satellite LIKE ? AND channel LIKE ? AND segment LIKE ?)`)
				args = append(args, p.Source, p.Service, p.Satellite, p.Channel, p.Segment)
			}
			query += ` AND (` + strings.Join(clauses, " OR ") + `)`
		}
	}

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("dailylog: find: %w", err)
	}
	defer rows.Close()

	var out []model.DailyLogEntry
	for rows.Next() {
		var e model.DailyLogEntry
		var slotUnix, refUnix int64
		var timeliness sql.NullInt64
		var remark string
		if err := rows.Scan(&e.Source, &e.Service, &e.Satellite, &e.Channel, &e.Segment,
			&slotUnix, &refUnix, &e.Filename, &timeliness, &remark); err != nil {
			return nil, err
		}
		e.SlotTime = time.Unix(slotUnix, 0).UTC()
		e.ReferenceTime = time.Unix(refUnix, 0).UTC()
		if timeliness.Valid {
			ts := time.Unix(timeliness.Int64, 0).UTC()
			e.ReceivedTimeliness = &ts
		}
		e.Remark = model.Remark(remark)
		out = append(out, e)
	}
	return out, rows.Err()
}

// OldestAllowed returns the retention cutoff: days before the newest
// reference time in the store, clamped to now when the newest record lies
// in the future. Nil when the store is empty.
func (r *Repository) OldestAllowed(ctx context.Context, days int) (*time.Time, error) {
	var max sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(reference_time) FROM daily_log_entry`).Scan(&max)
	if err != nil {
		return nil, fmt.Errorf("dailylog: oldest allowed: %w", err)
	}
	if !max.Valid {
		return nil, nil
	}
	newest := time.Unix(max.Int64, 0).UTC()
	if now := time.Now().UTC(); newest.After(now) {
		newest = now
	}
	cutoff := newest.AddDate(0, 0, -days)
	return &cutoff, nil
}

func (r *Repository) DeleteOlderThan(ctx context.Context, days int) error {
	cutoff, err := r.OldestAllowed(ctx, days)
	if err != nil {
		return err
	}
	if cutoff == nil {
		return nil
	}
	_, err = r.db.ExecContext(ctx,
		r.dialect.Rebind(`DELETE FROM daily_log_entry WHERE reference_time < ?`),
		cutoff.Unix())
	if err != nil {
		return fmt.Errorf("dailylog: delete older than: %w", err)
	}
	return nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_log_entry`).Scan(&n)
	return n, err
}
