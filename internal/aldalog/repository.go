package aldalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"satqm/internal/model"
	"satqm/internal/patterns"
	"satqm/internal/storage"
)

// PatternGroup selects transfer-log rows belonging to a product and carries
// the minimum record count required for the slot to count as delivered.
// DestHost and Filename are SQL LIKE patterns.
type PatternGroup struct {
	DestHost string `yaml:"dest_host"`
	Filename string `yaml:"filename"`
	MinCount int    `yaml:"min_count"`
}

type Repository struct {
	db       *sql.DB
	dialect  storage.Dialect
	patterns *patterns.Map[[]PatternGroup]
}

func NewRepository(db *sql.DB, dialect storage.Dialect, pm *patterns.Map[[]PatternGroup]) *Repository {
	return &Repository{db: db, dialect: dialect, patterns: pm}
}

func (r *Repository) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alda_log_entry (
			dest_host TEXT NOT NULL,
			filename TEXT NOT NULL,
			slot_time BIGINT,
			timestamp BIGINT NOT NULL,
			PRIMARY KEY (dest_host, filename)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alda_log_slot ON alda_log_entry(slot_time)`,
		`CREATE INDEX IF NOT EXISTS idx_alda_log_timestamp ON alda_log_entry(timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("aldalog: init: %w", err)
		}
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Add(ctx context.Context, entries []model.AldaLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, r.dialect.Rebind(
		`INSERT INTO alda_log_entry (dest_host, filename, slot_time, timestamp)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (dest_host, filename)
		DO UPDATE SET slot_time = excluded.slot_time, timestamp = excluded.timestamp`))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.DestHost, e.Filename,
			e.SlotTime.UTC().Unix(),
			e.Timestamp.UTC().Unix(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("aldalog: add: %w", err)
		}
	}
	return tx.Commit()
}

// FindByTimeslot returns the records for the slot that match the product's
// pattern groups and whether every group met its min_count threshold. A
// product with no pattern configuration means no filtering, and the slot is
// delivered when at least one record exists.
func (r *Repository) FindByTimeslot(ctx context.Context, slot time.Time, productName string) ([]model.AldaLogEntry, bool, error) {
	var groups []PatternGroup
	if productName != "" && productName != "*" && !r.patterns.Empty() {
		if pats, ok := r.patterns.Lookup(productName); ok {
			groups = pats
		}
	}

	if len(groups) == 0 {
		records, err := r.querySlot(ctx, slot, "", "")
		if err != nil {
			return nil, false, err
		}
		return records, len(records) > 0, nil
	}

	var all []model.AldaLogEntry
	ok := true
	for _, g := range groups {
		records, err := r.querySlot(ctx, slot, g.DestHost, g.Filename)
		if err != nil {
			return nil, false, err
		}
		if len(records) < g.MinCount {
			ok = false
		}
		all = append(all, records...)
	}
	return all, ok, nil
}

func (r *Repository) querySlot(ctx context.Context, slot time.Time, destHost, filename string) ([]model.AldaLogEntry, error) {
	query := `SELECT dest_host, filename, slot_time, timestamp
		FROM alda_log_entry WHERE slot_time = ?`
	args := []any{slot.UTC().Unix()}
	if destHost != "" || filename != "" {
		query += ` AND dest_host LIKE ? AND filename LIKE ?`
		args = append(args, destHost, filename)
	}
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("aldalog: find: %w", err)
	}
	defer rows.Close()

	var out []model.AldaLogEntry
	for rows.Next() {
		var e model.AldaLogEntry
		var slotUnix sql.NullInt64
		var tsUnix int64
		if err := rows.Scan(&e.DestHost, &e.Filename, &slotUnix, &tsUnix); err != nil {
			return nil, err
		}
		if slotUnix.Valid {
			e.SlotTime = time.Unix(slotUnix.Int64, 0).UTC()
		}
		e.Timestamp = time.Unix(tsUnix, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// OldestAllowed mirrors the daily-log retention rule, keyed on the receipt
// timestamp of the newest record.
func (r *Repository) OldestAllowed(ctx context.Context, days int) (*time.Time, error) {
	var max sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM alda_log_entry`).Scan(&max)
	if err != nil {
		return nil, fmt.Errorf("aldalog: oldest allowed: %w", err)
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
		r.dialect.Rebind(`DELETE FROM alda_log_entry WHERE timestamp < ?`),
		cutoff.Unix())
	if err != nil {
		return fmt.Errorf("aldalog: delete older than: %w", err)
	}
	return nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alda_log_entry`).Scan(&n)
	return n, err
}
