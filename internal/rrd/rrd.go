// Package rrd stores per-product pipeline-completion series in round-robin
// style databases: one file per product, fixed step, coarser archives with
// MAX consolidation and bounded retention.
package rrd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"satqm/internal/model"
	"satqm/internal/storage"
)

const (
	hour  = time.Hour
	day   = 24 * hour
	month = 31 * day
)

// Archive is one consolidation level: samples are bucketed to Step and kept
// for Retention relative to the newest sample.
type Archive struct {
	Step      time.Duration
	Retention time.Duration
}

// DefaultArchives keeps full resolution for four months and hourly maxima
// for a year.
func DefaultArchives(step time.Duration) []Archive {
	return []Archive{
		{Step: step, Retention: 4 * month},
		{Step: hour, Retention: 12 * month},
	}
}

// Database is one product's series file.
type Database struct {
	db       *sql.DB
	dialect  storage.Dialect
	step     time.Duration
	archives []Archive
}

var ErrNotFound = errors.New("rrd: database not found")

// Create initialises a new series file at path. step is the slot interval;
// archives nil means DefaultArchives(step).
func Create(ctx context.Context, path string, step time.Duration, archives []Archive) (*Database, error) {
	if step <= 0 {
		return nil, fmt.Errorf("rrd: invalid step %s", step)
	}
	if archives == nil {
		archives = DefaultArchives(step)
	}
	for i, a := range archives {
		if a.Step < step || a.Step%step != 0 {
			return nil, fmt.Errorf("rrd: archive %d step %s not a multiple of %s", i, a.Step, step)
		}
	}
	db, dialect, err := storage.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, err
	}
	d := &Database{db: db, dialect: dialect, step: step, archives: archives}
	if err := d.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	// an existing file keeps its original layout
	d.archives = nil
	if err := d.load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Open loads an existing series file; ErrNotFound when path has never been
// created.
func Open(ctx context.Context, path string) (*Database, error) {
	db, dialect, err := storage.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	d := &Database{db: db, dialect: dialect}
	if err := d.load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Database) init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS series_meta (
			archive INTEGER NOT NULL PRIMARY KEY,
			step_seconds INTEGER NOT NULL,
			retention_seconds INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sample (
			archive INTEGER NOT NULL,
			slot BIGINT NOT NULL,
			latency REAL NOT NULL,
			PRIMARY KEY (archive, slot)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rrd: init: %w", err)
		}
	}
	insert := d.dialect.Rebind(
		`INSERT INTO series_meta (archive, step_seconds, retention_seconds) VALUES (?, ?, ?)
		ON CONFLICT (archive) DO NOTHING`)
	for i, a := range d.archives {
		if _, err := d.db.ExecContext(ctx, insert,
			i, int64(a.Step/time.Second), int64(a.Retention/time.Second)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) load(ctx context.Context) error {
	rows, err := d.db.QueryContext(ctx,
		`SELECT step_seconds, retention_seconds FROM series_meta ORDER BY archive`)
	if err != nil {
		return ErrNotFound
	}
	defer rows.Close()
	for rows.Next() {
		var stepSec, retSec int64
		if err := rows.Scan(&stepSec, &retSec); err != nil {
			return err
		}
		d.archives = append(d.archives, Archive{
			Step:      time.Duration(stepSec) * time.Second,
			Retention: time.Duration(retSec) * time.Second,
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(d.archives) == 0 {
		return ErrNotFound
	}
	d.step = d.archives[0].Step
	return nil
}

func (d *Database) Close() error { return d.db.Close() }

func (d *Database) Step() time.Duration { return d.step }

// Update records the completion latency for a slot. Every archive gets the
// bucketed value, keeping the maximum when the bucket already holds one, and
// rows outside the archive's retention window are dropped.
func (d *Database) Update(ctx context.Context, slot time.Time, latencySeconds float64) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	upsert := d.dialect.Rebind(
		`INSERT INTO sample (archive, slot, latency) VALUES (?, ?, ?)
		ON CONFLICT (archive, slot)
		DO UPDATE SET latency = MAX(sample.latency, excluded.latency)`)
	prune := d.dialect.Rebind(
		`DELETE FROM sample WHERE archive = ? AND slot < ?`)
	unix := slot.UTC().Unix()
	for i, a := range d.archives {
		stepSec := int64(a.Step / time.Second)
		bucket := (unix / stepSec) * stepSec
		if _, err := tx.ExecContext(ctx, upsert, i, bucket, latencySeconds); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("rrd: update: %w", err)
		}
		cutoff := bucket - int64(a.Retention/time.Second)
		if _, err := tx.ExecContext(ctx, prune, i, cutoff); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Last returns the newest slot in the finest archive; ok is false for an
// empty database.
func (d *Database) Last(ctx context.Context) (time.Time, bool, error) {
	var unix sql.NullInt64
	err := d.db.QueryRowContext(ctx,
		d.dialect.Rebind(`SELECT MAX(slot) FROM sample WHERE archive = ?`), 0).Scan(&unix)
	if err != nil {
		return time.Time{}, false, err
	}
	if !unix.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(unix.Int64, 0).UTC(), true, nil
}

// Fetch returns one sample per step bucket in (start, end], like an rrdtool
// fetch: the row timestamped start itself is excluded and buckets without a
// value carry a nil latency.
func (d *Database) Fetch(ctx context.Context, start, end time.Time) ([]model.Sample, error) {
	archive, step := d.archiveFor(ctx, start)
	stepSec := int64(step / time.Second)
	startUnix := start.UTC().Unix()
	endUnix := end.UTC().Unix()

	rows, err := d.db.QueryContext(ctx, d.dialect.Rebind(
		`SELECT slot, latency FROM sample
		WHERE archive = ? AND slot > ? AND slot <= ?`),
		archive, startUnix, endUnix)
	if err != nil {
		return nil, fmt.Errorf("rrd: fetch: %w", err)
	}
	defer rows.Close()
	byBucket := map[int64]float64{}
	for rows.Next() {
		var slot int64
		var latency float64
		if err := rows.Scan(&slot, &latency); err != nil {
			return nil, err
		}
		byBucket[slot] = latency
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []model.Sample
	first := (startUnix/stepSec)*stepSec + stepSec
	for t := first; t <= endUnix; t += stepSec {
		s := model.Sample{Slot: time.Unix(t, 0).UTC()}
		if v, ok := byBucket[t]; ok {
			latency := v
			s.Latency = &latency
		}
		out = append(out, s)
	}
	return out, nil
}

// archiveFor picks the finest archive whose retention still covers start,
// relative to the newest sample.
func (d *Database) archiveFor(ctx context.Context, start time.Time) (int, time.Duration) {
	last, ok, err := d.Last(ctx)
	if err != nil || !ok {
		return 0, d.step
	}
	for i, a := range d.archives {
		if !start.Before(last.Add(-a.Retention)) {
			return i, a.Step
		}
	}
	return len(d.archives) - 1, d.archives[len(d.archives)-1].Step
}

// FetchSlots resolves the exact requested slots: each comes back with the
// stored latency or nil when the slot was never completed. An empty database
// yields all-absent.
func FetchSlots(ctx context.Context, d *Database, slots []time.Time) ([]model.Sample, error) {
	if len(slots) == 0 {
		return nil, nil
	}
	fetched, err := d.Fetch(ctx, slots[0].Add(-d.step), slots[len(slots)-1])
	if err != nil {
		return nil, err
	}
	byTime := make(map[int64]*float64, len(fetched))
	for _, s := range fetched {
		byTime[s.Slot.Unix()] = s.Latency
	}
	out := make([]model.Sample, len(slots))
	for i, slot := range slots {
		out[i] = model.Sample{Slot: slot}
		if latency, ok := byTime[slot.UTC().Unix()]; ok {
			out[i].Latency = latency
		}
	}
	return out, nil
}

// MultiFetchSlots merges several shards of the same product series. For each
// slot the first database with a value wins.
func MultiFetchSlots(ctx context.Context, dbs []*Database, slots []time.Time) ([]model.Sample, error) {
	out := make([]model.Sample, len(slots))
	for i, slot := range slots {
		out[i] = model.Sample{Slot: slot}
	}
	for _, d := range dbs {
		fetched, err := FetchSlots(ctx, d, slots)
		if err != nil {
			return nil, err
		}
		for i := range out {
			if out[i].Latency == nil {
				out[i].Latency = fetched[i].Latency
			}
		}
	}
	return out, nil
}
