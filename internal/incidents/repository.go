package incidents

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"satqm/internal/model"
	"satqm/internal/patterns"
	"satqm/internal/storage"
)

type Repository struct {
	db       *sql.DB
	dialect  storage.Dialect
	patterns *patterns.Map[[]*regexp.Regexp]
}

// NewRepository builds the announcement store. The pattern map associates
// product names with affected-entity regexes; announcements are relevant to
// a product when any entity matches any pattern.
func NewRepository(db *sql.DB, dialect storage.Dialect, pm *patterns.Map[[]*regexp.Regexp]) *Repository {
	return &Repository{db: db, dialect: dialect, patterns: pm}
}

func (r *Repository) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS announcement (
			number INTEGER NOT NULL,
			importsource TEXT NOT NULL,
			revision INTEGER NOT NULL,
			subject TEXT NOT NULL,
			start_time BIGINT NOT NULL,
			end_time BIGINT,
			impact TEXT NOT NULL,
			ann_type TEXT NOT NULL,
			status TEXT,
			PRIMARY KEY (number, importsource)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_announcement_window ON announcement(start_time, end_time)`,
		`CREATE TABLE IF NOT EXISTS affected_entity (
			ann_number INTEGER NOT NULL,
			ann_importsource TEXT NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (ann_number, ann_importsource, name)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("incidents: init: %w", err)
		}
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Add upserts announcements by (number, importsource); the affected-entity
// set is replaced on re-import.
func (r *Repository) Add(ctx context.Context, anns []model.Announcement) error {
	if len(anns) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	upsert := r.dialect.Rebind(
		`INSERT INTO announcement
			(number, importsource, revision, subject, start_time, end_time, impact, ann_type, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (number, importsource)
		DO UPDATE SET
			revision = excluded.revision,
			subject = excluded.subject,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			impact = excluded.impact,
			ann_type = excluded.ann_type,
			status = excluded.status`)
	clearEntities := r.dialect.Rebind(
		`DELETE FROM affected_entity WHERE ann_number = ? AND ann_importsource = ?`)
	insertEntity := r.dialect.Rebind(
		`INSERT INTO affected_entity (ann_number, ann_importsource, name) VALUES (?, ?, ?)
		ON CONFLICT (ann_number, ann_importsource, name) DO NOTHING`)

	for _, ann := range anns {
		var end sql.NullInt64
		if ann.EndTime != nil {
			end = sql.NullInt64{Int64: ann.EndTime.UTC().Unix(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, upsert,
			ann.Number, ann.ImportSource, ann.Revision, ann.Subject,
			ann.StartTime.UTC().Unix(), end,
			string(ann.Impact), string(ann.Type), ann.Status,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("incidents: add: %w", err)
		}
		if _, err := tx.ExecContext(ctx, clearEntities, ann.Number, ann.ImportSource); err != nil {
			_ = tx.Rollback()
			return err
		}
		for _, name := range ann.AffectedEntities {
			if _, err := tx.ExecContext(ctx, insertEntity, ann.Number, ann.ImportSource, name); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
	}
	return tx.Commit()
}

// FindByTimeslot returns the announcements whose validity window contains
// the slot and whose affected entities intersect the product's patterns.
// An open-ended announcement (no end time) stays in effect indefinitely.
func (r *Repository) FindByTimeslot(ctx context.Context, slot time.Time, productName string) ([]model.Announcement, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(
		`SELECT number, importsource, revision, subject, start_time, end_time, impact, ann_type, status
		FROM announcement
		WHERE start_time <= ? AND (end_time >= ? OR end_time IS NULL)
		ORDER BY number, importsource`),
		slot.UTC().Unix(), slot.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("incidents: find: %w", err)
	}
	defer rows.Close()

	var anns []model.Announcement
	for rows.Next() {
		var ann model.Announcement
		var startUnix int64
		var end sql.NullInt64
		var impact, annType string
		var status sql.NullString
		if err := rows.Scan(&ann.Number, &ann.ImportSource, &ann.Revision, &ann.Subject,
			&startUnix, &end, &impact, &annType, &status); err != nil {
			return nil, err
		}
		ann.StartTime = time.Unix(startUnix, 0).UTC()
		if end.Valid {
			endTime := time.Unix(end.Int64, 0).UTC()
			ann.EndTime = &endTime
		}
		ann.Impact = model.Impact(impact)
		ann.Type = model.AnnouncementType(annType)
		ann.Status = status.String
		anns = append(anns, ann)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range anns {
		entities, err := r.entities(ctx, anns[i].Number, anns[i].ImportSource)
		if err != nil {
			return nil, err
		}
		anns[i].AffectedEntities = entities
	}

	if productName == "" || productName == "*" || r.patterns.Empty() {
		return anns, nil
	}
	pats, ok := r.patterns.Lookup(productName)
	if !ok {
		return nil, nil
	}
	var out []model.Announcement
	for _, ann := range anns {
		if entityMatches(ann.AffectedEntities, pats) {
			out = append(out, ann)
		}
	}
	return out, nil
}

func (r *Repository) entities(ctx context.Context, number int, importSource string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(
		`SELECT name FROM affected_entity
		WHERE ann_number = ? AND ann_importsource = ? ORDER BY name`),
		number, importSource)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func entityMatches(entities []string, pats []*regexp.Regexp) bool {
	for _, pat := range pats {
		for _, name := range entities {
			if pat.MatchString(name) {
				return true
			}
		}
	}
	return false
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM announcement`).Scan(&n)
	return n, err
}

func (r *Repository) EntityCount(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT name) FROM affected_entity`).Scan(&n)
	return n, err
}
