package storage

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect captures the differences between the supported SQL backends that
// the repositories care about: placeholder style and a couple of DDL
// fragments.
type Dialect struct {
	Name string
}

// Open connects to the configured backend. The sqlite driver is the
// operational default; postgres is available for shared deployments.
func Open(driver, dsn string) (*sql.DB, Dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite":
		if strings.TrimSpace(dsn) == "" {
			return nil, Dialect{}, errors.New("storage: sqlite dsn is empty")
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, Dialect{}, err
		}
		return db, Dialect{Name: "sqlite"}, nil
	case "postgres", "postgresql":
		if strings.TrimSpace(dsn) == "" {
			return nil, Dialect{}, errors.New("storage: postgres dsn is empty")
		}
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, Dialect{}, err
		}
		return db, Dialect{Name: "postgres"}, nil
	}
	return nil, Dialect{}, errors.New("storage: unsupported driver " + driver)
}

// Rebind rewrites ?-placeholders to the backend's native form. Queries in
// the repositories are written with ? and rebound once.
func (d Dialect) Rebind(query string) string {
	if d.Name != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
