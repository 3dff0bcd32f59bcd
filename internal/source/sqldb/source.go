// Package sqldb registers source kinds served through database/sql:
//
//	sqlite     modernc.org/sqlite (pure Go, no cgo)
//	mysql      github.com/go-sql-driver/mysql
//	mssql      github.com/microsoft/go-mssqldb (alias: sqlserver)
//
// Rows are scanned into *any, so values arrive as the driver's native scan
// types. The mysql DSN is rewritten with parseTime=true so DATETIME columns
// come back as time.Time instead of raw bytes.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	_ "modernc.org/sqlite"

	"recordcsv/internal/source"
)

func init() {
	for kind, driver := range drivers {
		kind, driver := kind, driver
		source.Register(kind, func(ctx context.Context, cfg source.Config) (source.Source, error) {
			s, err := newSource(ctx, driver, cfg)
			if err != nil {
				return nil, err
			}
			return s, nil
		})
	}
}

// drivers maps source kinds to database/sql driver names.
var drivers = map[string]string{
	"sqlite":    "sqlite",
	"mysql":     "mysql",
	"mssql":     "sqlserver",
	"sqlserver": "sqlserver",
}

// newSource is a test hook.
var newSource = Open

// Source is a database/sql backed source.
type Source struct {
	db     *sql.DB
	driver string
}

// Open validates cfg.DSN for driver, opens the pool and pings it.
func Open(ctx context.Context, driver string, cfg source.Config) (*Source, error) {
	dsn, err := normalizeDSN(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", driver, err)
	}
	return &Source{db: db, driver: driver}, nil
}

func normalizeDSN(driver, dsn string) (string, error) {
	switch driver {
	case "sqlserver":
		if _, err := msdsn.Parse(dsn); err != nil {
			return "", fmt.Errorf("mssql dsn: %w", err)
		}
	case "mysql":
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("mysql dsn: %w", err)
		}
		mc.ParseTime = true
		return mc.FormatDSN(), nil
	case "sqlite":
		if dsn == "" {
			return "", fmt.Errorf("sqlite dsn: empty")
		}
	}
	return dsn, nil
}

// DB exposes the pool, mainly for tests that need to seed data.
func (s *Source) DB() *sql.DB { return s.db }

// Query runs q and returns its rows.
func (s *Source) Query(ctx context.Context, q string, args ...any) (source.Rows, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", s.driver, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("%s: columns: %w", s.driver, err)
	}
	r := &sqlRows{rows: rows, cols: cols, vals: make(source.Row, len(cols)), ptrs: make([]any, len(cols))}
	for i := range r.vals {
		r.ptrs[i] = &r.vals[i]
	}
	return r, nil
}

func (s *Source) Close() { _ = s.db.Close() }

type sqlRows struct {
	rows *sql.Rows
	cols []string
	vals source.Row
	ptrs []any
}

func (r *sqlRows) Columns() []string { return r.cols }
func (r *sqlRows) Next() bool        { return r.rows.Next() }
func (r *sqlRows) Err() error        { return r.rows.Err() }
func (r *sqlRows) Close()            { _ = r.rows.Close() }

func (r *sqlRows) Values() (source.Row, error) {
	clear(r.vals)
	if err := r.rows.Scan(r.ptrs...); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return r.vals, nil
}
