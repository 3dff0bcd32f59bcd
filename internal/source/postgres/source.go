// Package postgres registers the "postgres" source kind, backed by a pgx
// connection pool. Import it for side effects (or import source/all):
//
//	import _ "recordcsv/internal/source/postgres"
//
// Query results come back through pgx's native decoding, so numeric columns
// arrive as pgtype.Numeric, uuid columns as [16]byte and timestamptz as
// time.Time. The CSV projection knows all three.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"recordcsv/internal/source"
)

func init() {
	source.Register("postgres", func(ctx context.Context, cfg source.Config) (source.Source, error) {
		s, err := newSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// newSource is a test hook.
var newSource = Open

// Source reads from PostgreSQL.
type Source struct {
	pool *pgxpool.Pool
}

// Open connects a pool to cfg.DSN and verifies it with a ping.
func Open(ctx context.Context, cfg source.Config) (*Source, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = int32(cfg.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Source{pool: pool}, nil
}

// Query runs q and returns its rows.
func (s *Source) Query(ctx context.Context, q string, args ...any) (source.Rows, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}
	return &pgRows{rows: rows, cols: cols}, nil
}

func (s *Source) Close() { s.pool.Close() }

type pgRows struct {
	rows pgx.Rows
	cols []string
}

func (r *pgRows) Columns() []string { return r.cols }
func (r *pgRows) Next() bool        { return r.rows.Next() }
func (r *pgRows) Err() error        { return r.rows.Err() }
func (r *pgRows) Close()            { r.rows.Close() }

func (r *pgRows) Values() (source.Row, error) {
	v, err := r.rows.Values()
	if err != nil {
		return nil, fmt.Errorf("postgres: values: %w", err)
	}
	return v, nil
}
