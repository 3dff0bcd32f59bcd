// Package source is a backend-agnostic factory for row sources: databases
// the export runner reads query results from. Backends register themselves
// at init time (see source/all); callers only depend on this package.
package source

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config describes how to reach a source.
type Config struct {
	Kind string // backend name, e.g. "postgres", "sqlite"
	DSN  string // driver connection string
	// MaxConns caps the backend connection pool; 0 keeps the driver default.
	MaxConns int
}

// Row is one result row, in column order. Values are whatever the driver
// scans into an any: int64, float64, string, []byte, time.Time, bool, nil,
// plus driver specific types such as pgtype.Numeric or [16]byte UUIDs.
type Row []any

// Rows iterates a query result. The slice returned by Values is reused by
// the next call.
type Rows interface {
	Columns() []string
	Next() bool
	Values() (Row, error)
	Err() error
	Close()
}

// Source runs read queries.
type Source interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Close()
}

// Factory opens a Source for cfg.
type Factory func(ctx context.Context, cfg Config) (Source, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Registering a kind again
// replaces the previous factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Source of cfg.Kind.
func New(ctx context.Context, cfg Config) (Source, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported source.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
