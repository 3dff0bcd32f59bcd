package source

import (
	"context"
	"slices"
	"testing"
)

type fakeSource struct{ closed bool }

func (f *fakeSource) Query(context.Context, string, ...any) (Rows, error) { return nil, nil }
func (f *fakeSource) Close()                                             { f.closed = true }

// TestRegisterAndNew verifies that a registered backend is returned by New
// and listed by ListKinds.
func TestRegisterAndNew(t *testing.T) {
	t.Parallel()

	kind := "fake"
	Register(kind, func(ctx context.Context, cfg Config) (Source, error) {
		return &fakeSource{}, nil
	})

	src, err := New(context.Background(), Config{Kind: kind})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if src == nil {
		t.Fatalf("New returned nil source")
	}
	if !slices.Contains(ListKinds(), kind) {
		t.Fatalf("registered kind %q not present in ListKinds: %v", kind, ListKinds())
	}
}

// TestNewUnsupported verifies that unknown kinds return a helpful error.
func TestNewUnsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	if err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
	if got, want := err.Error(), "unsupported source.kind=does-not-exist"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
}

// TestRegisterOverride verifies that re-registering a kind replaces the
// previous factory and that Config reaches the factory unchanged.
func TestRegisterOverride(t *testing.T) {
	t.Parallel()

	kind := "override"
	var got Config
	Register(kind, func(ctx context.Context, cfg Config) (Source, error) {
		t.Error("first factory called after override")
		return nil, nil
	})
	Register(kind, func(ctx context.Context, cfg Config) (Source, error) {
		got = cfg
		return &fakeSource{}, nil
	})

	want := Config{Kind: kind, DSN: "x", MaxConns: 3}
	if _, err := New(context.Background(), want); err != nil {
		t.Fatalf("New error: %v", err)
	}
	if got != want {
		t.Fatalf("factory saw %+v, want %+v", got, want)
	}
}
