package csvfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"recordcsv/internal/source"
)

func writeCSV(tb testing.TB, content string) string {
	tb.Helper()
	p := filepath.Join(tb.TempDir(), "in.csv")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		tb.Fatalf("write test file: %v", err)
	}
	return p
}

func collect(tb testing.TB, src source.Source, query string) ([]string, [][]any) {
	tb.Helper()
	rs, err := src.Query(context.Background(), query)
	if err != nil {
		tb.Fatalf("query: %v", err)
	}
	defer rs.Close()
	var out [][]any
	for rs.Next() {
		v, err := rs.Values()
		if err != nil {
			tb.Fatal(err)
		}
		out = append(out, slices.Clone([]any(v)))
	}
	if err := rs.Err(); err != nil {
		tb.Fatal(err)
	}
	return rs.Columns(), out
}

func TestRegistered(t *testing.T) {
	t.Parallel()

	if !slices.Contains(source.ListKinds(), "csv") {
		t.Fatalf("csv not registered: %v", source.ListKinds())
	}
}

func TestQueryAllColumns(t *testing.T) {
	t.Parallel()

	p := writeCSV(t, "\uFEFFid,name,note\n1,\"a, b\",\n2,c,x\n")
	src, err := Open(context.Background(), source.Config{DSN: p})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	cols, rows := collect(t, src, "*")
	if !slices.Equal(cols, []string{"id", "name", "note"}) {
		t.Fatalf("columns %q", cols)
	}
	want := [][]any{{"1", "a, b", nil}, {"2", "c", "x"}}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows", len(rows))
	}
	for i := range want {
		if !slices.Equal(rows[i], want[i]) {
			t.Fatalf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestQuerySelectsAndReorders(t *testing.T) {
	t.Parallel()

	p := writeCSV(t, "a;b;c\n 1 ;2;3\n4;5\n")
	src, err := Open(context.Background(), source.Config{DSN: p + "?comma=%3B&trim_space=true"})
	if err != nil {
		t.Fatal(err)
	}
	cols, rows := collect(t, src, "c, a")
	if !slices.Equal(cols, []string{"c", "a"}) {
		t.Fatalf("columns %q", cols)
	}
	if !slices.Equal(rows[0], []any{"3", "1"}) || !slices.Equal(rows[1], []any{nil, "4"}) {
		t.Fatalf("rows %v", rows)
	}
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	p := writeCSV(t, "a\n")
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []struct {
		name    string
		ctx     context.Context
		dsn     string
		wantIs  error
		wantSub string
	}{
		{name: "empty", ctx: context.Background(), dsn: "", wantSub: "empty file path"},
		{name: "missing", ctx: context.Background(), dsn: p + ".nope", wantIs: os.ErrNotExist},
		{name: "bad_comma", ctx: context.Background(), dsn: p + "?comma=ab", wantSub: "single character"},
		{name: "bad_bool", ctx: context.Background(), dsn: p + "?lazy_quotes=maybe", wantSub: "lazy_quotes"},
		{name: "unknown_option", ctx: context.Background(), dsn: p + "?sep=x", wantSub: "unknown option"},
		{name: "canceled", ctx: canceled, dsn: p, wantIs: context.Canceled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Open(tc.ctx, source.Config{DSN: tc.dsn})
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantIs != nil && !errors.Is(err, tc.wantIs) {
				t.Fatalf("err = %v, want %v", err, tc.wantIs)
			}
			if tc.wantSub != "" && !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("err = %v, want substring %q", err, tc.wantSub)
			}
		})
	}
}

func TestQueryErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	empty, err := Open(ctx, source.Config{DSN: writeCSV(t, "")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := empty.Query(ctx, "*"); err == nil || !strings.Contains(err.Error(), "no header") {
		t.Fatalf("empty file: %v", err)
	}

	src, err := Open(ctx, source.Config{DSN: writeCSV(t, "a,b\n1,2\n")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.Query(ctx, "a, z"); err == nil || !strings.Contains(err.Error(), `"z"`) {
		t.Fatalf("unknown column: %v", err)
	}
	if _, err := src.Query(ctx, "*", 1); err == nil {
		t.Fatal("args accepted")
	}
}

func TestMalformedRowSurfacesErr(t *testing.T) {
	t.Parallel()

	src, err := Open(context.Background(), source.Config{DSN: writeCSV(t, "a\n\"ok\"\n\"bad\"x\n")})
	if err != nil {
		t.Fatal(err)
	}
	rs, err := src.Query(context.Background(), "*")
	if err != nil {
		t.Fatal(err)
	}
	defer rs.Close()
	n := 0
	for rs.Next() {
		n++
	}
	if n != 1 || rs.Err() == nil {
		t.Fatalf("rows=%d err=%v", n, rs.Err())
	}
}
