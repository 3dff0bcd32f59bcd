package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"recordcsv/internal/config"
	"recordcsv/internal/source"
	_ "recordcsv/internal/source/csvfile"
	"recordcsv/internal/source/sqldb"
)

// seedDB creates a sqlite file with an orders table and returns its DSN.
func seedDB(tb testing.TB) string {
	tb.Helper()
	dsn := "file:" + filepath.Join(tb.TempDir(), "shop.db")
	src, err := sqldb.Open(context.Background(), "sqlite", source.Config{DSN: dsn})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	defer src.Close()
	if _, err := src.DB().Exec(`
		CREATE TABLE orders (id INTEGER, buyer TEXT, total REAL, note TEXT);
		INSERT INTO orders VALUES
			(1, 'ann', 12.5, NULL),
			(2, 'bo,b', 3, 'say "hi"'),
			(1, 'ann', 12.5, NULL),
			(3, 'café', 0.25, '');`); err != nil {
		tb.Fatalf("seed: %v", err)
	}
	return dsn
}

func sqliteJob(dsn, out string) config.Job {
	return config.Job{
		Name: "orders",
		Source: config.Source{
			Kind:  "sqlite",
			DSN:   dsn,
			Query: "SELECT id, buyer, total, note FROM orders ORDER BY rowid",
		},
		Output: config.Output{Path: out},
		CSV:    config.CSV{Quote: "minimal"},
	}
}

func readFile(tb testing.TB, path string) []byte {
	tb.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		tb.Fatal(err)
	}
	return b
}

const wantOrders = "id,buyer,total,note\n" +
	"1,ann,12.5,\n" +
	"2,\"bo,b\",3,\"say \"\"hi\"\"\"\n" +
	"1,ann,12.5,\n" +
	"3,café,0.25,\n"

func TestRunJobSQLite(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out", "orders.csv")
	res, err := RunJob(context.Background(), sqliteJob(seedDB(t), out))
	if err != nil {
		t.Fatal(err)
	}
	got := readFile(t, out)
	if string(got) != wantOrders {
		t.Fatalf("got\n%q\nwant\n%q", got, wantOrders)
	}
	if res.Records != 4 || res.Dropped != 0 {
		t.Fatalf("records=%d dropped=%d", res.Records, res.Dropped)
	}
	if res.Bytes != int64(len(got)) || res.Digest != xxh3.Hash(got) {
		t.Fatalf("bytes=%d digest=%x", res.Bytes, res.Digest)
	}
	if strings.Join(res.Columns, ",") != "id,buyer,total,note" {
		t.Fatalf("columns %v", res.Columns)
	}
}

func TestRunJobDedup(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "orders.csv")
	job := sqliteJob(seedDB(t), out)
	job.Output.Dedup = true
	res, err := RunJob(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	want := "id,buyer,total,note\n1,ann,12.5,\n2,\"bo,b\",3,\"say \"\"hi\"\"\"\n3,café,0.25,\n"
	if got := string(readFile(t, out)); got != want {
		t.Fatalf("got %q", got)
	}
	if res.Records != 3 || res.Dropped != 1 {
		t.Fatalf("records=%d dropped=%d", res.Records, res.Dropped)
	}
}

func TestRunJobUTF16(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "orders.csv")
	job := sqliteJob(seedDB(t), out)
	job.Output.Encoding = "utf-16be"
	job.Output.BOM = true
	if _, err := RunJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	raw := readFile(t, out)
	if raw[0] != 0xFE || raw[1] != 0xFF {
		t.Fatalf("missing BOM: % x", raw[:2])
	}
	dec, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(dec) != wantOrders {
		t.Fatalf("got %q", dec)
	}
}

func TestRunJobUTF16BOMDedupWithoutHeader(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "orders.csv")
	job := sqliteJob(seedDB(t), out)
	job.Output.Encoding = "utf-16le"
	job.Output.BOM = true
	job.Output.Dedup = true
	noHeader := false
	job.CSV.Header = &noHeader
	res, err := RunJob(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if res.Records != 3 || res.Dropped != 1 {
		t.Fatalf("records=%d dropped=%d", res.Records, res.Dropped)
	}
	raw := readFile(t, out)
	if raw[0] != 0xFF || raw[1] != 0xFE {
		t.Fatalf("missing BOM: % x", raw[:2])
	}
	dec, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(raw)
	if err != nil {
		t.Fatal(err)
	}
	want := "1,ann,12.5,\n2,\"bo,b\",3,\"say \"\"hi\"\"\"\n3,café,0.25,\n"
	if string(dec) != want {
		t.Fatalf("got %q want %q", dec, want)
	}
}

func TestRunJobLegacyCharset(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "orders.csv")
	job := sqliteJob(seedDB(t), out)
	job.Output.Encoding = "windows-1252"
	job.CSV = config.CSV{Delimiter: ";", Quote: "minimal"}
	if _, err := RunJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	raw := readFile(t, out)
	if !strings.Contains(string(raw), "3;caf\xe9;0.25;\n") {
		t.Fatalf("not windows-1252: %q", raw)
	}
	back, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(back), "id;buyer;total;note\n") {
		t.Fatalf("got %q", back)
	}
}

func TestRunJobCSVFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	if err := os.WriteFile(in, []byte("\uFEFFid;name\n1;café\n2;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out.csv")
	job := config.Job{
		Name:   "recode",
		Source: config.Source{Kind: "csv", DSN: in + "?comma=%3B", Query: "*"},
		Output: config.Output{Path: out},
	}
	res, err := RunJob(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	want := "id,name\n\"1\",\"café\"\n\"2\",\n"
	if got := string(readFile(t, out)); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if res.Records != 2 {
		t.Fatalf("records=%d", res.Records)
	}
}

func TestRunJobQueryArgs(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "orders.csv")
	job := sqliteJob(seedDB(t), out)
	job.Source.Query = "SELECT buyer FROM orders WHERE id = ? ORDER BY rowid"
	job.Source.Options = config.Options{"args": []any{"2"}}
	f := false
	job.CSV.Header = &f
	if _, err := RunJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if got := string(readFile(t, out)); got != "\"bo,b\"\n" {
		t.Fatalf("got %q", got)
	}
}

func TestRunJobQueryErrorLeavesNoFile(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "orders.csv")
	job := sqliteJob(seedDB(t), out)
	job.Source.Query = "SELECT * FROM missing"
	if _, err := RunJob(context.Background(), job); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output exists after failure: %v", err)
	}
}

// endless is a source whose result never runs out.
type endless struct{ onRow func(n int) }

func (e *endless) Query(context.Context, string, ...any) (source.Rows, error) {
	return &endlessRows{onRow: e.onRow}, nil
}
func (e *endless) Close() {}

type endlessRows struct {
	n     int
	onRow func(n int)
	row   source.Row
}

func (r *endlessRows) Columns() []string { return []string{"n"} }
func (r *endlessRows) Next() bool        { return true }
func (r *endlessRows) Err() error        { return nil }
func (r *endlessRows) Close()            {}

func (r *endlessRows) Values() (source.Row, error) {
	r.n++
	r.onRow(r.n)
	if r.row == nil {
		r.row = make(source.Row, 1)
	}
	r.row[0] = int64(r.n)
	return r.row, nil
}

// Not parallel: swaps the source factory.
func TestRunCancelsBetweenRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orig := openSource
	t.Cleanup(func() { openSource = orig })
	openSource = func(context.Context, source.Config) (source.Source, error) {
		return &endless{onRow: func(n int) {
			if n == 100 {
				cancel()
			}
		}}, nil
	}

	out := filepath.Join(t.TempDir(), "n.csv")
	e := config.Export{Jobs: []config.Job{{Name: "n", Source: config.Source{Kind: "fake"}, Output: config.Output{Path: out}}}}
	_, err := Run(ctx, e)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("partial output left behind: %v", err)
	}
}

// Not parallel: swaps the source factory.
func TestRunReportsConnectFailure(t *testing.T) {
	orig := openSource
	t.Cleanup(func() { openSource = orig })
	boom := errors.New("boom")
	openSource = func(context.Context, source.Config) (source.Source, error) { return nil, boom }

	_, err := Run(context.Background(), config.Export{Jobs: []config.Job{{Name: "x"}}})
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "job x: connect") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunManyJobs(t *testing.T) {
	t.Parallel()

	dsn := seedDB(t)
	dir := t.TempDir()
	var e config.Export
	e.Runtime.Workers = 2
	for _, name := range []string{"a", "b", "c"} {
		j := sqliteJob(dsn, filepath.Join(dir, name+".csv"))
		j.Name = name
		e.Jobs = append(e.Jobs, j)
	}
	results, err := Run(context.Background(), e)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if r.Job != e.Jobs[i].Name || r.Records != 4 {
			t.Fatalf("result %d = %+v", i, r)
		}
		if r.Digest != results[0].Digest {
			t.Fatalf("digest of %s differs", r.Job)
		}
	}
}

func TestNewSerializerRejects(t *testing.T) {
	t.Parallel()

	if _, err := NewSerializer([]string{"a", ""}, config.CSV{}, false); err == nil {
		t.Fatal("empty column name accepted")
	}
	if _, err := NewSerializer([]string{"a"}, config.CSV{Quote: "bogus"}, false); err == nil {
		t.Fatal("bad quote accepted")
	}
}
