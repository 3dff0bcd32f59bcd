// Package csvfile registers a "csv" source that reads an existing CSV file,
// so an export job can re-encode, re-delimit or deduplicate it.
//
// The DSN is the file path, optionally followed by reader options in query
// string form:
//
//	data/in.csv?comma=%3B&lazy_quotes=true&trim_space=true
//
// The first line is the header. The query is either "*" for every column or
// a comma separated list of header names, which selects and orders columns.
// Cells are strings; empty cells are NULL.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"recordcsv/internal/source"
)

const utf8BOM = "\uFEFF"

func init() {
	source.Register("csv", func(ctx context.Context, cfg source.Config) (source.Source, error) {
		s, err := newSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

var newSource = Open

// Source reads one CSV file. Each Query reopens it.
type Source struct {
	path      string
	comma     rune
	lazy      bool
	trimSpace bool
}

// Open parses the DSN and checks that the file exists.
func Open(ctx context.Context, cfg source.Config) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, rawOpts, _ := strings.Cut(cfg.DSN, "?")
	if path == "" {
		return nil, fmt.Errorf("csv: empty file path")
	}
	s := &Source{path: path, comma: ','}
	if rawOpts != "" {
		q, err := url.ParseQuery(rawOpts)
		if err != nil {
			return nil, fmt.Errorf("csv: parse options: %w", err)
		}
		if err := s.applyOptions(q); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	return s, nil
}

func (s *Source) applyOptions(q url.Values) error {
	var err error
	for k, vs := range q {
		v := vs[len(vs)-1]
		switch k {
		case "comma":
			r, size := utf8.DecodeRuneInString(v)
			if size == 0 || size != len(v) || r == utf8.RuneError {
				return fmt.Errorf("csv: comma must be a single character, got %q", v)
			}
			s.comma = r
		case "lazy_quotes":
			s.lazy, err = strconv.ParseBool(v)
		case "trim_space":
			s.trimSpace, err = strconv.ParseBool(v)
		default:
			return fmt.Errorf("csv: unknown option %q", k)
		}
		if err != nil {
			return fmt.Errorf("csv: option %s: %w", k, err)
		}
	}
	return nil
}

// Query opens the file and reads its header. Args are not supported.
func (s *Source) Query(ctx context.Context, query string, args ...any) (source.Rows, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("csv: query arguments are not supported")
	}
	f, err := openFile(ctx, s.path)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(f)
	cr.Comma = s.comma
	cr.LazyQuotes = s.lazy
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	hdr, err := cr.Read()
	if err == io.EOF {
		f.Close()
		return nil, fmt.Errorf("csv: %s has no header", s.path)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	header := stripHeaderBOM(clone(hdr))
	if s.trimSpace {
		for i := range header {
			header[i] = strings.TrimSpace(header[i])
		}
	}

	cols, idx, err := selectColumns(header, query)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &rows{f: f, r: cr, cols: cols, idx: idx, trim: s.trimSpace, vals: make(source.Row, len(idx))}, nil
}

// Close is a no-op; files are closed with their Rows.
func (s *Source) Close() {}

func openFile(ctx context.Context, path string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// stripHeaderBOM removes a UTF-8 BOM from the first header cell.
func stripHeaderBOM(headers []string) []string {
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}
	return headers
}

func clone(rec []string) []string {
	out := make([]string, len(rec))
	copy(out, rec)
	return out
}

func selectColumns(header []string, query string) ([]string, []int, error) {
	query = strings.TrimSpace(query)
	if query == "*" {
		idx := make([]int, len(header))
		for i := range idx {
			idx[i] = i
		}
		return header, idx, nil
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	var (
		cols []string
		idx  []int
	)
	for _, name := range strings.Split(query, ",") {
		name = strings.TrimSpace(name)
		i, ok := pos[name]
		if !ok {
			return nil, nil, fmt.Errorf("csv: unknown column %q", name)
		}
		cols = append(cols, name)
		idx = append(idx, i)
	}
	return cols, idx, nil
}

type rows struct {
	f    *os.File
	r    *csv.Reader
	cols []string
	idx  []int
	trim bool
	rec  []string
	vals source.Row
	err  error
}

func (r *rows) Columns() []string { return r.cols }

func (r *rows) Next() bool {
	if r.err != nil {
		return false
	}
	rec, err := r.r.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		r.err = fmt.Errorf("csv: %w", err)
		return false
	}
	r.rec = rec
	return true
}

func (r *rows) Values() (source.Row, error) {
	for t, si := range r.idx {
		if si >= len(r.rec) {
			r.vals[t] = nil
			continue
		}
		v := r.rec[si]
		if r.trim {
			v = strings.TrimSpace(v)
		}
		if v == "" {
			r.vals[t] = nil
		} else {
			r.vals[t] = v
		}
	}
	return r.vals, nil
}

func (r *rows) Err() error { return r.err }

func (r *rows) Close() { r.f.Close() }
