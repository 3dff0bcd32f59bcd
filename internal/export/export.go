// Package export runs configured export jobs: each job queries a row source
// and streams the result through the CSV serializer into one output file.
//
// Per job the writer stack is
//
//	serializer → [Dedup] → charset encoder → Digest → buffered File   (byte outputs)
//	serializer → UTF16Writer → [Dedup] → Digest → buffered File       (UTF-16 outputs)
//
// A UTF-16 byte order mark goes straight to the Digest so that Dedup only
// ever hashes records.
//
// The serializer flushes once per record, so the dedup writer sees whole
// records. Jobs run concurrently, bounded by runtime.workers; the first
// failing job cancels the others. A failed job removes its partial output.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"recordcsv/internal/config"
	"recordcsv/internal/metrics"
	"recordcsv/internal/sink"
	"recordcsv/internal/source"
	"recordcsv/pkg/serializer"
)

// Result summarises one finished job.
type Result struct {
	Job     string
	Path    string
	Columns []string
	// Records counts data records that reached the output; Dropped counts
	// those removed as duplicates.
	Records int64
	Dropped int64
	Bytes   int64
	Digest  uint64
	Elapsed time.Duration
}

// openSource is a test seam.
var openSource = source.New

// Run executes every job in e and returns one Result per job, in job order.
// Results of jobs that did not finish are zero apart from Job and Path.
func Run(ctx context.Context, e config.Export) ([]Result, error) {
	if e.Runtime.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.Runtime.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	results := make([]Result, len(e.Jobs))
	g, gctx := errgroup.WithContext(ctx)
	if e.Runtime.Workers > 0 {
		g.SetLimit(e.Runtime.Workers)
	}
	for i, job := range e.Jobs {
		g.Go(func() error {
			res, err := RunJob(gctx, job)
			results[i] = res
			if err != nil {
				return fmt.Errorf("job %s: %w", job.Name, err)
			}
			return nil
		})
	}
	return results, g.Wait()
}

// RunJob executes a single job.
func RunJob(ctx context.Context, job config.Job) (res Result, err error) {
	res = Result{Job: job.Name, Path: job.Output.Path}
	start := time.Now()
	defer func() {
		res.Elapsed = time.Since(start)
		if err == nil {
			logSummary(res)
		}
	}()

	t := time.Now()
	src, err := openSource(ctx, source.Config{
		Kind:     job.Source.Kind,
		DSN:      job.Source.DSN,
		MaxConns: job.Source.Options.Int("max_conns", 0),
	})
	metrics.RecordStep(job.Name, "connect", err, time.Since(t))
	if err != nil {
		return res, fmt.Errorf("connect: %w", err)
	}
	defer src.Close()

	var args []any
	for _, a := range job.Source.Options.StringSlice("args") {
		args = append(args, a)
	}
	t = time.Now()
	rows, err := src.Query(ctx, job.Source.Query, args...)
	metrics.RecordStep(job.Name, "query", err, time.Since(t))
	if err != nil {
		return res, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	res.Columns = rows.Columns()

	t = time.Now()
	err = write(ctx, job, rows, &res)
	metrics.RecordStep(job.Name, "write", err, time.Since(t))
	if err != nil {
		return res, err
	}

	metrics.RecordRecords(job.Name, "written", res.Records)
	metrics.RecordRecords(job.Name, "dropped", res.Dropped)
	metrics.RecordBytes(job.Name, res.Bytes)
	return res, nil
}

// NewSerializer builds a serializer for rows with the given columns. Every
// column is dynamic: the cell format follows the driver's value type.
func NewSerializer(columns []string, c config.CSV, utc bool) (*serializer.Serializer, error) {
	opts, err := c.SerializerOptions()
	if err != nil {
		return nil, err
	}
	var fieldOpts []serializer.FieldOption
	if utc {
		fieldOpts = append(fieldOpts, serializer.UTC())
	}
	specs := make([]serializer.FieldSpec[source.Row], len(columns))
	for i, name := range columns {
		specs[i] = serializer.Field(name, func(r source.Row) any { return r[i] }, fieldOpts...)
	}
	s := serializer.New(opts...)
	if err := s.Add(serializer.Fields(specs...)); err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}
	return s, nil
}

// stream yields rows until the result is exhausted, ctx is done or a row
// fails to scan. The error is left in *errp.
func stream(ctx context.Context, rows source.Rows, n *int64, errp *error) iter.Seq[source.Row] {
	return func(yield func(source.Row) bool) {
		for rows.Next() {
			if err := ctx.Err(); err != nil {
				*errp = err
				return
			}
			v, err := rows.Values()
			if err != nil {
				*errp = err
				return
			}
			*n++
			if !yield(v) {
				return
			}
		}
		*errp = rows.Err()
	}
}

func write(ctx context.Context, job config.Job, rows source.Rows, res *Result) (err error) {
	s, err := NewSerializer(res.Columns, job.CSV, job.Source.Options.Bool("utc", false))
	if err != nil {
		return err
	}
	cs, err := sink.ParseCharset(job.Output.Encoding)
	if err != nil {
		return err
	}

	f, err := sink.Create(job.Output.Path, job.Output.BufferSize)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(f.Path())
		}
	}()

	digest := sink.NewDigest(f)
	var dedup *sink.Dedup
	withDedup := func(w io.Writer) io.Writer {
		if !job.Output.Dedup {
			return w
		}
		dedup = sink.NewDedup(w)
		return dedup
	}

	var (
		n       int64
		iterErr error
		seq     = stream(ctx, rows, &n, &iterErr)
	)
	switch cs {
	case sink.CharsetUTF16LE, sink.CharsetUTF16BE:
		bigEndian := cs == sink.CharsetUTF16BE
		if job.Output.BOM {
			if _, err = digest.Write(sink.UTF16BOM(bigEndian)); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
		uw := sink.NewUTF16Writer(withDedup(digest), bigEndian, false)
		err = s.WriteUnits(uw, seq)
	default:
		var enc io.WriteCloser
		if enc, err = sink.Encode(digest, job.Output.Encoding); err != nil {
			return err
		}
		err = s.WriteBytes(withDedup(enc), seq)
		if cerr := enc.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("encode: %w", cerr)
		}
	}
	if err = errors.Join(err, iterErr); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	res.Records = n
	if dedup != nil {
		res.Dropped = dedup.Dropped()
		res.Records -= res.Dropped
	}
	res.Digest = digest.Sum64()
	res.Bytes = digest.Bytes()
	return nil
}

func logSummary(r Result) {
	rate := float64(r.Records) / max(r.Elapsed.Seconds(), 1e-9)
	log.Printf(
		"export: job=%s path=%s records=%s dropped=%s bytes=%s rate=%s/s elapsed=%s xxh3=%016x",
		r.Job,
		r.Path,
		humanize.Comma(r.Records),
		humanize.Comma(r.Dropped),
		humanize.Bytes(uint64(r.Bytes)),
		humanize.CommafWithDigits(rate, 0),
		r.Elapsed.Truncate(time.Millisecond),
		r.Digest,
	)
}
