// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from export runs.
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - Concrete metric systems live in subpackages (prompush, datadog) so the
//     rest of the codebase depends only on this interface.
//
// Every metric carries an "export" label naming the job it belongs to.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metric names emitted by this package.
const (
	StepTotal    = "csv_step_total"
	StepDuration = "csv_step_duration_seconds"
	RecordsTotal = "csv_records_total"
	BytesTotal   = "csv_bytes_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

type holder struct{ Backend }

var backend atomic.Pointer[holder]

func init() { backend.Store(&holder{nopBackend{}}) }

func current() Backend { return backend.Load().Backend }

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend.Store(&holder{b})
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep measures latency and success/failure of one step of a job
// (e.g. "connect", "query", "write").
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"export": job,
		"step":   step,
		"status": status,
	}

	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRecords increments a record-level counter for the given job and kind.
//
// Kinds used by the export runner:
//   - "written"
//   - "dropped" (removed by the dedup writer)
func RecordRecords(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{
		"export": job,
		"kind":   kind,
	})
}

// RecordBytes increments the output byte counter for the given job.
func RecordBytes(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BytesTotal, float64(delta), Labels{
		"export": job,
	})
}
