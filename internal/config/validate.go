// This file adds a lightweight linter for Export values. It performs static
// checks over a decoded Export and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"recordcsv/internal/buffer"
	"recordcsv/internal/sink"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "jobs[1].output.path").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether issues contains at least one error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// knownSources lists kinds the stock binary registers. Unknown kinds are only
// warnings because a custom build may register more.
var knownSources = map[string]struct{}{
	"postgres":  {},
	"sqlite":    {},
	"mysql":     {},
	"mssql":     {},
	"sqlserver": {},
	"csv":       {},
}

// ValidateExport performs static validation of e. It does not mutate e.
func ValidateExport(e Export) []Issue {
	var issues []Issue

	if len(e.Jobs) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "jobs",
			Message:  "at least one job is required",
		})
	}

	names := map[string]int{}
	paths := map[string]int{}
	for i, j := range e.Jobs {
		p := fmt.Sprintf("jobs[%d]", i)
		issues = append(issues, validateJob(p, j)...)

		if j.Name != "" {
			if prev, ok := names[j.Name]; ok {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     p + ".name",
					Message:  fmt.Sprintf("duplicate job name %q (also jobs[%d])", j.Name, prev),
				})
			} else {
				names[j.Name] = i
			}
		}
		if j.Output.Path != "" {
			clean := filepath.Clean(j.Output.Path)
			if prev, ok := paths[clean]; ok {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     p + ".output.path",
					Message:  fmt.Sprintf("output %q is also written by jobs[%d]", j.Output.Path, prev),
				})
			} else {
				paths[clean] = i
			}
		}
	}

	issues = append(issues, validateRuntime(e.Runtime)...)
	issues = append(issues, validateMetrics(e.Metrics)...)
	return issues
}

func validateJob(p string, j Job) []Issue {
	var issues []Issue

	if strings.TrimSpace(j.Name) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p + ".name",
			Message:  "name must not be empty; it labels logs and metrics",
		})
	}

	s := j.Source
	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p + ".source.kind",
			Message:  "source.kind must not be empty",
		})
	} else if _, ok := knownSources[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     p + ".source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p + ".source.dsn",
			Message:  "source.dsn must not be empty",
		})
	}
	if strings.TrimSpace(s.Query) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p + ".source.query",
			Message:  "source.query must not be empty",
		})
	}
	if s.Options.Int("max_conns", 0) < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p + ".source.options.max_conns",
			Message:  "max_conns must not be negative",
		})
	}

	o := j.Output
	if strings.TrimSpace(o.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p + ".output.path",
			Message:  "output.path must not be empty",
		})
	}
	cs, err := sink.ParseCharset(o.Encoding)
	if err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p + ".output.encoding",
			Message:  err.Error(),
		})
	} else if o.BOM && cs != sink.CharsetUTF16LE && cs != sink.CharsetUTF16BE {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     p + ".output.bom",
			Message:  fmt.Sprintf("bom is only written for UTF-16 outputs; ignored for %q", o.Encoding),
		})
	}
	if o.BufferSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p + ".output.buffer_size",
			Message:  "buffer_size must not be negative",
		})
	}

	c := j.CSV
	if c.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(c.Delimiter)
		switch {
		case size != len(c.Delimiter):
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p + ".csv.delimiter",
				Message:  fmt.Sprintf("delimiter %q must be a single character", c.Delimiter),
			})
		case buffer.CheckSeparator(r) != nil:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p + ".csv.delimiter",
				Message:  fmt.Sprintf("delimiter %q would be ambiguous with quoted or numeric cells", c.Delimiter),
			})
		}
	}
	if _, err := ParseQuote(c.Quote); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     p + ".csv.quote",
			Message:  err.Error(),
		})
	}

	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue
	if r.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must not be negative",
		})
	}
	if r.TimeoutSeconds < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.timeout_seconds",
			Message:  "timeout_seconds must not be negative",
		})
	}
	return issues
}

func validateMetrics(m MetricsConfig) []Issue {
	switch m.Backend {
	case "", "none", "pushgateway", "datadog":
		return nil
	}
	return []Issue{{
		Severity: SeverityWarning,
		Path:     "metrics.backend",
		Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
	}}
}
