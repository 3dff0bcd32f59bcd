// Package config defines the configuration model for csvexport: a list of
// export jobs, each reading one query from a row source and writing it to one
// CSV file, plus runtime and metrics settings.
//
// Files are JSON or YAML (picked by extension). Runtime and metrics knobs can
// be overridden from the environment, so the same job file works across
// deployments.
//
// Example (trimmed):
//
//	{
//	  "jobs": [{
//	    "name":   "orders",
//	    "source": { "kind": "postgres", "dsn": "postgres://...", "query": "SELECT * FROM orders" },
//	    "output": { "path": "out/orders.csv", "encoding": "utf-8", "dedup": false },
//	    "csv":    { "delimiter": ";", "quote": "minimal", "camel_case": false }
//	  }],
//	  "runtime": { "workers": 4 },
//	  "metrics": { "backend": "pushgateway", "pushgateway_url": "http://localhost:9091" }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"recordcsv/pkg/serializer"
)

// Export is the top-level object decoded from a config file.
type Export struct {
	Jobs    []Job         `json:"jobs" yaml:"jobs"`
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// Job exports one query result to one file.
type Job struct {
	// Name labels logs and metrics. Must be unique within a file.
	Name   string `json:"name" yaml:"name"`
	Source Source `json:"source" yaml:"source"`
	Output Output `json:"output" yaml:"output"`
	CSV    CSV    `json:"csv" yaml:"csv"`
}

// Source selects a registered row source and the query to run against it.
type Source struct {
	Kind  string `json:"kind" yaml:"kind"`
	DSN   string `json:"dsn" yaml:"dsn"`
	Query string `json:"query" yaml:"query"`

	// Options is a free-form bag. Recognised keys:
	//   args      ([]string) positional query arguments
	//   max_conns (int)      connection pool cap
	//   utc       (bool)     write date-times converted to UTC
	Options Options `json:"options" yaml:"options"`
}

// Output describes the destination file.
type Output struct {
	Path string `json:"path" yaml:"path"`
	// Encoding is a charset name: utf-8 (default), utf-16le, utf-16be or any
	// WHATWG label such as windows-1252.
	Encoding string `json:"encoding" yaml:"encoding"`
	// BOM writes a byte order mark for UTF-16 outputs.
	BOM bool `json:"bom" yaml:"bom"`
	// Dedup drops records identical to one already written.
	Dedup bool `json:"dedup" yaml:"dedup"`
	// BufferSize is the file write buffer in bytes; 0 uses the default.
	BufferSize int `json:"buffer_size" yaml:"buffer_size"`
}

// CSV holds serializer settings. Zero values keep the serializer defaults.
type CSV struct {
	Delimiter string `json:"delimiter" yaml:"delimiter"`
	Header    *bool  `json:"header" yaml:"header"`
	CamelCase *bool  `json:"camel_case" yaml:"camel_case"`
	// Quote is "always" (default) or "minimal".
	Quote string `json:"quote" yaml:"quote"`
}

// RuntimeConfig controls concurrency.
type RuntimeConfig struct {
	// Workers caps how many jobs run at once; 0 runs them all concurrently.
	Workers int `json:"workers" yaml:"workers" env:"CSVEXPORT_WORKERS"`
	// TimeoutSeconds bounds the whole run; 0 means no limit.
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds" env:"CSVEXPORT_TIMEOUT_SECONDS"`
}

// MetricsConfig selects a metrics backend.
type MetricsConfig struct {
	Backend        string `json:"backend" yaml:"backend" env:"METRICS_BACKEND"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url" env:"PUSHGATEWAY_URL"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr" env:"DD_AGENT_ADDR"`
	// JobName groups pushed metrics; defaults to "csvexport".
	JobName string `json:"job_name" yaml:"job_name" env:"METRICS_JOB_NAME"`
}

// SerializerOptions translates c into serializer options.
func (c CSV) SerializerOptions() ([]serializer.Option, error) {
	var opts []serializer.Option
	if c.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(c.Delimiter)
		if size != len(c.Delimiter) {
			return nil, fmt.Errorf("delimiter %q: must be a single character", c.Delimiter)
		}
		opts = append(opts, serializer.WithDelimiter(r))
	}
	if c.Header != nil {
		opts = append(opts, serializer.WithHeader(*c.Header))
	}
	if c.CamelCase != nil {
		opts = append(opts, serializer.WithCamelCaseHeader(*c.CamelCase))
	}
	q, err := ParseQuote(c.Quote)
	if err != nil {
		return nil, err
	}
	return append(opts, serializer.WithQuote(q)), nil
}

// ParseQuote maps a quote policy name to its value. Empty means "always".
func ParseQuote(s string) (serializer.QuotePolicy, error) {
	switch s {
	case "", "always":
		return serializer.QuoteAlways, nil
	case "minimal":
		return serializer.QuoteMinimal, nil
	}
	return 0, fmt.Errorf("quote %q: want always or minimal", s)
}

// Options is a small helper to fetch typed values from a free-form map. It
// returns def when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64
// and YAML integers as int; both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// StringSlice returns a []string for key when the value is an array of
// strings. Non-string elements are formatted with %v so numeric query
// arguments survive. Returns nil when the key is missing.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				} else {
					out = append(out, fmt.Sprint(x))
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// UnmarshalJSON makes a missing or null "options" object decode to an empty,
// non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
