package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"recordcsv/internal/config"
	"recordcsv/internal/export"
	"recordcsv/internal/metrics"
	"recordcsv/internal/metrics/datadog"
	"recordcsv/internal/metrics/prompush"

	// register all backends with the source factory.
	_ "recordcsv/internal/source/all"
)

// main is the entry point for the csvexport binary. It loads the export
// config, optionally initializes a metrics backend, and runs every job.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/export.json", "export config path (.json, .yaml, .yml)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend (pushgateway, datadog, none); overrides config and METRICS_BACKEND")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides config and PUSHGATEWAY_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}

	issues := config.ValidateExport(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Flag → config/env → default.
	if metricsBackendFlg != "" {
		cfg.Metrics.Backend = metricsBackendFlg
	}
	if pushGatewayURLFlg != "" {
		cfg.Metrics.PushgatewayURL = pushGatewayURLFlg
	}
	setupMetrics(cfg.Metrics, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	start := time.Now()

	if *verbose {
		for _, j := range cfg.Jobs {
			log.Printf("job: name=%s source=%s output=%s encoding=%q", j.Name, j.Source.Kind, j.Output.Path, j.Output.Encoding)
		}
	}

	results, err := export.Run(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		_ = metrics.Flush()
		os.Exit(1)
	}

	var records, bytes int64
	for _, r := range results {
		records += r.Records
		bytes += r.Bytes
	}
	log.Printf("completed: jobs=%d records=%s bytes=%s in %s",
		len(results), humanize.Comma(records), humanize.Bytes(uint64(bytes)),
		time.Since(start).Truncate(time.Millisecond))
}

func setupMetrics(m config.MetricsConfig, verbose bool) {
	jobName := m.JobName
	if jobName == "" {
		jobName = "csvexport"
	}

	switch m.Backend {
	case "pushgateway":
		gwURL := m.PushgatewayURL
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, m.Backend, jobName)
		metrics.SetBackend(b)

	case "datadog":
		addr := m.DatadogAddr
		if addr == "" {
			addr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  jobName + ".",
			GlobalTags: []string{"service:" + jobName},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: addr=%v, backend=%v", addr, m.Backend)
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", m.Backend)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", m.Backend)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
