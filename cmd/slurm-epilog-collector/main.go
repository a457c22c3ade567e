// Command slurm-epilog-collector reports a finished Slurm job to the
// accounting service. It is meant to run from the Slurm epilog.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/chrisconley/auditor-collector/internal"
	"github.com/chrisconley/auditor-collector/internal/collector"
	"github.com/chrisconley/auditor-collector/internal/config"
	"github.com/chrisconley/auditor-collector/internal/delivery"
	"github.com/chrisconley/auditor-collector/internal/infra"
	"github.com/chrisconley/auditor-collector/internal/metrics"
	"github.com/chrisconley/auditor-collector/internal/scheduler"
	"github.com/chrisconley/auditor-collector/internal/store"
	"github.com/go-redis/redis/v8"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath string
	logLevel   string
	flush      bool
	list       bool
	requeue    string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("slurm-epilog-collector", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "/etc/auditor/slurm-epilog-collector.yml", "Path to YAML config file")
	fs.StringVar(&opts.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	fs.BoolVar(&opts.flush, "flush", false, "Only retry delivery of staged records")
	fs.BoolVar(&opts.list, "list", false, "Print staged records and exit")
	fs.StringVar(&opts.requeue, "requeue", "", "Clear the rejection flag of a staged record")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return exitConfig
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return exitConfig
	}
	if opts.logLevel != "" {
		level, err := config.ParseLevel(opts.logLevel)
		if err != nil {
			fmt.Fprintf(stderr, "invalid -log-level %q: %v\n", opts.logLevel, err)
			return exitConfig
		}
		cfg.LogLevel = level
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel})).
		With("app", "slurm-epilog-collector")

	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		logger.Error("Cannot open staging database", "path", cfg.DatabasePath, "error", err)
		return exitFailed
	}
	defer st.Close()

	switch {
	case opts.list:
		return list(ctx, st, stdout, logger)
	case opts.requeue != "":
		if err := st.Unflag(ctx, opts.requeue); err != nil {
			logger.Error("Cannot requeue record", "record_id", opts.requeue, "error", err)
			return exitFailed
		}
		logger.Info("Record requeued", "record_id", opts.requeue)
		return exitOK
	}

	deliverer, closeDeliverer, err := newDeliverer(cfg)
	if err != nil {
		logger.Error("Cannot set up delivery", "kind", cfg.Delivery.Kind, "error", err)
		return exitConfig
	}
	defer closeDeliverer()

	bus := infra.NewBus()
	var m *metrics.Metrics
	if cfg.Metrics.Textfile != "" {
		m = metrics.New()
		m.Subscribe(bus)
		defer writeMetrics(ctx, m, st, cfg.Metrics.Textfile, logger)
	}

	if opts.flush {
		summary, err := delivery.NewShim(st, deliverer, cfg.Timeout, logger, bus).Flush(ctx)
		logSummary(logger, summary)
		if err != nil {
			logger.Error("Flush failed", "error", err)
			return exitFailed
		}
		return exitOK
	}

	jobID, err := scheduler.JobIDFromEnv()
	if err != nil {
		logger.Error("Collector not run in the context of a Slurm epilog", "error", err)
		return exitFailed
	}
	logger.Info("Acquired Slurm job id", "slurm_job_id", jobID)

	// The node stays in COMPLETING until the epilog exits.
	shim := delivery.NewShim(st, deliverer, cfg.Timeout, logger, bus, delivery.StopOnUnreachable())
	c := collector.New(cfg, scheduler.Scontrol{Path: cfg.Scontrol}, st, shim, logger, bus)
	result, err := c.Collect(ctx, jobID)
	if err != nil {
		logger.Error("Collecting job failed", "slurm_job_id", jobID, "error", err, "job_data", internal.IsJobDataError(err))
		if internal.IsConfigError(err) {
			return exitConfig
		}
		return exitFailed
	}
	logSummary(logger, result.Delivery)
	return exitOK
}

func newDeliverer(cfg config.Config) (delivery.Deliverer, func(), error) {
	switch cfg.Delivery.Kind {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Delivery.Redis.Addr,
			DialTimeout: cfg.Timeout,
		})
		d := delivery.NewRedisDeliverer(client, cfg.Delivery.Redis.Key)
		return d, func() { _ = d.Close() }, nil
	case "kafka":
		d, err := delivery.NewKafkaDeliverer(cfg.Delivery.Kafka.Brokers, cfg.Delivery.Kafka.Topic, cfg.Timeout)
		if err != nil {
			return nil, nil, err
		}
		return d, func() { _ = d.Close() }, nil
	case "http":
		return delivery.NewHTTPDeliverer(cfg.Addr, cfg.Port, cfg.Timeout), func() {}, nil
	default:
		return nil, nil, &internal.ConfigError{Setting: "delivery.kind", Err: fmt.Errorf("unsupported kind %q", cfg.Delivery.Kind)}
	}
}

func list(ctx context.Context, st *store.Store, stdout io.Writer, logger *slog.Logger) int {
	entries, err := st.List(ctx)
	if err != nil {
		logger.Error("Cannot list staged records", "error", err)
		return exitFailed
	}
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTAGED\tSTATE\tREASON")
	for _, e := range entries {
		state, reason := "pending", ""
		switch {
		case e.Err != nil:
			state, reason = "corrupt", e.Err.Error()
		case e.Flagged():
			state, reason = "rejected", e.Rejection.Reason
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.StagedAt.Format(time.RFC3339), state, reason)
	}
	if err := w.Flush(); err != nil {
		logger.Error("Cannot write listing", "error", err)
		return exitFailed
	}
	return exitOK
}

func writeMetrics(ctx context.Context, m *metrics.Metrics, st *store.Store, path string, logger *slog.Logger) {
	if entries, err := st.List(ctx); err == nil {
		m.SetStagedRecords(len(entries))
	}
	if err := m.WriteTextfile(path); err != nil {
		logger.Warn("Cannot write metrics textfile", "path", path, "error", err)
	}
}

func logSummary(logger *slog.Logger, s delivery.Summary) {
	logger.Info("Delivery pass finished",
		"acknowledged", s.Acknowledged,
		"rejected", s.Rejected,
		"deferred", s.Deferred,
		"corrupt", s.Corrupt,
		"skipped", s.Skipped,
	)
}
