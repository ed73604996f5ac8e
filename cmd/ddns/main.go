// Command ddns keeps DNS records pointed at this host's current IP addresses.
//
//	ddns -c /etc/ddns/config.toml [--log-file PATH] [--log-level info] [-n 4] [--interval 5m]
//
// The exit status is non-zero only when startup fails;
// failures of individual domains are logged.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Travis-Britz/ddns/v2"
	"github.com/Travis-Britz/ddns/v2/config"
	"github.com/Travis-Britz/ddns/v2/metrics"
	_ "github.com/Travis-Britz/ddns/v2/providers"
)

var version = "dev"

type options struct {
	Config      string
	LogFile     string
	LogLevel    string
	Threads     int
	Interval    time.Duration
	Retries     int
	MetricsFile string
	Summary     bool
	Version     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "ddns: %s\n", err)
		stop()
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	opts := options{
		LogLevel: "info",
		Threads:  ddns.DefaultWorkers,
	}
	flags := pflag.NewFlagSet("ddns", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVarP(&opts.Config, "config", "c", "", "Path to the config file (.json, .toml, .yaml)")
	flags.StringVar(&opts.LogFile, "log-file", "", "Also write the log to this file, creating parent directories as needed")
	flags.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level: trace, debug, info, warn or error")
	flags.IntVarP(&opts.Threads, "threads", "n", opts.Threads, "Number of domains updated in parallel")
	flags.DurationVar(&opts.Interval, "interval", 0, "Keep running and update every interval (minimum 1m); 0 runs once")
	flags.IntVar(&opts.Retries, "retries", 0, "Retry failed IP lookups this many times")
	flags.StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after every run")
	flags.BoolVar(&opts.Summary, "summary", false, "Print a table of record outcomes after every run")
	flags.BoolVarP(&opts.Version, "version", "v", false, "Print the version and exit")
	if err := flags.Parse(args); err != nil {
		return opts, err
	}
	if opts.Version {
		return opts, nil
	}
	if opts.Config == "" {
		return opts, errors.New("the --config flag is required")
	}
	if opts.Threads < 1 {
		return opts, fmt.Errorf("--threads must be at least 1; got %d", opts.Threads)
	}
	if opts.Retries < 0 {
		return opts, fmt.Errorf("--retries cannot be negative; got %d", opts.Retries)
	}
	if _, err := parseLevel(opts.LogLevel); err != nil {
		return opts, err
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.Version {
		fmt.Fprintf(stdout, "ddns %s\n", version)
		return nil
	}

	logger, closeLog, err := newLogger(opts.LogLevel, opts.LogFile, stderr)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer closeLog()
	logger.Info("ddns started", zap.String("version", version), zap.String("config", opts.Config))

	// a missing file is reported by config.Load
	if err := verifyPermissions(opts.Config); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("config file permissions are too open", zap.Error(err))
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	ipv4, ipv6, err := cfg.Resolvers()
	if err != nil {
		return err
	}
	client, err := ddns.New(cfg.Domains(),
		ddns.UsingIPv4Resolver(ipv4),
		ddns.UsingIPv6Resolver(ipv6),
		ddns.UsingWorkers(opts.Threads),
		ddns.UsingRetries(opts.Retries),
		ddns.WithLogger(logger),
	)
	if err != nil {
		return &ddns.ConfigError{Path: opts.Config, Err: err}
	}

	var recorder *metrics.Recorder
	if opts.MetricsFile != "" {
		recorder = metrics.New()
	}
	handle := func(rep ddns.Report) {
		if recorder != nil {
			recorder.Observe(rep)
			if err := recorder.WriteFile(opts.MetricsFile); err != nil {
				logger.Error("unable to write metrics file", zap.String("path", opts.MetricsFile), zap.Error(err))
			}
		}
		if opts.Summary {
			printSummary(stdout, rep)
		}
	}

	handle(client.RunDDNS(ctx))
	if opts.Interval == 0 {
		return nil
	}
	if opts.Interval < time.Minute {
		logger.Warn("interval is below the minimum; using 1m", zap.Duration("interval", opts.Interval))
	}
	ddns.RunDaemon(ctx, client, opts.Interval, handle)
	<-ctx.Done()
	logger.Info("ddns stopped")
	return nil
}

// verifyPermissions reports a config file that users other than its owner can read.
// The file holds provider credentials.
func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking config file permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but anything without group or other bits is accepted.
	// The file might be provided by some secrets managing software as readonly.
	if perms&0077 != 0 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", path, fs.FileMode(perms))
	}
	return nil
}
