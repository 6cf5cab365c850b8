package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/schaermu/linewatch/internal/activation"
	"github.com/schaermu/linewatch/internal/config"
	"github.com/schaermu/linewatch/internal/console"
	"github.com/schaermu/linewatch/internal/linecount"
	"github.com/schaermu/linewatch/internal/metrics"
	"github.com/schaermu/linewatch/internal/notify"
	"github.com/schaermu/linewatch/internal/scan"
	"github.com/schaermu/linewatch/internal/watch"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string

	// Watch command flags, applied over the config file when set
	interval      time.Duration
	maxConcurrent int
	notifyEnabled bool
	metricsAddr   string
)

// errNotDir is returned for watch targets that exist but are not directories
var errNotDir = errors.New("not a directory")

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "linewatch",
	Short: "Report line count changes of files in a directory",
	Long: `linewatch watches the files of a single directory whose names match a
glob pattern and reports, every interval, which files were added, deleted or
changed together with the change in their line counts.`,
	SilenceUsage: true,
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir> <pattern>",
	Short: "Watch a directory and report line count changes",
	Long: `Watch records the line counts of every file in <dir> matching <pattern>,
then rescans the directory on every heartbeat and prints one line per change:

  name N     a new file with N lines
  name       a deleted file
  name +D    a changed file that grew by D lines
  name -D    a changed file that shrank by D lines

Press Enter (when attached to a terminal) or send SIGINT to stop.`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("linewatch %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/linewatch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Watch command flags
	watchCmd.Flags().DurationVar(&interval, "interval", config.DefaultInterval, "time between heartbeats and rescans")
	watchCmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "maximum concurrent line counts (0 for unbounded)")
	watchCmd.Flags().BoolVar(&notifyEnabled, "notify", false, "rescan early on filesystem notifications")
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	// Add commands
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	dir, pattern := args[0], args[1]

	// Setup logger
	logger := setupLogger(os.Stderr)

	// Load configuration
	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cfg.Log.File != "" {
		rotator := newLogRotator(cfg.Log)
		defer func() {
			_ = rotator.Close()
		}()
		logger = setupLogger(rotator)
	}

	if err := validateTarget(dir, pattern); err != nil {
		return err
	}

	// Create dependencies
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	counter := linecount.NewCounter(cfg.Watch.BufferSize)
	counter.OnCount(m.ObserveCount)

	keys := console.NewKeyWatcher(os.Stdin)
	if keys.Interactive() {
		logger.Info("press Enter to stop")
	}

	opts := watch.Options{
		Interval:      cfg.Watch.Interval,
		MaxConcurrent: cfg.Watch.MaxConcurrent,
		Terminator:    keys,
		Metrics:       m,
	}
	if cfg.Watch.Notify {
		opts.Nudger = notify.New(dir, pattern, cfg.Watch.Debounce, logger)
	}

	// A socket passed by systemd takes precedence over metrics.listen_addr
	activated, err := activation.Listener(activation.MetricsName)
	if err != nil {
		return fmt.Errorf("socket activation: %w", err)
	}
	if activated != nil || cfg.Metrics.ListenAddr != "" {
		server := metrics.NewServer(cfg.Metrics.ListenAddr, reg, logger)
		errCh := make(chan error, 1)
		go func() {
			if activated != nil {
				logger.Info("using socket activation for metrics")
				errCh <- server.Serve(ctx, activated)
				return
			}
			errCh <- server.Start(ctx)
		}()
		defer func() {
			cancel()
			if err := <-errCh; err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	loop := watch.NewLoop(opts,
		scan.Scanner{Dir: dir, Pattern: pattern},
		counter,
		console.NewReporter(os.Stdout),
		logger)

	logger.Info("starting watch", "dir", dir, "pattern", pattern)
	if err := loop.Run(ctx); err != nil {
		logger.Error("watch failed", "error", err)
		return err
	}

	return nil
}

// applyFlags overrides configuration values with explicitly set flags
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.Watch.Interval = interval
	}
	if flags.Changed("max-concurrent") {
		cfg.Watch.MaxConcurrent = maxConcurrent
	}
	if flags.Changed("notify") {
		cfg.Watch.Notify = notifyEnabled
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.ListenAddr = metricsAddr
	}
}

// validateTarget checks the watch arguments before anything is started
func validateTarget(dir, pattern string) error {
	if err := scan.ValidatePattern(pattern); err != nil {
		return err
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cannot watch %s: %w", dir, errNotDir)
	}
	return nil
}

func setupLogger(w io.Writer) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func newLogRotator(cfg config.LogConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	// An explicit path must exist, the default one is optional
	if cfgFile != "" {
		logger.Debug("loading configuration", "path", cfgFile)
		cfg, err = config.Load(cfgFile)
	} else {
		configPath, pathErr := config.DefaultPath()
		if pathErr != nil {
			return nil, pathErr
		}
		logger.Debug("loading configuration", "path", configPath)
		cfg, err = config.LoadOptional(configPath)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"interval", cfg.Watch.Interval.String(),
		"buffer_size", cfg.Watch.BufferSize,
		"max_concurrent", cfg.Watch.MaxConcurrent,
		"notify", cfg.Watch.Notify,
		"metrics_addr", cfg.Metrics.ListenAddr)

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
