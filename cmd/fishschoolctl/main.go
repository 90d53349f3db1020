package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"fishschool/internal/config"
	"fishschool/internal/logging"
	"fishschool/internal/metrics"
	"fishschool/pkg/fishschool"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if fishschool.IsFatal(err) {
			fmt.Fprintln(os.Stderr, "fatal:", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "fishschoolctl",
		Short: "Fish school simulation benchmark",
		Long: `fishschoolctl runs the fish school simulation under a chosen worker count,
scheduling policy and chunk size, sweeps the full parallelism menu, and lists
the stored timing records.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "YAML config file (defaults are used when empty)")
	flags.String("store", "", "store backend: memory|sqlite (default depends on build tags)")
	flags.String("db-path", "", "sqlite database path")
	flags.String("log-level", "", "log level: info|debug|trace")
	flags.String("log-format", "", "log format: auto|text|json")
	flags.String("metrics-file", "", "write prometheus metrics to this file after the command")
	flags.Bool("json", false, "emit JSON output")

	root.AddCommand(
		newVersionCmd(),
		newRunCmd(stderr),
		newSweepCmd(stderr),
		newRunsCmd(stderr),
		newShowCmd(stderr),
		newConfigCmd(),
	)
	return root
}

// loadConfig reads --config (or the defaults) and applies the persistent
// flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store.Kind, _ = flags.GetString("store")
	}
	if flags.Changed("db-path") {
		cfg.Store.Path, _ = flags.GetString("db-path")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format, _ = flags.GetString("log-format")
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.File, _ = flags.GetString("metrics-file")
	}
	return cfg, nil
}

type app struct {
	cfg    *config.Config
	client *fishschool.Client
	logger *slog.Logger
}

func newApp(cmd *cobra.Command, cfg *config.Config, stderr io.Writer) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, stderr)
	client, err := fishschool.New(fishschool.Options{
		StoreKind:    cfg.Store.Kind,
		DBPath:       cfg.Store.Path,
		ArtifactsDir: cfg.Sweep.ArtifactsDir,
		Logger:       logger,
		Metrics:      metrics.NewCollector(),
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(cmd.Context()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}
	return &app{cfg: cfg, client: client, logger: logger}, nil
}

// close flushes metrics and closes the store.
func (a *app) close() error {
	var errs []error
	if a.cfg.Metrics.File != "" {
		if err := a.client.Metrics().WriteFile(a.cfg.Metrics.File); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if err := a.client.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}
