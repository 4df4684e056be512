package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/engine"
	"github.com/pingsantohq/subpub/internal/logging"
	"github.com/pingsantohq/subpub/internal/metrics"
	"github.com/pingsantohq/subpub/internal/packs"
	"github.com/pingsantohq/subpub/internal/plugin"
	"github.com/pingsantohq/subpub/internal/runtime"
)

var version = "dev"

// errReported marks failures that were already logged.
var errReported = errors.New("reported")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "subpub: %v\n", err)
		}
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logFile    string
	verbose    int
	quiet      int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "subpub",
		Short: "Poll sources, run checks and dispatch weighted messages to actions",
		Long: `subpub periodically runs the checks declared in its configuration,
keeps their messages fresh or decays them while they go stale, and hands the
messages that pass each action's filters to that action.

The configuration path defaults to $SUBPUB_CONFIG, then ~/.subpub.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to the configuration file")
	flags.StringVar(&opts.logFile, "log", "", "also write debug-level JSON logs to this file")
	flags.CountVarP(&opts.verbose, "verbose", "v", "log more (repeatable)")
	flags.CountVarP(&opts.quiet, "quiet", "q", "log less (repeatable)")

	root.AddCommand(newRunCmd(opts), newValidateCmd(opts), newPluginsCmd(), newInitCmd(opts))
	return root
}

func (o *rootOptions) logger(cmd *cobra.Command) (*zap.Logger, io.Closer, error) {
	return logging.New(logging.Options{
		Verbosity: o.verbose - o.quiet,
		File:      o.logFile,
		Console:   zapcore.AddSync(cmd.ErrOrStderr()),
	})
}

func (o *rootOptions) loadConfig(ctx context.Context) (config.Config, error) {
	if o.configPath != "" {
		return config.Load(ctx, o.configPath)
	}
	return config.LoadFromEnv(ctx)
}

// report logs err once and marks it as reported.
func report(logger *zap.Logger, err error) error {
	if config.IsConfigError(err) {
		logger.Error("invalid configuration", zap.Error(err))
	} else {
		logger.Error("subpub failed", zap.Error(err))
	}
	return fmt.Errorf("%w: %w", errReported, err)
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd, opts, metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics, /healthz, /readyz and /messages on this address")
	return cmd
}

func runEngine(cmd *cobra.Command, opts *rootOptions, metricsAddr string) error {
	ctx := cmd.Context()
	logger, closer, err := opts.logger(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	cfg, err := opts.loadConfig(ctx)
	if err != nil {
		return report(logger, err)
	}

	store := metrics.NewStore()
	eng, err := engine.New(cfg, packs.Default(),
		engine.WithLogger(logger),
		engine.WithMetrics(store.EngineRecorder()),
	)
	if err != nil {
		return report(logger, err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Warn("release plugins", zap.Error(err))
		}
	}()

	if metricsAddr == "" {
		metricsAddr = cfg.Engine.MetricsAddr
	}
	rtOpts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithMetricsStore(store),
		runtime.WithMetricsAddr(metricsAddr),
	}
	if cfg.Engine.TickResolution > 0 {
		rtOpts = append(rtOpts, runtime.WithTickResolution(cfg.Engine.TickResolution))
	}
	rt := runtime.New(eng, rtOpts...)

	logger.Info("subpub starting", zap.String("version", version), zap.Int("checks", len(eng.Checks())), zap.Int("actions", len(eng.Actions())))
	if err := rt.Run(ctx); err != nil {
		return report(logger, err)
	}
	if ctx.Err() != nil {
		logger.Info("interrupted, shutting down")
	}
	logger.Info("subpub stopped")
	return nil
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and construct every plugin without running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closer, err := opts.logger(cmd)
			if err != nil {
				return err
			}
			defer closer.Close()

			cfg, err := opts.loadConfig(cmd.Context())
			if err != nil {
				return report(logger, err)
			}
			eng, err := engine.New(cfg, packs.Default(), engine.WithLogger(logger))
			if err != nil {
				return report(logger, err)
			}
			defer eng.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: %d check(s), %d action(s), %d source(s)\n",
				len(eng.Checks()), len(eng.Actions()), len(eng.Sources()))
			return nil
		},
	}
}

func newPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the compiled-in plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := packs.Default().Catalog()
			out := cmd.OutOrStdout()
			for _, kind := range []plugin.Kind{
				plugin.KindSources,
				plugin.KindChecks,
				plugin.KindActions,
				plugin.KindFilters,
				plugin.KindSchemas,
				plugin.KindParsers,
			} {
				fmt.Fprintf(out, "%s:\n", kind)
				for _, identifier := range catalog[kind] {
					fmt.Fprintf(out, "  %s\n", identifier)
				}
			}
			return nil
		},
	}
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				path = os.Getenv("SUBPUB_CONFIG")
			}
			if path == "" {
				path = config.DefaultConfigPath
			}
			path, err := config.ExpandPath(path)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.WriteFile(path, []byte(config.Example)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration")
	return cmd
}
