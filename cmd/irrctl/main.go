package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/simaogato/irrflow/internal/app"
	"github.com/simaogato/irrflow/internal/config"
	"github.com/simaogato/irrflow/internal/logging"
)

type globalFlags struct {
	configPath string
	backend    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("irrctl failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "irrctl",
		Short:         "Compute, seed and inspect per-entity periodic IRRs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.backend, "backend", "", "storage backend: postgres, sqlite or file (overrides config)")

	root.AddCommand(
		newRunCmd(flags),
		newSeedCmd(flags),
		newReportCmd(flags),
	)
	return root
}

// loadConfig resolves configuration, applies flag overrides and sets up logging
func loadConfig(flags *globalFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if flags.backend != "" {
		cfg.Backend = flags.backend
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// withBackend opens the configured backend for the duration of fn
func withBackend(ctx context.Context, flags *globalFlags, fn func(cfg config.Config, backend *app.Backend) error) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	backend, err := app.OpenBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.WithError(err).Warn("failed to close backend")
		}
	}()

	return fn(cfg, backend)
}
