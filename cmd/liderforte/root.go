package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"liderforte/internal/blob"
	"liderforte/internal/config"
	"liderforte/internal/core"
	"liderforte/internal/logging"
)

type rootOptions struct {
	configPath string
	envFile    string
}

// app holds everything a subcommand needs for one invocation.
type app struct {
	cfg     config.Config
	log     *logging.Logger
	store   core.PersistentStore
	metrics *core.PrometheusRecorder
	svc     *core.Service
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "liderforte",
		Short:         "Cell multiplication readiness and workflow tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to liderforte.yaml (default ./liderforte.yaml when present)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file loaded before the configuration (default ./.env when present)")

	cmd.AddCommand(
		newImportCmd(opts),
		newEligibilityCmd(opts),
		newReadinessCmd(opts),
		newAlertsCmd(opts),
		newProcessCmd(opts),
		newArchiveCmd(opts),
	)
	return cmd
}

func (o *rootOptions) loadEnv() error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", o.envFile, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// open loads configuration and wires the store, archive, metrics and service.
func (o *rootOptions) open(ctx context.Context, cmd *cobra.Command) (*app, error) {
	if err := o.loadEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.NewWithWriter(cfg.Env, cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	store, err := core.OpenPersistentStore(ctx, cfg.Storage, nil)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	archive, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("open archive: %w", err)
	}
	metrics := core.NewPrometheusRecorder()
	svc := core.NewService(store,
		core.WithLogger(log),
		core.WithSettings(cfg.Settings()),
		core.WithArchive(archive),
		core.WithMetricsRecorder(metrics),
	)
	log.Debug("store opened", "driver", cfg.Storage.Driver, "blob", cfg.Blob.Driver)
	return &app{cfg: cfg, log: log, store: store, metrics: metrics, svc: svc}, nil
}

func (a *app) close() {
	closeStore(a.store)
	_ = a.log.Sync()
}

func closeStore(store core.PersistentStore) {
	if c, ok := store.(core.Closer); ok {
		_ = c.Close()
	}
}

// withApp runs fn with a freshly opened app and closes it afterwards.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := o.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
