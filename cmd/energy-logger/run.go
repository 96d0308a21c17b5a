package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Cetendo/EnergyLogger/pkg/energylogger"
)

func newRunCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start logging until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}

			logger, err := energylogger.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := energylogger.NewEdgeRuntime(ctx, cfg, energylogger.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("start runtime: %w", err)
			}

			logger.Info("runtime_started",
				zap.String("heatpump", cfg.HeatPump.Address),
				zap.Int("port", cfg.HeatPump.Port),
				zap.String("storage", cfg.Storage.Driver),
				zap.Duration("interval", cfg.Settings.UpdateInterval))

			err = rt.Run(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = errors.Join(err, rt.Shutdown(shutdownCtx))

			totals := rt.Totals()
			logger.Info("runtime_stopped",
				zap.Int("snapshots", totals.Snapshots),
				zap.Int("categories", totals.Categories))
			return err
		},
	}
}

func newValidateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration without connecting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config %s looks good: %d categories, %s every %s\n",
				g.configPath, len(cfg.HeatPump.ImportValues), cfg.Storage.Driver, cfg.Settings.UpdateInterval)
			return nil
		},
	}
}
