package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Cetendo/EnergyLogger/internal/app/config"
)

type globalFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "energy-logger",
		Short: "Record heat pump readings into a SQL database",
		Long: `energy-logger keeps a WebSocket session to a heat pump controller,
requests the "Informationen" page every few seconds and stores the selected
categories in SQLite or PostgreSQL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnv(g.envFile)
		},
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "./data/config.yaml", "Path to configuration file")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", "", "Load environment overrides from this file (default: .env if present)")

	root.AddCommand(
		newRunCmd(g),
		newValidateCmd(g),
		newLatestCmd(g),
		newPurgeCmd(g),
		newStatsCmd(g),
		newImportCmd(g),
	)
	return root
}

// loadEnv reads an explicit env file, or ./.env when it exists. Variables
// already set in the environment win.
func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("env file .env: %w", err)
	}
	return nil
}

func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
