package energylogger

import (
	"github.com/Cetendo/EnergyLogger/internal/app/config"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// HeatPumpConfig holds the connection and import selection.
	HeatPumpConfig = config.HeatPumpConfig
	// SettingsConfig holds the polling interval.
	SettingsConfig = config.SettingsConfig
	// StorageConfig selects the SQL driver, DSN and retention.
	StorageConfig = config.StorageConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// LogConfig configures the zap logger.
	LogConfig = config.LogConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig reads YAML from memory.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}
