package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/Cetendo/EnergyLogger/internal/adapters/luxws"
	"github.com/Cetendo/EnergyLogger/internal/adapters/store"
	"github.com/Cetendo/EnergyLogger/internal/app/session"
	"github.com/Cetendo/EnergyLogger/internal/domain"
)

// Environment variables that override file values.
const (
	EnvHeatPumpAddress = "ENERGYLOGGER_HEATPUMP_ADDRESS"
	EnvStorageDriver   = "ENERGYLOGGER_STORAGE_DRIVER"
	EnvStorageDSN      = "ENERGYLOGGER_STORAGE_DSN"
	EnvMetricsAddr     = "ENERGYLOGGER_METRICS_ADDR"
	EnvLogLevel        = "ENERGYLOGGER_LOG_LEVEL"
)

type Config struct {
	HeatPump HeatPumpConfig `yaml:"heatpump"`
	Settings SettingsConfig `yaml:"settings"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

type HeatPumpConfig struct {
	Address        string              `yaml:"address"`
	Port           int                 `yaml:"port"`
	Password       string              `yaml:"password"`
	RequestLabel   string              `yaml:"request_label"`
	ConnectTimeout time.Duration       `yaml:"connect_timeout"`
	ReconnectDelay *time.Duration      `yaml:"reconnect_delay"`
	ImportValues   domain.ImportValues `yaml:"import_values"`
}

type SettingsConfig struct {
	UpdateInterval time.Duration `yaml:"update_interval"`
}

type StorageConfig struct {
	Driver       string        `yaml:"driver"`
	DSN          string        `yaml:"dsn"`
	Retention    time.Duration `yaml:"retention"`
	PurgeOnStart *bool         `yaml:"purge_on_start"`
}

type MetricsConfig struct {
	Addr     string `yaml:"addr"`
	Disabled bool   `yaml:"disabled"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultReconnectDelay matches the device's recovery time after a dropped
// session.
const DefaultReconnectDelay = 30 * time.Second

// Load reads a YAML file, applies defaults and environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse is Load without the file read. Durations accept Go syntax ("5s")
// or a bare number of seconds.
func Parse(raw []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	secondsToDurations(&doc)

	var cfg Config
	if doc.Kind != 0 {
		if err := doc.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var durationKeys = map[string]bool{
	"connect_timeout": true,
	"reconnect_delay": true,
	"update_interval": true,
	"retention":       true,
}

// secondsToDurations rewrites numeric duration values to "<n>s".
func secondsToDurations(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if durationKeys[key.Value] && val.Kind == yaml.ScalarNode &&
				(val.Tag == "!!int" || val.Tag == "!!float") {
				val.Value += "s"
				val.Tag = "!!str"
			}
		}
	}
	for _, c := range n.Content {
		secondsToDurations(c)
	}
}

func (c *Config) applyDefaults() {
	if c.HeatPump.Port == 0 {
		c.HeatPump.Port = luxws.DefaultPort
	}
	if c.HeatPump.Password == "" {
		c.HeatPump.Password = session.DefaultPassword
	}
	if c.HeatPump.RequestLabel == "" {
		c.HeatPump.RequestLabel = session.DefaultRequestLabel
	}
	if c.HeatPump.ConnectTimeout == 0 {
		c.HeatPump.ConnectTimeout = luxws.DefaultHandshakeTimeout
	}
	if c.HeatPump.ReconnectDelay == nil {
		d := DefaultReconnectDelay
		c.HeatPump.ReconnectDelay = &d
	}
	if c.Settings.UpdateInterval == 0 {
		c.Settings.UpdateInterval = session.DefaultUpdateInterval
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.DSN == "" && c.Storage.Driver == "sqlite" {
		c.Storage.DSN = "./energy.db"
	}
	if c.Storage.Retention == 0 {
		c.Storage.Retention = store.DefaultRetention
	}
	if c.Storage.PurgeOnStart == nil {
		yes := true
		c.Storage.PurgeOnStart = &yes
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) applyEnvOverrides() {
	if v, ok := os.LookupEnv(EnvHeatPumpAddress); ok && v != "" {
		c.HeatPump.Address = v
	}
	if v, ok := os.LookupEnv(EnvStorageDriver); ok && v != "" {
		c.Storage.Driver = v
	}
	if v, ok := os.LookupEnv(EnvStorageDSN); ok && v != "" {
		c.Storage.DSN = v
	}
	if v, ok := os.LookupEnv(EnvMetricsAddr); ok && v != "" {
		c.Metrics.Addr = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.HeatPump.Address == "" {
		return errors.New("heatpump.address is required")
	}
	if c.HeatPump.Port < 1 || c.HeatPump.Port > 65535 {
		return fmt.Errorf("heatpump.port %d out of range", c.HeatPump.Port)
	}
	if len(c.HeatPump.ImportValues) == 0 {
		return errors.New("heatpump.import_values needs at least one category")
	}
	if c.HeatPump.ConnectTimeout < 0 {
		return errors.New("heatpump.connect_timeout must not be negative")
	}
	if c.HeatPump.ReconnectDelay != nil && *c.HeatPump.ReconnectDelay < 0 {
		return errors.New("heatpump.reconnect_delay must not be negative")
	}
	if c.Settings.UpdateInterval <= 0 {
		return errors.New("settings.update_interval must be positive")
	}
	if _, err := store.DialectFor(c.Storage.Driver); err != nil {
		return fmt.Errorf("storage.driver: %w", err)
	}
	if c.Storage.DSN == "" {
		return errors.New("storage.dsn is required")
	}
	if c.Storage.Retention <= 0 {
		return errors.New("storage.retention must be positive")
	}
	if !c.Metrics.Disabled && c.Metrics.Addr == "" {
		return errors.New("metrics.addr is required")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// ReconnectDelayOrDefault returns the configured delay; zero disables
// reconnecting.
func (c *Config) ReconnectDelayOrDefault() time.Duration {
	if c.HeatPump.ReconnectDelay == nil {
		return DefaultReconnectDelay
	}
	return *c.HeatPump.ReconnectDelay
}

// PurgeOnStartEnabled reports storage.purge_on_start, true when unset.
func (c *Config) PurgeOnStartEnabled() bool {
	return c.Storage.PurgeOnStart == nil || *c.Storage.PurgeOnStart
}

// SessionConfig returns the handshake settings.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		Password:       c.HeatPump.Password,
		RequestLabel:   c.HeatPump.RequestLabel,
		UpdateInterval: c.Settings.UpdateInterval,
	}
}
