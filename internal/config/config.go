// Package config holds runtime settings for the regvault process, layered
// from defaults, an optional JSON file (-c/-config) and command-line
// flags, with later sources taking precedence.
package config

import "time"

// Config holds runtime settings for the regvault core.
type Config struct {
	// DataDir is where the database, fallback cache and device secret live.
	DataDir string

	// LogFile receives structured logs (rotated); empty logs to stderr only.
	LogFile string

	// MetricsAddr, when non-empty, serves Prometheus metrics on this address.
	MetricsAddr string

	// SyncEndpoint is the remote collection URL records are delivered to.
	// Empty selects local-only mode: deliveries succeed without leaving
	// the device, so records still converge to synced.
	SyncEndpoint string

	// EnableObfuscation applies the at-rest transform to sensitive fields.
	EnableObfuscation bool

	// BackupInterval is how often the "latest" backup slot is refreshed.
	BackupInterval time.Duration
	// BackupKeep is how many dated snapshots pruning retains.
	BackupKeep int

	// SweepInterval is how often unsynced records are re-discovered.
	SweepInterval time.Duration
	// StartupSweepDelay is the delay before the first sweep after start.
	StartupSweepDelay time.Duration
	// DeliverTimeout bounds a single remote delivery attempt.
	DeliverTimeout time.Duration
	// RetryCeiling is the per-record delivery attempt ceiling per drain.
	RetryCeiling int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = "data"
	c.LogFile = ""
	c.MetricsAddr = ""
	c.SyncEndpoint = ""
	c.EnableObfuscation = true
	c.BackupInterval = 30 * time.Second
	c.BackupKeep = 5
	c.SweepInterval = 10 * time.Second
	c.StartupSweepDelay = 2 * time.Second
	c.DeliverTimeout = 5 * time.Second
	c.RetryCeiling = 3
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
