package config

import (
	"encoding/json"
	"os"

	"github.com/dsall/regvault/internal/flagx"
	"github.com/dsall/regvault/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies
// on timex.Duration so intervals can be specified either as strings like
// "30s" or as integer nanoseconds.
type JsonConfig struct {
	DataDir           *string         `json:"data_dir"`
	LogFile           *string         `json:"log_file"`
	MetricsAddr       *string         `json:"metrics_addr"`
	SyncEndpoint      *string         `json:"sync_endpoint"`
	EnableObfuscation *bool           `json:"enable_obfuscation"`
	BackupInterval    *timex.Duration `json:"backup_interval"`
	BackupKeep        *int            `json:"backup_keep"`
	SweepInterval     *timex.Duration `json:"sweep_interval"`
	StartupSweepDelay *timex.Duration `json:"startup_sweep_delay"`
	DeliverTimeout    *timex.Duration `json:"deliver_timeout"`
	RetryCeiling      *int            `json:"retry_ceiling"`
}

// parseJson overlays cfg with values from the JSON file named by the
// -c/-config flags, if any. Absent fields keep their current values.
// Panics on read or unmarshal errors (caller should recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DataDir != nil {
		cfg.DataDir = *jc.DataDir
	}
	if jc.LogFile != nil {
		cfg.LogFile = *jc.LogFile
	}
	if jc.MetricsAddr != nil {
		cfg.MetricsAddr = *jc.MetricsAddr
	}
	if jc.SyncEndpoint != nil {
		cfg.SyncEndpoint = *jc.SyncEndpoint
	}
	if jc.EnableObfuscation != nil {
		cfg.EnableObfuscation = *jc.EnableObfuscation
	}
	if jc.BackupInterval != nil {
		cfg.BackupInterval = jc.BackupInterval.Duration
	}
	if jc.BackupKeep != nil {
		cfg.BackupKeep = *jc.BackupKeep
	}
	if jc.SweepInterval != nil {
		cfg.SweepInterval = jc.SweepInterval.Duration
	}
	if jc.StartupSweepDelay != nil {
		cfg.StartupSweepDelay = jc.StartupSweepDelay.Duration
	}
	if jc.DeliverTimeout != nil {
		cfg.DeliverTimeout = jc.DeliverTimeout.Duration
	}
	if jc.RetryCeiling != nil {
		cfg.RetryCeiling = *jc.RetryCeiling
	}
}
