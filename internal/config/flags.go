package config

import (
	"flag"
	"os"

	"github.com/dsall/regvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-d string   data directory (database, fallback cache, device secret)
//	-l string   log file path (empty: stderr only)
//	-m string   metrics listen address (empty: disabled)
//	-s string   remote sync endpoint URL (empty: local-only)
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-l", "-m", "-s"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "log file path")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "metrics listen address")
	fs.StringVar(&cfg.SyncEndpoint, "s", cfg.SyncEndpoint, "remote sync endpoint URL")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
