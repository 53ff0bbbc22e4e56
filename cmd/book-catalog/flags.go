package main

import (
	"flag"
	"strings"
	"time"

	"github.com/drallgood/book-catalog/internal/config"
)

// configFlags holds the command-line flags; set values override the
// loaded configuration
type configFlags struct {
	configFile      string
	envFile         string
	port            string
	backend         string
	devMode         bool
	refreshInterval time.Duration
	help            bool
	version         bool
}

func parseFlags() *configFlags {
	var f configFlags

	flag.StringVar(&f.configFile, "config", "", "Path to config file (YAML)")
	flag.StringVar(&f.envFile, "env-file", ".env", "Path to .env file")
	flag.StringVar(&f.port, "port", "", "HTTP port")
	flag.StringVar(&f.backend, "backend", "", "Remote config backend (store, http, redis, graphql, file)")
	flag.BoolVar(&f.devMode, "dev", false, "Disable the minimum fetch interval")
	flag.DurationVar(&f.refreshInterval, "refresh-interval", -1, "Refresh interval (e.g. 5m, 0 to disable)")
	flag.BoolVar(&f.help, "help", false, "Show help")
	flag.BoolVar(&f.help, "h", false, "Show help")
	flag.BoolVar(&f.version, "version", false, "Show version")
	flag.BoolVar(&f.version, "v", false, "Show version")

	flag.Parse()
	return &f
}

// apply overrides cfg with the flags that were set
func (f *configFlags) apply(cfg *config.Config) {
	if f.port != "" {
		cfg.Server.Port = f.port
	}
	if f.backend != "" {
		cfg.RemoteConfig.Backend = strings.ToLower(f.backend)
	}
	if f.devMode {
		cfg.RemoteConfig.DevMode = true
	}
	if f.refreshInterval >= 0 {
		cfg.RemoteConfig.RefreshInterval = f.refreshInterval
	}
}
