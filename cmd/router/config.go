package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/metaroute/internal/router"
)

// config is the routing daemon's YAML configuration. Durations are written
// in Go syntax ("4s", "250ms"). Environment variables override the file:
// ROUTER_LISTEN, ROUTER_COMMAND_TIMEOUT, ROUTER_PROBE_INTERVAL.
type config struct {
	Listen         string `yaml:"listen"`
	CommandTimeout string `yaml:"command_timeout"`
	ProbeInterval  string `yaml:"probe_interval"`

	commandTimeout time.Duration
	probeInterval  time.Duration
}

func defaultConfig() *config {
	return &config{
		Listen:         ":8080",
		commandTimeout: router.DefaultCommandTimeout,
		probeInterval:  5 * time.Second,
	}
}

// loadConfig reads the optional YAML file, applies env overrides, and
// validates durations. An empty path yields the defaults.
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if v := os.Getenv("ROUTER_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("ROUTER_COMMAND_TIMEOUT"); v != "" {
		cfg.CommandTimeout = v
	}
	if v := os.Getenv("ROUTER_PROBE_INTERVAL"); v != "" {
		cfg.ProbeInterval = v
	}

	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.CommandTimeout != "" {
		d, err := time.ParseDuration(cfg.CommandTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid command_timeout %q: %w", cfg.CommandTimeout, err)
		}
		cfg.commandTimeout = d
	}
	if cfg.ProbeInterval != "" {
		d, err := time.ParseDuration(cfg.ProbeInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid probe_interval %q: %w", cfg.ProbeInterval, err)
		}
		cfg.probeInterval = d
	}
	return cfg, nil
}
