package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"github.com/joeshaw/envdecode"

	"rnc/internal/errors"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the RNC_ prefix.  Booleans follow
// strconv.ParseBool ("1", "t", "true", "0", "false", ...).

type envConfig struct {
	Host        string `env:"RNC_HOST"`
	Port        string `env:"RNC_PORT"`
	Listen      bool   `env:"RNC_LISTEN"`
	KeepOpen    bool   `env:"RNC_KEEP_OPEN"`
	IPv4        bool   `env:"RNC_IPV4"`
	IPv6        bool   `env:"RNC_IPV6"`
	Verbose     int    `env:"RNC_VERBOSE"`
	MetricsAddr string `env:"RNC_METRICS_ADDR"`
	BusCapacity int    `env:"RNC_BUS_CAPACITY"`
}

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  Call it BEFORE CLI flag
// parsing so that flags take precedence.  A malformed value is
// reported as an *errors.ConfigError.
func LoadFromEnv(cfg *Config) error {
	var env envConfig
	err := envdecode.StrictDecode(&env)
	switch {
	case errors.Is(err, envdecode.ErrInvalidTarget):
		// Nothing set.
		return nil
	case err != nil:
		return &errors.ConfigError{
			Field:   "env",
			Message: err.Error(),
			Hint:    "check the RNC_* environment variables",
		}
	}

	if env.Host != "" {
		cfg.Host = env.Host
		cfg.HasHost = true
	}
	if env.Port != "" {
		port, err := ParsePort(env.Port)
		if err != nil {
			return err
		}
		cfg.Port = port
	}
	if env.Listen {
		cfg.Listen = true
	}
	if env.KeepOpen {
		cfg.KeepOpen = true
	}
	if env.IPv4 {
		cfg.IPv4 = true
	}
	if env.IPv6 {
		cfg.IPv6 = true
	}
	if env.Verbose > 0 {
		cfg.Verbose = env.Verbose
	}
	if env.MetricsAddr != "" {
		cfg.MetricsAddr = env.MetricsAddr
	}
	if env.BusCapacity > 0 {
		cfg.BusCapacity = env.BusCapacity
	}
	return nil
}
