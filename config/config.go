// Package config defines the runtime configuration for rnc and the
// helpers that parse and validate it.
package config

import (
	"strconv"

	"rnc/internal/errors"
)

// Config holds every tuneable for a single rnc invocation.
type Config struct {
	// ── Endpoint ─────────────────────────────────────────────────────
	Host    string
	HasHost bool // Host was given, even if empty
	Port    int  // 0 means unspecified (DefaultPort)
	IPv4    bool // -4
	IPv6    bool // -6

	// ── Mode ─────────────────────────────────────────────────────────
	Listen   bool
	KeepOpen bool

	// ── Relay ────────────────────────────────────────────────────────
	BusCapacity int

	// ── Output ───────────────────────────────────────────────────────
	Verbose     int
	MetricsAddr string
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{BusCapacity: DefaultBusCapacity}
}

// ── Port helpers ─────────────────────────────────────────────────────

// ParsePort accepts a decimal port number in 1–65535.
func ParsePort(spec string) (int, error) {
	port, err := strconv.Atoi(spec)
	if err != nil {
		return 0, &errors.ConfigError{
			Field:   "port",
			Value:   spec,
			Message: "not a number",
			Hint:    "ports are decimal integers between 1 and 65535",
		}
	}
	if port < 1 || port > 65535 {
		return 0, &errors.ConfigError{
			Field:   "port",
			Value:   port,
			Message: "out of range 1-65535",
		}
	}
	return port, nil
}

// LooksLikePort reports whether spec parses as a valid port.  The CLI
// uses it to treat a lone positional in listen mode as the port.
func LooksLikePort(spec string) bool {
	_, err := ParsePort(spec)
	return err == nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Every failure is an *errors.ConfigError, which maps to the usage exit
// status.
func (c *Config) Validate() error {
	if c.IPv4 && c.IPv6 {
		return &errors.ConfigError{
			Field:   "ipv4",
			Message: "-4 and -6 are mutually exclusive",
			Hint:    "omit both to accept either address family",
		}
	}

	if c.KeepOpen && !c.Listen {
		return &errors.ConfigError{
			Field:   "keep-open",
			Message: "-k only applies to listen mode",
			Hint:    "add -l to accept multiple connections",
		}
	}

	if c.Port != 0 && (c.Port < 1 || c.Port > 65535) {
		return &errors.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "out of range 1-65535",
		}
	}

	if !c.Listen && (!c.HasHost || c.Host == "") {
		return &errors.ConfigError{
			Field:   "hostname",
			Message: "connect mode requires a hostname",
			Hint:    "usage: rnc [options] <hostname> [port], or -l to listen",
		}
	}

	if c.BusCapacity < 1 {
		return &errors.ConfigError{
			Field:   "bus-capacity",
			Value:   c.BusCapacity,
			Message: "must be at least 1",
			Hint:    "the default is " + strconv.Itoa(DefaultBusCapacity),
		}
	}

	return nil
}
