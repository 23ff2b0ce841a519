package core

import (
	"rnc/config"
	"rnc/internal/endpoint"
	"rnc/internal/errors"
	"rnc/internal/metrics"
	"rnc/internal/transport"
	"rnc/util"
)

// Build constructs the appropriate Mode from the given configuration.
// It runs the endpoint resolver, so every address problem that can be
// detected without I/O is reported here as a *errors.ResolutionError.
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	family, err := endpoint.FamilyFromFlags(cfg.IPv4, cfg.IPv6)
	if err != nil {
		return nil, errors.Resolution("", err)
	}

	ep, err := endpoint.Resolve(endpoint.Request{
		Listen:  cfg.Listen,
		Host:    cfg.Host,
		HasHost: cfg.HasHost,
		Port:    uint16(cfg.Port),
		Family:  family,
	})
	if err != nil {
		return nil, errors.Resolution(cfg.Host, err)
	}

	if cfg.Listen {
		return buildListen(cfg, ep, logger, m), nil
	}
	return buildConnect(ep, logger, m), nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildConnect(ep endpoint.Endpoint, logger *util.Logger, m *metrics.Collector) Mode {
	return &ConnectMode{
		Endpoint:   ep,
		Dialer:     &transport.TCPDialer{},
		StdinChunk: config.ConnectStdinChunk,
		Logger:     logger,
		Metrics:    m,
	}
}

func buildListen(cfg *config.Config, ep endpoint.Endpoint, logger *util.Logger, m *metrics.Collector) Mode {
	return &ListenMode{
		Endpoint:    ep,
		Binder:      &transport.TCPBinder{},
		KeepOpen:    cfg.KeepOpen,
		BusCapacity: cfg.BusCapacity,
		StdinChunk:  config.ListenStdinChunk,
		Logger:      logger,
		Metrics:     m,
	}
}
