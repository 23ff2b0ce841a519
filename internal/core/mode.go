// Package core is the orchestration layer.  It composes transports
// and the relay capability into complete operational modes and
// provides a builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	endpoint  →  transport  →  session  →  capability  →  core  →  cmd (CLI)
//
// The builder in this package is the single dispatch point between
// configuration and the running relay.
package core

import (
	"context"
	"net"

	"rnc/internal/endpoint"
	"rnc/internal/errors"
)

// Mode represents a complete operational mode of rnc (connect or
// listen).  Each mode owns its full lifecycle from connection
// establishment to teardown.
type Mode interface {
	Run(ctx context.Context) error
}

// socketError classifies a failure to open the socket for ep.  An
// address-family mismatch found during name lookup is a resolution
// error; a failed lookup or a failed dial/bind means the host is
// unreachable.
func socketError(op string, ep endpoint.Endpoint, err error) error {
	var le *endpoint.LookupError
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, endpoint.ErrIPVersionMismatch):
		return errors.Resolution(ep.Host(), err)
	case errors.As(err, &le), errors.As(err, &dnsErr):
		return errors.Wrap("lookup", ep.Host(), err)
	default:
		return errors.Wrap(op, ep.String(), err)
	}
}
