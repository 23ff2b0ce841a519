package transport

import (
	"context"
	"errors"
	"net"

	"rnc/internal/endpoint"
)

// TCPDialer establishes plain TCP connections.
type TCPDialer struct {
	// Resolver looks up symbolic names; nil means net.DefaultResolver.
	Resolver endpoint.Resolver
}

// Dial tries each candidate address of ep in resolver order and returns
// the first connection that succeeds.  All failures are joined.
func (d *TCPDialer) Dial(ctx context.Context, ep endpoint.Endpoint) (net.Conn, error) {
	addrs, err := ep.Lookup(ctx, d.Resolver)
	if err != nil {
		return nil, err
	}

	var dialer net.Dialer
	var errs []error
	for _, ap := range addrs {
		conn, err := dialer.DialContext(ctx, ep.Network(), ap.String())
		if err == nil {
			return conn, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

// TCPBinder opens TCP listeners.
type TCPBinder struct {
	Resolver endpoint.Resolver
}

// Listen binds the first candidate address of ep.  A v6-only endpoint
// listens on "tcp6", for which the runtime sets IPV6_V6ONLY; otherwise
// binding "::" accepts both families.
func (b *TCPBinder) Listen(ctx context.Context, ep endpoint.Endpoint) (net.Listener, error) {
	addrs, err := ep.Lookup(ctx, b.Resolver)
	if err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	var errs []error
	for _, ap := range addrs {
		ln, err := lc.Listen(ctx, ep.Network(), ap.String())
		if err == nil {
			return ln, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
