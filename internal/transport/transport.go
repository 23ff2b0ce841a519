// Package transport opens the TCP sockets the relay runs over.
// Transports handle how a connection is established for an endpoint,
// independent of what is relayed across it.
package transport

import (
	"context"
	"net"

	"rnc/internal/endpoint"
)

// Dialer opens outbound connections to an endpoint.
type Dialer interface {
	// Dial resolves ep and connects to the first candidate address that
	// accepts the connection.
	Dial(ctx context.Context, ep endpoint.Endpoint) (net.Conn, error)
}

// Binder opens a listening socket for an endpoint.
type Binder interface {
	Listen(ctx context.Context, ep endpoint.Endpoint) (net.Listener, error)
}
