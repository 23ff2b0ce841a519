// Package capability defines what happens over an established
// connection.  A Capability operates on a Session rather than a raw
// net.Conn, which keeps it testable and decoupled from how the
// connection was dialed or accepted.
package capability

import (
	"context"

	"rnc/internal/session"
)

// Capability handles a single connection.  The only implementation is
// Relay; connect and listen mode differ in what feeds it.
type Capability interface {
	// Handle runs the capability against the given session.  It blocks
	// until the inbound direction is done or the session's scope is
	// cancelled.
	Handle(ctx context.Context, sess *session.Session) error
}
