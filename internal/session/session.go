// Package session represents one relayed TCP connection.
//
// A Session is split once into a read half and a write half.  Each half
// is handed to exactly one pump, so no two goroutines ever read or
// write the same direction of a socket.
package session

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"rnc/internal/errors"
	"rnc/internal/scope"
)

// Session encapsulates the runtime state of a single connection.
type Session struct {
	ID    string
	Peer  net.Addr
	Local net.Addr
	Scope *scope.Scope

	conn      net.Conn
	split     atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New creates a Session for conn governed by sc.  Cancelling sc closes
// the connection, which releases any pump blocked on it.
func New(conn net.Conn, sc *scope.Scope) *Session {
	s := &Session{
		ID:    uuid.NewString(),
		Peer:  conn.RemoteAddr(),
		Local: conn.LocalAddr(),
		Scope: sc,
		conn:  conn,
	}
	sc.AfterCancel(func() { s.Close() }) //nolint:errcheck
	return s
}

// ShortID returns the first eight characters of the ID for log lines.
func (s *Session) ShortID() string {
	if len(s.ID) < 8 {
		return s.ID
	}
	return s.ID[:8]
}

// Split hands out the two halves of the connection.  It may only be
// called once.
func (s *Session) Split() (*ReadHalf, *WriteHalf, error) {
	if s.split.Swap(true) {
		return nil, nil, errors.ErrSessionSplit
	}
	return &ReadHalf{conn: s.conn}, &WriteHalf{conn: s.conn}, nil
}

// Close closes the whole connection.  It is safe to call repeatedly.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// ── Halves ───────────────────────────────────────────────────────────

type closeWriter interface{ CloseWrite() error }

// ReadHalf is the inbound direction of a session.  It is closed only
// together with the whole session.
type ReadHalf struct {
	conn net.Conn
}

func (r *ReadHalf) Read(p []byte) (int, error) { return r.conn.Read(p) }

// WriteHalf is the outbound direction of a session.
type WriteHalf struct {
	conn   net.Conn
	closed atomic.Bool
}

func (w *WriteHalf) Write(p []byte) (int, error) {
	if w.closed.Load() {
		return 0, errors.ErrSessionClosed
	}
	return w.conn.Write(p)
}

// Close half-closes the socket (TCP FIN) so the peer sees end-of-stream
// while the read half keeps draining.
func (w *WriteHalf) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	if cw, ok := w.conn.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return nil
}
