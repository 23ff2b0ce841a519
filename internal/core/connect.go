package core

import (
	"context"
	"io"
	"os"

	"rnc/internal/capability"
	"rnc/internal/endpoint"
	"rnc/internal/metrics"
	"rnc/internal/scope"
	"rnc/internal/session"
	"rnc/internal/transport"
	"rnc/util"
)

// ConnectMode dials a remote endpoint and relays stdin/stdout over the
// resulting connection: the default client mode.
type ConnectMode struct {
	Endpoint   endpoint.Endpoint
	Dialer     transport.Dialer
	StdinChunk int
	Logger     *util.Logger
	Metrics    *metrics.Collector

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *ConnectMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run dials the endpoint once and relays until the peer closes its side
// of the connection.  Stdin EOF half-closes the socket but does not end
// the session.  A dial failure is not retried.
func (m *ConnectMode) Run(ctx context.Context) error {
	m.Logger.Verbose("connecting to %s", m.Endpoint)

	conn, err := m.Dialer.Dial(ctx, m.Endpoint)
	if err != nil {
		m.Metrics.RecordError(err.Error())
		return socketError("connect", m.Endpoint, err)
	}

	sc := scope.New(ctx)
	defer sc.Cancel()
	sess := session.New(conn, sc)
	defer sess.Close() //nolint:errcheck

	m.Logger.Verbose("[%s] connected to %s from %s", sess.ShortID(), sess.Peer, sess.Local)

	stdin := m.stdin()
	relay := &capability.Relay{
		Outbound: func(_ context.Context, w io.Writer) error {
			_, err := util.PumpSize(stdin, w, m.StdinChunk)
			return err
		},
		Sink:    m.stdout(),
		Logger:  m.Logger,
		Metrics: m.Metrics,
	}

	if err := relay.Handle(sc.Context(), sess); err != nil {
		m.Metrics.RecordError(err.Error())
		return err
	}
	m.Logger.Verbose("[%s] connection to %s closed", sess.ShortID(), sess.Peer)
	return nil
}
