package core

import (
	"context"
	"io"
	"net"
	"os"
	"sync"

	"rnc/config"
	"rnc/internal/bus"
	"rnc/internal/capability"
	"rnc/internal/endpoint"
	"rnc/internal/errors"
	"rnc/internal/metrics"
	"rnc/internal/retry"
	"rnc/internal/scope"
	"rnc/internal/session"
	"rnc/internal/transport"
	"rnc/util"
)

// ListenMode binds an endpoint and relays stdin/stdout with accepted
// clients.  Stdin is read once and broadcast to every connected client.
//
// Without KeepOpen it serves exactly one client and returns when that
// client's inbound stream ends.  With KeepOpen it serves clients
// concurrently and only returns when ctx is cancelled.
type ListenMode struct {
	Endpoint    endpoint.Endpoint
	Binder      transport.Binder
	KeepOpen    bool
	BusCapacity int
	StdinChunk  int
	Logger      *util.Logger
	Metrics     *metrics.Collector

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	Stdin  io.Reader
	Stdout io.Writer

	// Ready, if non-nil, receives the bound address once the listener
	// is accepting.
	Ready chan<- net.Addr
}

func (m *ListenMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ListenMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run binds the endpoint and serves clients until the mode's exit
// condition is met.
func (m *ListenMode) Run(ctx context.Context) error {
	ln, err := m.Binder.Listen(ctx, m.Endpoint)
	if err != nil {
		m.Metrics.RecordError(err.Error())
		return socketError("listen", m.Endpoint, err)
	}
	addr := ln.Addr()

	root := scope.New(ctx)
	defer root.Cancel()
	root.AfterCancel(func() { ln.Close() }) //nolint:errcheck

	m.Logger.Info("Listening on %s.", addr)
	defer m.Logger.Info("Listener on %s closed.", addr)
	if m.Ready != nil {
		m.Ready <- addr
	}

	capacity := m.BusCapacity
	if capacity < 1 {
		capacity = config.DefaultBusCapacity
	}
	b := bus.New(capacity)
	go m.produce(b)

	if !m.KeepOpen {
		return m.serveOne(root, ln, b)
	}
	return m.serveMany(root, ln, b)
}

// produce pumps stdin onto the bus for the lifetime of the process.  It
// is never waited for: a read blocked on stdin cannot be interrupted.
func (m *ListenMode) produce(b *bus.Bus) {
	w := b.Writer(m.Metrics.ChunkDropped)
	defer w.Close() //nolint:errcheck

	if _, err := util.PumpSize(m.stdin(), w, m.StdinChunk); err != nil {
		m.Logger.Warn("stdin: %v", err)
		return
	}
	m.Logger.Verbose("stdin closed, half-closing clients")
}

// serveOne accepts a single client, stops accepting, and relays with it.
func (m *ListenMode) serveOne(root *scope.Scope, ln net.Listener, b *bus.Bus) error {
	conn, err := m.accept(root, ln, m.acceptBackoff())
	if err != nil || conn == nil {
		return err
	}
	ln.Close() //nolint:errcheck

	return m.serve(root, conn, b, m.stdout())
}

// serveMany accepts clients until root is cancelled and relays with each
// on its own goroutine.  A failing session is logged and dropped.
func (m *ListenMode) serveMany(root *scope.Scope, ln net.Listener, b *bus.Bus) error {
	stdout := util.NewLockedWriter(m.stdout())

	var wg sync.WaitGroup
	defer wg.Wait()

	backoff := m.acceptBackoff()
	for {
		conn, err := m.accept(root, ln, backoff)
		if err != nil || conn == nil {
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.serve(root, conn, b, stdout); err != nil {
				m.Logger.Warn("%v", err)
				m.Metrics.RecordError(err.Error())
			}
		}()
	}
}

func (m *ListenMode) acceptBackoff() *retry.Backoff {
	return &retry.Backoff{
		InitialDelay: config.AcceptBackoffInitial,
		MaxDelay:     config.AcceptBackoffMax,
		Jitter:       true,
	}
}

// accept waits for the next client, backing off after transient
// errors.  The schedule restarts after every successful accept.  It
// returns (nil, nil) once root is cancelled.
func (m *ListenMode) accept(root *scope.Scope, ln net.Listener, backoff *retry.Backoff) (net.Conn, error) {
	for {
		conn, err := ln.Accept()
		if err == nil {
			backoff.Reset()
			return conn, nil
		}
		if root.Cancelled() {
			return nil, nil
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, errors.Wrap("accept", ln.Addr().String(), err)
		}

		m.Metrics.RecordError(err.Error())
		if errors.IsTemporary(err) {
			m.Logger.Verbose("accept: %v", err)
		} else {
			m.Logger.Warn("accept: %v", err)
		}
		if backoff.Wait(root.Context()) != nil {
			return nil, nil
		}
	}
}

// serve relays one client in a child scope of parent: the bus feeds the
// socket and the socket feeds stdout.
func (m *ListenMode) serve(parent *scope.Scope, conn net.Conn, b *bus.Bus, stdout io.Writer) error {
	sc := parent.Child()
	defer sc.Cancel()

	sess := session.New(conn, sc)
	defer sess.Close() //nolint:errcheck

	sub := b.Subscribe()
	defer sub.Close()

	m.Logger.Info("Accepted connection from %s.", sess.Peer)
	m.Logger.Verbose("[%s] session %s, %d client(s) attached", sess.ShortID(), sess.ID, b.Subscribers())

	relay := &capability.Relay{
		Outbound: func(ctx context.Context, w io.Writer) error {
			_, err := bus.Forward(ctx, sub, w, func(skipped uint64) {
				m.Metrics.ChunksLagged(skipped)
				m.Logger.Verbose("[%s] lagged, %d chunk(s) skipped", sess.ShortID(), skipped)
			})
			return err
		},
		Sink:    stdout,
		Logger:  m.Logger,
		Metrics: m.Metrics,
	}

	err := relay.Handle(sc.Context(), sess)
	m.Logger.Info("Connection from %s closed.", sess.Peer)
	return err
}
