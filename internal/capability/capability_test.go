package capability

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"rnc/internal/metrics"
	"rnc/internal/scope"
	"rnc/internal/session"
	"rnc/util"
)

// dialPair returns a client connection and the matching accepted
// server connection over loopback.
func dialPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	server = <-accepted
	if server == nil {
		t.Fatal("accept failed")
	}
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func pumpFrom(r io.Reader) func(context.Context, io.Writer) error {
	return func(_ context.Context, w io.Writer) error {
		_, err := util.Pump(r, w)
		return err
	}
}

// TestRelay_Echo verifies Relay shuttles data both ways and that the
// outbound half-close lets an echo peer finish.
func TestRelay_Echo(t *testing.T) {
	client, server := dialPair(t)
	go func() {
		io.Copy(server, server) //nolint:errcheck
		server.(*net.TCPConn).CloseWrite()
	}()

	sc := scope.New(context.Background())
	defer sc.Cancel()
	sess := session.New(client, sc)

	var out bytes.Buffer
	m := metrics.New()
	relay := &Relay{
		Outbound: pumpFrom(strings.NewReader("hello relay\n")),
		Sink:     &out,
		Logger:   util.NewLogger(0),
		Metrics:  m,
	}

	done := make(chan error, 1)
	go func() { done <- relay.Handle(sc.Context(), sess) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Relay.Handle: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not finish after the echo peer closed")
	}

	if got := out.String(); got != "hello relay\n" {
		t.Errorf("output = %q, want %q", got, "hello relay\n")
	}
	if m.TotalBytesIn() != 12 || m.TotalBytesOut() != 12 {
		t.Errorf("bytes in/out = %d/%d, want 12/12", m.TotalBytesIn(), m.TotalBytesOut())
	}
	if m.ActiveConnections() != 0 || m.TotalConnections() != 1 {
		t.Errorf("connections active/total = %d/%d, want 0/1", m.ActiveConnections(), m.TotalConnections())
	}
}

// TestRelay_InboundEndCancelsOutbound verifies that the session ends
// when the peer closes, even though the local source never does.
func TestRelay_InboundEndCancelsOutbound(t *testing.T) {
	client, server := dialPair(t)
	server.Write([]byte("bye")) //nolint:errcheck
	server.Close()

	sc := scope.New(context.Background())
	sess := session.New(client, sc)

	stdin, stdinW := io.Pipe()
	defer stdinW.Close()

	var out bytes.Buffer
	relay := &Relay{Outbound: pumpFrom(stdin), Sink: &out, Logger: util.NewLogger(0)}

	done := make(chan error, 1)
	go func() { done <- relay.Handle(sc.Context(), sess) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Handle blocked on the local source")
	}
	if !sc.Cancelled() {
		t.Error("session scope should be cancelled after the inbound pump ends")
	}
	if out.String() != "bye" {
		t.Errorf("output = %q", out.String())
	}
}

// TestRelay_ScopeCancel verifies that cancelling the scope from outside
// releases a blocked inbound pump without reporting an error.
func TestRelay_ScopeCancel(t *testing.T) {
	client, _ := dialPair(t)

	sc := scope.New(context.Background())
	sess := session.New(client, sc)

	relay := &Relay{
		Outbound: func(ctx context.Context, _ io.Writer) error {
			<-ctx.Done()
			return nil
		},
		Sink:   io.Discard,
		Logger: util.NewLogger(0),
	}

	done := make(chan error, 1)
	go func() { done <- relay.Handle(sc.Context(), sess) }()
	time.Sleep(20 * time.Millisecond)
	sc.Cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Handle after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not release the inbound pump")
	}
}

type failSink struct{}

func (failSink) Write([]byte) (int, error) { return 0, errors.New("disk full") }

// TestRelay_SinkError verifies a local write failure surfaces as an
// error from Handle.
func TestRelay_SinkError(t *testing.T) {
	client, server := dialPair(t)
	server.Write([]byte("data")) //nolint:errcheck

	sc := scope.New(context.Background())
	sess := session.New(client, sc)

	relay := &Relay{
		Outbound: func(ctx context.Context, _ io.Writer) error {
			<-ctx.Done()
			return nil
		},
		Sink:   failSink{},
		Logger: util.NewLogger(0),
	}

	err := relay.Handle(sc.Context(), sess)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("Handle = %v, want the sink error", err)
	}
}

func TestRelay_SplitTwice(t *testing.T) {
	client, _ := dialPair(t)
	sc := scope.New(context.Background())
	defer sc.Cancel()
	sess := session.New(client, sc)
	if _, _, err := sess.Split(); err != nil {
		t.Fatal(err)
	}

	relay := &Relay{Outbound: pumpFrom(strings.NewReader("")), Sink: io.Discard, Logger: util.NewLogger(0)}
	if err := relay.Handle(sc.Context(), sess); err == nil {
		t.Fatal("Handle on an already split session should fail")
	}
}
