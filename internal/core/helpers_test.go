package core

import (
	"bytes"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"rnc/internal/endpoint"
	"rnc/util"
)

// syncBuffer is a bytes.Buffer safe for one writer goroutine and a
// polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitContains(t *testing.T, buf *syncBuffer, want string) {
	t.Helper()
	waitFor(t, "stdout to contain "+want, func() bool { return strings.Contains(buf.String(), want) })
}

// loopback returns a listen endpoint on a free 127.0.0.1 port.
func loopback(t *testing.T) endpoint.Endpoint {
	t.Helper()
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	ep, err := endpoint.Resolve(endpoint.Request{
		Listen:  true,
		Host:    "127.0.0.1",
		HasHost: true,
		Port:    uint16(port),
	})
	if err != nil {
		t.Fatal(err)
	}
	return ep
}

// readN reads exactly len(want) bytes from conn and compares them.
func readN(t *testing.T, conn net.Conn, want string) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck
	got := make([]byte, len(want))
	n := 0
	for n < len(got) {
		m, err := conn.Read(got[n:])
		n += m
		if err != nil {
			t.Fatalf("read %q: got %q, %v", want, got[:n], err)
		}
	}
	if string(got) != want {
		t.Fatalf("read %q, want %q", got, want)
	}
}
