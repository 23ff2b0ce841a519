package bus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestPublish_NoSubscribersDrops(t *testing.T) {
	b := New(4)
	if b.Publish([]byte("lost")) {
		t.Fatal("Publish should report a drop with no subscribers")
	}

	sub := b.Subscribe()
	defer sub.Close()
	b.Publish([]byte("heard"))
	chunk, err := sub.Next(context.Background())
	if err != nil || string(chunk) != "heard" {
		t.Fatalf("Next = %q, %v; a new subscriber must not see older chunks", chunk, err)
	}
}

func TestSubscriber_ReceivesInOrder(t *testing.T) {
	b := New(8)
	sub := b.Subscribe()
	defer sub.Close()

	want := []string{"a", "bb", "ccc"}
	for _, s := range want {
		b.Publish([]byte(s))
	}

	ctx := context.Background()
	var got []string
	for range want {
		chunk, err := sub.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, string(chunk))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}
}

func TestPublish_CopiesChunk(t *testing.T) {
	b := New(2)
	sub := b.Subscribe()
	defer sub.Close()

	buf := []byte("abc")
	b.Publish(buf)
	buf[0] = 'X'

	chunk, err := sub.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(chunk) != "abc" {
		t.Errorf("chunk = %q, publisher buffer reuse leaked into the bus", chunk)
	}
}

func TestSubscriber_Lagged(t *testing.T) {
	b := New(2)
	sub := b.Subscribe()
	defer sub.Close()

	for i := 0; i < 5; i++ {
		b.Publish([]byte{byte('0' + i)})
	}

	ctx := context.Background()
	_, err := sub.Next(ctx)
	var le *LaggedError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want *LaggedError", err)
	}
	if le.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", le.Skipped)
	}

	// Resumes at the oldest buffered chunk.
	for _, want := range []string{"3", "4"} {
		chunk, err := sub.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if string(chunk) != want {
			t.Errorf("chunk = %q, want %q", chunk, want)
		}
	}
}

func TestSubscriber_ClosedAfterDrain(t *testing.T) {
	b := New(4)
	sub := b.Subscribe()
	defer sub.Close()

	b.Publish([]byte("last"))
	b.Close()
	b.Close()

	ctx := context.Background()
	chunk, err := sub.Next(ctx)
	if err != nil || string(chunk) != "last" {
		t.Fatalf("Next = %q, %v; want buffered chunk before close", chunk, err)
	}
	if _, err := sub.Next(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if b.Publish([]byte("late")) {
		t.Error("Publish after Close should drop")
	}
}

func TestSubscriber_WakesOnPublish(t *testing.T) {
	b := New(4)
	sub := b.Subscribe()
	defer sub.Close()

	got := make(chan string, 1)
	go func() {
		chunk, err := sub.Next(context.Background())
		if err != nil {
			got <- err.Error()
			return
		}
		got <- string(chunk)
	}()

	time.Sleep(20 * time.Millisecond)
	b.Publish([]byte("hello"))

	select {
	case s := <-got:
		if s != "hello" {
			t.Errorf("got %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber was not woken")
	}
}

func TestSubscriber_ContextCancel(t *testing.T) {
	b := New(4)
	sub := b.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := sub.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSubscriber_Close(t *testing.T) {
	b := New(4)
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	if n := b.Subscribers(); n != 2 {
		t.Fatalf("Subscribers = %d, want 2", n)
	}
	s1.Close()
	s1.Close()
	if n := b.Subscribers(); n != 1 {
		t.Fatalf("Subscribers = %d after double Close, want 1", n)
	}
	s2.Close()
	if b.Publish([]byte("x")) {
		t.Error("Publish should drop once every subscriber left")
	}
}

func TestWriter(t *testing.T) {
	b := New(4)
	sub := b.Subscribe()
	defer sub.Close()

	w := b.Writer(nil)
	n, err := w.Write([]byte("via writer"))
	if err != nil || n != len("via writer") {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if _, err := Forward(context.Background(), sub, &out, nil); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if out.String() != "via writer" {
		t.Errorf("out = %q", out.String())
	}
}

func TestWriter_OnDrop(t *testing.T) {
	b := New(4)
	drops := 0
	w := b.Writer(func() { drops++ })

	_, _ = w.Write([]byte("nobody listening"))
	sub := b.Subscribe()
	_, _ = w.Write([]byte("heard"))
	sub.Close()
	_, _ = w.Write([]byte("gone again"))

	if drops != 2 {
		t.Errorf("drops = %d, want 2", drops)
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestForward_WriteError(t *testing.T) {
	b := New(4)
	sub := b.Subscribe()
	defer sub.Close()
	b.Publish([]byte("x"))

	if _, err := Forward(context.Background(), sub, failWriter{}, nil); err == nil {
		t.Fatal("Forward should surface write errors")
	}
}

func TestForward_ReportsLag(t *testing.T) {
	b := New(1)
	sub := b.Subscribe()
	defer sub.Close()
	b.Publish([]byte("a"))
	b.Publish([]byte("b"))
	b.Publish([]byte("c"))
	b.Close()

	var skipped uint64
	var out bytes.Buffer
	if _, err := Forward(context.Background(), sub, &out, func(n uint64) { skipped += n }); err != nil {
		t.Fatal(err)
	}
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}
	if out.String() != "c" {
		t.Errorf("out = %q, want %q", out.String(), "c")
	}
}

// isSubsequence reports whether every byte of sub appears in seq in the
// same relative order.
func isSubsequence(sub, seq []byte) bool {
	i := 0
	for _, c := range seq {
		if i < len(sub) && sub[i] == c {
			i++
		}
	}
	return i == len(sub)
}

// TestFanOut_Subsequence checks that with many concurrent subscribers
// every output is an in-order subsequence of the published stream, with
// no duplication, whatever the lag.
func TestFanOut_Subsequence(t *testing.T) {
	const (
		subscribers = 8
		chunks      = 500
	)
	b := New(4)

	subs := make([]*Subscriber, subscribers)
	for i := range subs {
		subs[i] = b.Subscribe()
	}

	outputs := make([][]byte, subscribers)
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub *Subscriber) {
			defer wg.Done()
			defer sub.Close()
			var buf bytes.Buffer
			Forward(context.Background(), sub, &buf, nil) //nolint:errcheck
			outputs[i] = buf.Bytes()
		}(i, sub)
	}

	var published bytes.Buffer
	for i := 0; i < chunks; i++ {
		chunk := []byte(fmt.Sprintf("%04d;", i))
		published.Write(chunk)
		b.Publish(chunk)
	}
	b.Close()
	wg.Wait()

	for i, out := range outputs {
		if !isSubsequence(out, published.Bytes()) {
			t.Errorf("subscriber %d output is not an ordered subsequence", i)
		}
		if len(out)%5 != 0 {
			t.Errorf("subscriber %d received a torn chunk (%d bytes)", i, len(out))
		}
		seen := map[string]bool{}
		for j := 0; j+5 <= len(out); j += 5 {
			c := string(out[j : j+5])
			if seen[c] {
				t.Errorf("subscriber %d received %q twice", i, c)
			}
			seen[c] = true
		}
	}
}

func BenchmarkPublish(b *testing.B) {
	bus := New(16)
	sub := bus.Subscribe()
	defer sub.Close()
	chunk := bytes.Repeat([]byte("x"), 1024)

	b.SetBytes(int64(len(chunk)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bus.Publish(chunk)
	}
}
