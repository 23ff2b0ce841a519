// Package bus implements a single-producer, multi-consumer broadcast
// channel of byte chunks.
//
// The bus keeps the last Capacity chunks in a ring.  Publishing never
// blocks: a subscriber that falls more than Capacity chunks behind
// loses the oldest ones and is told how many it missed.  Each
// subscriber owns its own read cursor.
package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by [Subscriber.Next] once the publisher has
// closed the bus and every buffered chunk has been consumed.
var ErrClosed = errors.New("bus closed")

// LaggedError reports that a subscriber fell behind and Skipped chunks
// were overwritten before it could read them.  It is not fatal: the
// next call to Next resumes at the oldest chunk still buffered.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscriber lagged, %d chunk(s) skipped", e.Skipped)
}

// Bus is the shared broadcast channel.  It is safe for concurrent use,
// although the relay only ever has one publisher.
type Bus struct {
	mu     sync.Mutex
	ring   [][]byte
	head   uint64 // sequence number of the next chunk to publish
	subs   int
	closed bool
	wake   chan struct{} // closed and replaced on every publish/close
}

// New creates a bus that buffers up to capacity chunks.  A capacity
// below 1 is treated as 1.
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{
		ring: make([][]byte, capacity),
		wake: make(chan struct{}),
	}
}

// Subscribers returns the number of live subscribers.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs
}

// Publish appends a copy of chunk to the ring and wakes every waiting
// subscriber.  It never blocks.  It reports false when the chunk was
// dropped because there are no subscribers or the bus is closed.
func (b *Bus) Publish(chunk []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.subs == 0 {
		return false
	}

	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	b.ring[b.head%uint64(len(b.ring))] = buf
	b.head++
	b.notifyLocked()
	return true
}

// Close marks the publisher as gone.  Subscribers drain what is still
// buffered and then receive ErrClosed.  Close is idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		b.notifyLocked()
	}
	return nil
}

func (b *Bus) notifyLocked() {
	close(b.wake)
	b.wake = make(chan struct{})
}

// Subscribe returns a subscriber that receives every chunk published
// from now on.
func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &Subscriber{bus: b}
	s.next.Store(b.head)
	b.subs++
	return s
}

// Writer exposes the publishing side as an io.WriteCloser so the stdin
// producer can be driven by a plain copy loop.  Each Write publishes one
// chunk.  onDrop, if non-nil, is called for every chunk nobody received.
func (b *Bus) Writer(onDrop func()) io.WriteCloser { return publisher{b, onDrop} }

type publisher struct {
	b      *Bus
	onDrop func()
}

func (p publisher) Write(chunk []byte) (int, error) {
	if !p.b.Publish(chunk) && p.onDrop != nil {
		p.onDrop()
	}
	return len(chunk), nil
}

func (p publisher) Close() error { return p.b.Close() }

// ── Subscriber ───────────────────────────────────────────────────────

// Subscriber is one consumer's view of the bus.  A Subscriber must not
// be used from more than one goroutine at a time.
type Subscriber struct {
	bus      *Bus
	next     atomic.Uint64 // sequence number of the next chunk to read
	released atomic.Bool
}

// Next returns the next chunk.  It blocks until a chunk is available,
// the bus is closed (ErrClosed), or ctx is done (ctx.Err()).  When the
// subscriber has fallen behind it returns a *LaggedError and moves its
// cursor to the oldest buffered chunk.
func (s *Subscriber) Next(ctx context.Context) ([]byte, error) {
	b := s.bus
	for {
		b.mu.Lock()
		next := s.next.Load()
		capacity := uint64(len(b.ring))

		if b.head > capacity && next < b.head-capacity {
			oldest := b.head - capacity
			s.next.Store(oldest)
			b.mu.Unlock()
			return nil, &LaggedError{Skipped: oldest - next}
		}

		if next < b.head {
			chunk := b.ring[next%capacity]
			s.next.Store(next + 1)
			b.mu.Unlock()
			return chunk, nil
		}

		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}

		wake := b.wake
		b.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close unsubscribes.  Calling Close more than once has no effect.
func (s *Subscriber) Close() {
	if s.released.Swap(true) {
		return
	}
	s.bus.mu.Lock()
	s.bus.subs--
	s.bus.mu.Unlock()
}

// ── Forward ──────────────────────────────────────────────────────────

// Forward writes every chunk the subscriber receives to w until the bus
// is closed (returns nil), a write fails, or ctx is done.  Lag is not
// fatal: onLag, if non-nil, is told how many chunks were skipped and
// forwarding resumes.
func Forward(ctx context.Context, sub *Subscriber, w io.Writer, onLag func(skipped uint64)) (int64, error) {
	var written int64
	for {
		chunk, err := sub.Next(ctx)
		if err != nil {
			var le *LaggedError
			switch {
			case errors.As(err, &le):
				if onLag != nil {
					onLag(le.Skipped)
				}
				continue
			case errors.Is(err, ErrClosed):
				return written, nil
			default:
				return written, err
			}
		}

		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
		if n != len(chunk) {
			return written, io.ErrShortWrite
		}
	}
}
