package util

import (
	"errors"
	"io"
	"net"
	"sync"
	"syscall"
)

// DefaultBufSize is the standard buffer size for network I/O (32 KiB).
const DefaultBufSize = 32 * 1024

// Pump copies src to dst until src reaches EOF (returns nil) or either
// side fails (returns that error).  Each pump owns its source and sink;
// nothing else may read src or write dst while it runs.
func Pump(src io.Reader, dst io.Writer) (int64, error) {
	buf := GetBuf()
	defer PutBuf(buf)
	return pump(src, dst, *buf)
}

// PumpSize is Pump with reads of at most size bytes, so that each write
// to dst carries one read's worth of data.  A size of DefaultBufSize or
// less than 1 uses the pooled buffer.
func PumpSize(src io.Reader, dst io.Writer, size int) (int64, error) {
	if size < 1 || size == DefaultBufSize {
		return Pump(src, dst)
	}
	return pump(src, dst, make([]byte, size))
}

func pump(src io.Reader, dst io.Writer, buf []byte) (int64, error) {
	var written int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			if nw < 0 || nr < nw {
				nw = 0
				if werr == nil {
					werr = errors.New("invalid write result")
				}
			}
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return written, nil
			}
			return written, rerr
		}
	}
}

// CountingWriter reports every successful write to Add.
type CountingWriter struct {
	W   io.Writer
	Add func(n int64)
}

func (c CountingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	if n > 0 && c.Add != nil {
		c.Add(int64(n))
	}
	return n, err
}

// LockedWriter serialises writes so that concurrent pumps sharing one
// sink never interleave inside a single chunk.
type LockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLockedWriter wraps w.
func NewLockedWriter(w io.Writer) *LockedWriter { return &LockedWriter{w: w} }

func (l *LockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// IsHarmless returns true for errors that are expected during shutdown:
// the peer went away or we closed the socket ourselves.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
