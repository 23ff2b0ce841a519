package capability

import (
	"context"
	"io"

	"rnc/internal/errors"
	"rnc/internal/metrics"
	"rnc/internal/scope"
	"rnc/internal/session"
	"rnc/util"
)

// Relay shuttles bytes between a session and the local side.  The
// outbound pump runs on its own goroutine under the session scope; the
// inbound pump runs on the caller's goroutine and its end is the end of
// the session.
type Relay struct {
	// Outbound copies local data into w until the local source is
	// exhausted (nil) or fails.  ctx is done once the session ends.
	Outbound func(ctx context.Context, w io.Writer) error
	// Sink receives everything the peer sends.
	Sink io.Writer

	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Handle splits sess and runs both pumps.  When the outbound source is
// exhausted the socket is half-closed so the peer sees end-of-stream.
// When the inbound pump ends the session scope is cancelled, which
// closes the socket and abandons the outbound pump.
//
// Handle returns nil when the peer closed cleanly or the session was
// cancelled, and a *errors.NetworkError for a genuine inbound failure.
func (r *Relay) Handle(ctx context.Context, sess *session.Session) error {
	rh, wh, err := sess.Split()
	if err != nil {
		return err
	}
	sc := sess.Scope

	r.Metrics.ConnectionOpened()
	defer r.Metrics.ConnectionClosed()

	out := sc.Go(func() error {
		defer wh.Close() //nolint:errcheck
		w := util.CountingWriter{W: wh, Add: r.Metrics.BytesSent}
		if err := r.Outbound(sc.Context(), w); err != nil {
			return errors.Wrap("write", sess.Peer.String(), err)
		}
		r.Logger.Debug("[%s] outbound done, half-closed", sess.ShortID())
		return nil
	})

	sink := util.CountingWriter{W: r.Sink, Add: r.Metrics.BytesReceived}
	_, inErr := util.Pump(rh, sink)
	cancelled := sc.Cancelled()
	sc.Cancel()

	select {
	case <-out.Done():
		if err := out.Wait(); err != nil && !errors.Is(err, scope.ErrCancelled) && !util.IsHarmless(err) {
			r.Logger.Verbose("[%s] %v", sess.ShortID(), err)
		}
	default:
	}

	if inErr != nil && !util.IsHarmless(inErr) && !cancelled {
		return errors.Wrap("read", sess.Peer.String(), inErr)
	}
	return nil
}
