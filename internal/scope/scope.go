// Package scope provides a hierarchical cancellation signal for the
// goroutines that make up a relay session.
//
// A Scope wraps a context.Context.  Cancelling a scope cancels every
// child scope and wakes every task racing against it.  Cancellation is
// idempotent and monotonic.
package scope

import (
	"context"
	"errors"
)

// ErrCancelled is returned by [Run] when the scope was cancelled before
// the task finished.
var ErrCancelled = errors.New("scope cancelled")

// Scope is a cancellable unit of work.  The zero value is not usable;
// create scopes with [New] or [Scope.Child].
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// New returns a scope that is cancelled when parent is done or when
// Cancel is called.
func New(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Child returns a scope that is cancelled together with s but can also
// be cancelled on its own without affecting s.
func (s *Scope) Child() *Scope {
	return New(s.ctx)
}

// Context exposes the scope as a context for blocking calls that accept
// one.
func (s *Scope) Context() context.Context { return s.ctx }

// Done is closed once the scope is cancelled.
func (s *Scope) Done() <-chan struct{} { return s.ctx.Done() }

// Cancelled reports whether the scope has been cancelled.
func (s *Scope) Cancelled() bool { return s.ctx.Err() != nil }

// Cancel cancels the scope and all of its children.  It never blocks and
// may be called any number of times.
func (s *Scope) Cancel() {
	s.cancel()
}

// AfterCancel arranges for fn to run on its own goroutine once the scope
// is cancelled.  It is used to close sockets so that tasks blocked in
// I/O observe the cancellation.  If the scope is already cancelled fn
// runs immediately.
func (s *Scope) AfterCancel(fn func()) {
	context.AfterFunc(s.ctx, fn)
}

// Run races task against s.  It returns the task's result if the task
// finishes first, or ErrCancelled as soon as the scope is cancelled.
// The losing task is not waited for; it keeps running on its own
// goroutine until its blocking call returns.
func Run(s *Scope, task func() error) error {
	if s.Cancelled() {
		return ErrCancelled
	}

	result := make(chan error, 1)
	go func() { result <- task() }()

	select {
	case err := <-result:
		return err
	case <-s.Done():
		// Prefer a result that raced in alongside the cancellation.
		select {
		case err := <-result:
			return err
		default:
			return ErrCancelled
		}
	}
}

// Task is a handle on a goroutine started with [Scope.Go].
type Task struct {
	done chan struct{}
	err  error
}

// Go runs task under [Run] on a new goroutine.
func (s *Scope) Go(task func() error) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.err = Run(s, task)
	}()
	return t
}

// Done is closed once the task has finished or was discarded by
// cancellation.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finished or was cancelled and returns its
// result.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}
