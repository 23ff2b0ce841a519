// Package errors provides domain-specific error types for rnc.
//
// These types carry structured context (operation, address, retryability)
// that helps callers decide how to handle failures, and they decide the
// process exit status through [ExitCode].
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ── Exit codes ───────────────────────────────────────────────────────

// Exit statuses follow sysexits(3).
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 64 // EX_USAGE: bad flags or an unresolvable address
	ExitNoHost  = 68 // EX_NOHOST: bind or connect failed
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrSessionSplit  = errors.New("session already split")
	ErrSessionClosed = errors.New("session closed")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // operation: "connect", "listen", "lookup", "accept", "read", "write"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Addr != "" {
		b.WriteString(" " + e.Addr)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if e.Retryable {
		b.WriteString(" (retryable)")
	}
	return b.String()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ResolutionError reports that the user-supplied address could not be
// turned into an endpoint.  It is detected before any socket is opened.
type ResolutionError struct {
	Input string
	Err   error
}

func (e *ResolutionError) Error() string {
	if e.Input == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Input, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ConfigError reports a bad flag, positional argument or environment
// variable.  Field names the offending input ("port", "flags", "env").
type ConfigError struct {
	Field   string
	Value   interface{} // nil when the input was missing
	Message string
	Hint    string // optional suggestion printed on its own line
}

func (e *ConfigError) Error() string {
	msg := e.Field
	if e.Value != nil {
		msg += fmt.Sprintf(" %q", fmt.Sprint(e.Value))
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// Resolution wraps err as a ResolutionError for input.
func Resolution(input string, err error) *ResolutionError {
	return &ResolutionError{Input: input, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsTemporary reports whether err is a transient condition, such as
// an accept failing on file-descriptor exhaustion.
func IsTemporary(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

func classifyRetryable(err error) bool {
	var temp interface{ Temporary() bool }
	if err == nil || !errors.As(err, &temp) {
		return false
	}
	return temp.Temporary()
}

// noHostOps are the operations whose failure means the peer or the
// local address is unreachable.
var noHostOps = map[string]bool{
	"connect": true,
	"listen":  true,
	"lookup":  true,
}

// ExitCode maps an error returned by a mode to a process exit status.
func ExitCode(err error) int {
	var (
		re *ResolutionError
		ce *ConfigError
		ne *NetworkError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &re), errors.As(err, &ce):
		return ExitUsage
	case errors.As(err, &ne) && noHostOps[ne.Op]:
		return ExitNoHost
	default:
		return ExitFailure
	}
}

// ── Re-exports ───────────────────────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }
