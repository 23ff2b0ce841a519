package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultPort is used when no port is given.
	DefaultPort = 31337

	// DefaultBusCapacity is the number of stdin chunks the listen-mode
	// broadcast ring retains for slow clients.
	DefaultBusCapacity = 16

	// ConnectStdinChunk and ListenStdinChunk size the stdin reads in
	// each mode.  A listen-mode chunk is one bus slot.
	ConnectStdinChunk = 8192
	ListenStdinChunk  = 1024

	// AcceptBackoffInitial and AcceptBackoffMax bound the pause after a
	// transient accept error.
	AcceptBackoffInitial = 5 * time.Millisecond
	AcceptBackoffMax     = time.Second
)
