// Package endpoint turns the user-supplied host, port and IP-family
// preference into a concrete address to bind or dial.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// DefaultPort is used when no port is given on the command line.
const DefaultPort = 31337

// ── Errors ───────────────────────────────────────────────────────────

var (
	// ErrNoHostName is returned in connect mode when no host was given.
	ErrNoHostName = errors.New("no hostname specified")

	// ErrIPVersionMismatch is returned when the -4/-6 filter rejects
	// every candidate address.
	ErrIPVersionMismatch = errors.New("IP version mismatch")

	// ErrFamilyConflict is returned when both -4 and -6 are set.
	ErrFamilyConflict = errors.New("-4 and -6 are mutually exclusive")

	errNoAddresses = errors.New("no addresses found")
)

// AddrParseError reports a host that looks like a literal IP address but
// does not parse as one.
type AddrParseError struct {
	Input string
	Err   error
}

func (e *AddrParseError) Error() string {
	return fmt.Sprintf("invalid IP address %q: %v", e.Input, e.Err)
}

func (e *AddrParseError) Unwrap() error { return e.Err }

// LookupError reports that the resolver could not answer for Name.
type LookupError struct {
	Name string
	Err  error
}

func (e *LookupError) Error() string { return fmt.Sprintf("lookup %s: %v", e.Name, e.Err) }

func (e *LookupError) Unwrap() error { return e.Err }

// ── Family ───────────────────────────────────────────────────────────

// Family restricts which IP versions are acceptable.
type Family int

const (
	Any Family = iota
	V4Only
	V6Only
)

// FamilyFromFlags maps the -4/-6 flags to a Family.
func FamilyFromFlags(ipv4, ipv6 bool) (Family, error) {
	switch {
	case ipv4 && ipv6:
		return Any, ErrFamilyConflict
	case ipv4:
		return V4Only, nil
	case ipv6:
		return V6Only, nil
	default:
		return Any, nil
	}
}

// Allows reports whether addr belongs to an acceptable IP version.  A
// v4-mapped address is an IPv6 address.
func (f Family) Allows(addr netip.Addr) bool {
	switch f {
	case V4Only:
		return addr.Is4()
	case V6Only:
		return addr.Is6()
	default:
		return true
	}
}

// Network returns the Go network name ("tcp", "tcp4" or "tcp6").
func (f Family) Network() string {
	switch f {
	case V4Only:
		return "tcp4"
	case V6Only:
		return "tcp6"
	default:
		return "tcp"
	}
}

func (f Family) String() string {
	switch f {
	case V4Only:
		return "ipv4"
	case V6Only:
		return "ipv6"
	default:
		return "any"
	}
}

// ── Endpoint ─────────────────────────────────────────────────────────

// Endpoint is a resolved bind or dial target.  Exactly one of Name and
// Addr is set.  Endpoint is a value type and is never mutated.
type Endpoint struct {
	name   string
	addr   netip.Addr
	port   uint16
	family Family
}

// IsName reports whether the host is a symbolic name that still needs
// a DNS lookup.
func (e Endpoint) IsName() bool { return e.name != "" }

// Name returns the symbolic host name, or "" for literal addresses.
func (e Endpoint) Name() string { return e.name }

// Addr returns the literal address; it is invalid when IsName is true.
func (e Endpoint) Addr() netip.Addr { return e.addr }

// Port returns the TCP port.
func (e Endpoint) Port() uint16 { return e.port }

// Family returns the IP version restriction.
func (e Endpoint) Family() Family { return e.family }

// Network returns the Go network to dial or listen on.  A v4-mapped
// literal is carried by an IPv4 socket.
func (e Endpoint) Network() string {
	if e.addr.Is4In6() {
		return "tcp4"
	}
	return e.family.Network()
}

// Host returns the name or the literal address as text.
func (e Endpoint) Host() string {
	if e.IsName() {
		return e.name
	}
	return e.addr.String()
}

// String renders host:port, bracketing IPv6 literals.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host(), strconv.Itoa(int(e.port)))
}

// Lookup returns the candidate socket addresses in resolver order,
// filtered by the family restriction.  Literal endpoints never touch
// the resolver.
func (e Endpoint) Lookup(ctx context.Context, r Resolver) ([]netip.AddrPort, error) {
	if !e.IsName() {
		return []netip.AddrPort{netip.AddrPortFrom(e.addr, e.port)}, nil
	}
	if r == nil {
		r = net.DefaultResolver
	}

	ips, err := r.LookupNetIP(ctx, "ip", e.name)
	if err == nil && len(ips) == 0 {
		err = errNoAddresses
	}
	if err != nil {
		return nil, &LookupError{Name: e.name, Err: err}
	}

	out := make([]netip.AddrPort, 0, len(ips))
	for _, ip := range ips {
		if ip = ip.Unmap(); e.family.Allows(ip) {
			out = append(out, netip.AddrPortFrom(ip, e.port))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s (%s): %w", e.name, e.family, ErrIPVersionMismatch)
	}
	return out, nil
}

// Resolver is the subset of *net.Resolver that Lookup needs.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// ── Resolve ──────────────────────────────────────────────────────────

// Request carries the raw CLI inputs.  Port 0 means "not given".
type Request struct {
	Listen  bool
	Host    string
	HasHost bool
	Port    uint16
	Family  Family
}

// Resolve applies the defaulting and validation rules.  It performs no
// network I/O: symbolic names are kept as names and looked up later by
// [Endpoint.Lookup].
func Resolve(req Request) (Endpoint, error) {
	port := req.Port
	if port == 0 {
		port = DefaultPort
	}

	if !req.HasHost || req.Host == "" {
		if !req.Listen {
			return Endpoint{}, ErrNoHostName
		}
		addr := netip.IPv6Unspecified()
		if req.Family == V4Only {
			addr = netip.IPv4Unspecified()
		}
		return Endpoint{addr: addr, port: port, family: req.Family}, nil
	}

	host := strings.TrimSuffix(strings.TrimPrefix(req.Host, "["), "]")

	addr, err := netip.ParseAddr(host)
	if err != nil {
		if looksLikeIP(host) {
			return Endpoint{}, &AddrParseError{Input: req.Host, Err: err}
		}
		return Endpoint{name: host, port: port, family: req.Family}, nil
	}

	if !req.Family.Allows(addr) {
		return Endpoint{}, fmt.Errorf("%s (%s): %w", addr, req.Family, ErrIPVersionMismatch)
	}
	return Endpoint{addr: addr, port: port, family: req.Family}, nil
}

// looksLikeIP reports whether s is shaped like an address literal
// rather than a host name: only digits and dots, or any colon.
func looksLikeIP(s string) bool {
	if strings.Contains(s, ":") {
		return true
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '.' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
