// Package dns provides the DNS lookups the SMTP server needs to discover its
// own hostname: reverse (PTR) lookups and forward confirmation of the result.
package dns

import (
	"context"
	"errors"
	"net/netip"
)

var (
	ErrDNSNotFound = errors.New("dns: no such record")
	ErrDNSTimeout  = errors.New("dns: query timed out")
	ErrDNSServFail = errors.New("dns: server failure")
	ErrDNSRefused  = errors.New("dns: query refused")
	ErrDNSBogus    = errors.New("dns: DNSSEC validation failed")
)

// Result holds the records of a lookup. Authentic is set when the answer
// was validated with DNSSEC by the upstream resolver.
type Result[T any] struct {
	Records   []T
	Authentic bool
}

// Resolver performs the lookups used for hostname discovery.
type Resolver interface {
	// LookupAddr returns the PTR names of ip, as absolute names.
	LookupAddr(ctx context.Context, ip netip.Addr) (Result[string], error)
	// LookupIP returns the A and AAAA records of domain.
	LookupIP(ctx context.Context, domain string) (Result[netip.Addr], error)
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDNSNotFound)
}

// IsTimeout reports whether err is a query timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrDNSTimeout)
}

// IsServFail reports whether err is a server failure.
func IsServFail(err error) bool {
	return errors.Is(err, ErrDNSServFail)
}

// IsTemporary reports whether retrying the query later may succeed.
func IsTemporary(err error) bool {
	return IsTimeout(err) || IsServFail(err)
}
