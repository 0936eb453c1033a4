package dns

import (
	"context"
	"net/netip"
	"slices"
)

// MockResolver is a Resolver used for testing.
// A and AAAA map absolute names (with trailing dot) to addresses; PTR maps
// the textual form of an IP address to absolute names.
type MockResolver struct {
	PTR  map[string][]string
	A    map[string][]string
	AAAA map[string][]string

	// Fail contains queries that return ErrDNSServFail.
	// Format: "type name", e.g. "ptr 192.0.2.1" or "a mx.example.org.".
	Fail []string

	// AllAuthentic sets Authentic in every successful response.
	AllAuthentic bool
}

var _ Resolver = MockResolver{}

// LookupIP returns the A and AAAA records for the given domain.
func (r MockResolver) LookupIP(ctx context.Context, domain string) (Result[netip.Addr], error) {
	if err := ctx.Err(); err != nil {
		return Result[netip.Addr]{}, err
	}
	fqdn := ensureFQDN(domain)
	if slices.Contains(r.Fail, "a "+fqdn) || slices.Contains(r.Fail, "aaaa "+fqdn) {
		return Result[netip.Addr]{}, ErrDNSServFail
	}

	var ips []netip.Addr
	for _, s := range append(slices.Clone(r.A[fqdn]), r.AAAA[fqdn]...) {
		if ip, err := netip.ParseAddr(s); err == nil {
			ips = append(ips, ip)
		}
	}
	if len(ips) == 0 {
		return Result[netip.Addr]{}, ErrDNSNotFound
	}
	return Result[netip.Addr]{Records: ips, Authentic: r.AllAuthentic}, nil
}

// LookupAddr performs a reverse DNS lookup.
func (r MockResolver) LookupAddr(ctx context.Context, ip netip.Addr) (Result[string], error) {
	if err := ctx.Err(); err != nil {
		return Result[string]{}, err
	}
	key := ip.String()
	if slices.Contains(r.Fail, "ptr "+key) {
		return Result[string]{}, ErrDNSServFail
	}

	records := r.PTR[key]
	if len(records) == 0 {
		return Result[string]{}, ErrDNSNotFound
	}
	return Result[string]{Records: records, Authentic: r.AllAuthentic}, nil
}

// ensureFQDN ensures the name ends with a dot.
func ensureFQDN(name string) string {
	if len(name) == 0 || name[len(name)-1] != '.' {
		return name + "."
	}
	return name
}
