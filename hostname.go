package wren

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"slices"

	"github.com/synqronlabs/wren/dns"
)

// HostnameResolver discovers the name the server announces in its greeting
// and QUIT replies when ServerConfig.Hostname is empty.
type HostnameResolver interface {
	Hostname(ctx context.Context) (string, error)
}

// HostnameFunc adapts a function to HostnameResolver.
type HostnameFunc func(ctx context.Context) (string, error)

func (f HostnameFunc) Hostname(ctx context.Context) (string, error) {
	return f(ctx)
}

// OSHostname returns the host name reported by the kernel.
func OSHostname() HostnameResolver {
	return HostnameFunc(func(context.Context) (string, error) {
		return os.Hostname()
	})
}

// StaticHostname always returns name.
func StaticHostname(name string) HostnameResolver {
	return HostnameFunc(func(context.Context) (string, error) {
		return name, nil
	})
}

// ReverseDNSHostname returns the first PTR name of ip that resolves back to
// ip (forward-confirmed reverse DNS), which is what receiving servers check
// against the greeting of a mail host.
func ReverseDNSHostname(r dns.Resolver, ip netip.Addr) HostnameResolver {
	return HostnameFunc(func(ctx context.Context) (string, error) {
		if !ip.IsValid() {
			return "", fmt.Errorf("%w: no address for reverse lookup", ErrHostnameUnavailable)
		}
		addr := ip.Unmap()

		names, err := r.LookupAddr(ctx, addr)
		if err != nil {
			return "", fmt.Errorf("%w: reverse lookup of %s: %w", ErrHostnameUnavailable, addr, err)
		}
		for _, name := range names.Records {
			ips, err := r.LookupIP(ctx, name)
			if err != nil {
				continue
			}
			if slices.Contains(ips.Records, addr) {
				return dns.TrimDot(name), nil
			}
		}
		return "", fmt.Errorf("%w: no PTR name of %s resolves back to it", ErrHostnameUnavailable, addr)
	})
}
