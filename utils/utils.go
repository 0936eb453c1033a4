// Package utils holds small helpers shared by the server and its collaborators.
package utils

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

var errNilAddr = errors.New("utils: address is nil")

// AddrIP extracts the IP address of a peer address. Addresses of unknown
// types are parsed from their string form, with or without a port.
func AddrIP(addr net.Addr) (netip.Addr, error) {
	if addr == nil {
		return netip.Addr{}, errNilAddr
	}

	var ip net.IP
	switch a := addr.(type) {
	case *net.TCPAddr:
		ip = a.IP
	case *net.UDPAddr:
		ip = a.IP
	case *net.IPAddr:
		ip = a.IP
	default:
		if ap, err := netip.ParseAddrPort(addr.String()); err == nil {
			return ap.Addr().Unmap(), nil
		}
		parsed, err := netip.ParseAddr(addr.String())
		if err != nil {
			return netip.Addr{}, fmt.Errorf("utils: unable to extract IP from address %q", addr.String())
		}
		return parsed.Unmap(), nil
	}

	parsed, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, fmt.Errorf("utils: unable to extract IP from address %q", addr.String())
	}
	return parsed.Unmap(), nil
}

// ContainsNonASCII reports whether s contains a byte above 127.
func ContainsNonASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return true
		}
	}
	return false
}

// GenerateID returns a new ULID string. IDs generated by one process sort in
// creation order, which keeps connection logs easy to follow.
func GenerateID() string {
	return ulid.Make().String()
}
