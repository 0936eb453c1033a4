// Package address parses SMTP mailboxes (RFC 5321 Section 4.1.2).
//
// The grammar scanners (AtomLen, DotStringLen, DomainLen, ...) are exported so
// that command handlers can validate other arguments, such as the HELO domain,
// with exactly the same rules used for addresses.
package address

import (
	"errors"
	"net/netip"
	"strings"

	"github.com/synqronlabs/wren/utils"
)

// Length limits from RFC 5321 Section 4.5.3.1.
const (
	MaxLocalPartLen = 64
	MaxDomainLen    = 255

	// MaxMailboxLen is the limit of a path (256 octets) minus the angle
	// brackets surrounding it.
	MaxMailboxLen = 254
)

// Postmaster is the canonical local part of the postmaster mailbox.
const Postmaster = "postmaster"

var (
	ErrLocalPartTooLong        = errors.New("address: local part too long")
	ErrLocalPartUnrecognized   = errors.New("address: local part unrecognized")
	ErrForeignPartUnrecognized = errors.New("address: foreign part unrecognized")
	ErrDomainTooLong           = errors.New("address: domain too long")
	ErrTooLong                 = errors.New("address: address too long")
	ErrAtNotFound              = errors.New("address: @ not found")
)

// ForeignPart is the part of a mailbox after the "@": either a domain name or
// an address literal. The zero value is neither.
type ForeignPart struct {
	domain string
	ip     netip.Addr
}

// DomainPart returns a ForeignPart holding a domain name.
func DomainPart(domain string) ForeignPart {
	return ForeignPart{domain: domain}
}

// IPPart returns a ForeignPart holding an address literal.
func IPPart(ip netip.Addr) ForeignPart {
	return ForeignPart{ip: ip}
}

// IsDomain reports whether the foreign part is a domain name.
func (f ForeignPart) IsDomain() bool {
	return f.domain != ""
}

// IsIP reports whether the foreign part is an address literal.
func (f ForeignPart) IsIP() bool {
	return f.ip.IsValid()
}

// Domain returns the domain name, or "" for an address literal.
func (f ForeignPart) Domain() string {
	return f.domain
}

// IP returns the literal address, or the zero Addr for a domain name.
func (f ForeignPart) IP() netip.Addr {
	return f.ip
}

// String renders the foreign part as it appears in an address.
func (f ForeignPart) String() string {
	switch {
	case f.IsDomain():
		return f.domain
	case f.ip.Is4():
		return "[" + f.ip.String() + "]"
	case f.ip.IsValid():
		return "[IPv6:" + f.ip.String() + "]"
	}
	return ""
}

// Mailbox is a parsed email address. Mailboxes are values: they compare
// equal with == when both parts are equal.
//
// If the address designates the postmaster, the local part is always exactly
// "postmaster" whatever case the client used. Other local parts keep the case
// the client sent them in.
type Mailbox struct {
	localPart   string
	foreignPart ForeignPart
}

// LocalPart returns the local part, as a dot-string or a quoted-string.
func (m Mailbox) LocalPart() string {
	return m.localPart
}

// ForeignPart returns the part after the "@".
func (m Mailbox) ForeignPart() ForeignPart {
	return m.foreignPart
}

// IsPostmaster reports whether the mailbox is a postmaster address.
func (m Mailbox) IsPostmaster() bool {
	return m.localPart == Postmaster
}

// IsZero reports whether m is the zero Mailbox.
func (m Mailbox) IsZero() bool {
	return m == Mailbox{}
}

// String returns the address in "local-part@foreign-part" form.
func (m Mailbox) String() string {
	if m.IsZero() {
		return ""
	}
	return m.localPart + "@" + m.foreignPart.String()
}

// Parse parses s, an address without its surrounding angle brackets, into a
// Mailbox. A leading source route is accepted and discarded.
//
// The returned error is one of the Err* values of this package. When several
// limits are violated the most specific error is reported: ErrTooLong is only
// returned for addresses whose parts are individually valid.
func Parse(s string) (Mailbox, error) {
	start := SourceRouteLen(s)
	offset := start

	n := DotStringLen(s[offset:])
	if n == 0 {
		n = QuotedStringLen(s[offset:])
	}
	if n == 0 {
		return Mailbox{}, ErrLocalPartUnrecognized
	}
	if n > MaxLocalPartLen {
		return Mailbox{}, ErrLocalPartTooLong
	}
	localPart := s[offset : offset+n]
	offset += n

	if offset >= len(s) {
		return Mailbox{}, ErrAtNotFound
	}
	// Something other than "@" means the local part itself is malformed,
	// e.g. "rust is@example.org".
	if s[offset] != '@' {
		return Mailbox{}, ErrLocalPartUnrecognized
	}
	offset++

	var foreign ForeignPart
	if n := DomainLen(s[offset:]); n > 0 {
		if n > MaxDomainLen {
			return Mailbox{}, ErrDomainTooLong
		}
		foreign = DomainPart(s[offset : offset+n])
		offset += n
	} else if ip, n := addressLiteral(s[offset:]); n > 0 {
		foreign = IPPart(ip)
		offset += n
	} else {
		return Mailbox{}, ErrForeignPartUnrecognized
	}

	if offset != len(s) {
		return Mailbox{}, ErrForeignPartUnrecognized
	}
	if offset-start > MaxMailboxLen {
		return Mailbox{}, ErrTooLong
	}

	// Case handling of non-ASCII local parts (RFC 6531) is left to the
	// application.
	if !utils.ContainsNonASCII(localPart) && strings.EqualFold(localPart, Postmaster) {
		localPart = Postmaster
	}

	return Mailbox{localPart: localPart, foreignPart: foreign}, nil
}

// PostmasterAt returns the postmaster mailbox of domain. RFC 5321 requires
// "RCPT TO:<Postmaster>" without a domain to reach the postmaster of the
// receiving host.
func PostmasterAt(domain string) Mailbox {
	return Mailbox{localPart: Postmaster, foreignPart: DomainPart(domain)}
}

// MustParse is like Parse but panics on error. It is meant for tests and
// static configuration.
func MustParse(s string) Mailbox {
	m, err := Parse(s)
	if err != nil {
		panic(`address: Parse(` + s + `): ` + err.Error())
	}
	return m
}

// addressLiteral parses "[a.b.c.d]" or "[IPv6:...]" at the start of s and
// returns the address with the length of the literal.
func addressLiteral(s string) (netip.Addr, int) {
	if len(s) < 2 || s[0] != '[' {
		return netip.Addr{}, 0
	}
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return netip.Addr{}, 0
	}
	inner := s[1:end]

	const tag = "IPv6:"
	if len(inner) > len(tag) && strings.EqualFold(inner[:len(tag)], tag) {
		ip, err := netip.ParseAddr(inner[len(tag):])
		if err != nil || !ip.Is6() || ip.Zone() != "" {
			return netip.Addr{}, 0
		}
		return ip, end + 1
	}

	ip, err := netip.ParseAddr(inner)
	if err != nil || !ip.Is4() {
		return netip.Addr{}, 0
	}
	return ip, end + 1
}
