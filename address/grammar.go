package address

// The scanners in this file implement the address productions of
// RFC 5321 Section 4.1.2 as maximal-munch functions: each returns the length
// in bytes of the longest valid instance of its production found at the start
// of s, or 0 when none starts there. They never fail and never allocate.

// IsAtext reports whether c is an RFC 5322 atext character.
func IsAtext(c byte) bool {
	if IsAlnum(c) {
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '/', '=', '?', '^', '_', '`', '{', '|', '}', '~':
		return true
	}
	return false
}

// IsAlnum reports whether c is a 7-bit ASCII letter or digit.
func IsAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// IsQtextSMTP reports whether c is qtextSMTP: printable ASCII except '"' and '\'.
func IsQtextSMTP(c byte) bool {
	return c >= 32 && c <= 33 || c >= 35 && c <= 91 || c >= 93 && c <= 126
}

// IsQuotedPairSMTP reports whether c1 c2 form a quoted-pairSMTP, i.e. a
// backslash followed by any printable ASCII character.
func IsQuotedPairSMTP(c1, c2 byte) bool {
	return c1 == '\\' && c2 >= 32 && c2 <= 126
}

// AtomLen returns the length of the atom at the start of s.
func AtomLen(s string) int {
	n := 0
	for n < len(s) && IsAtext(s[n]) {
		n++
	}
	return n
}

// DotStringLen returns the length of the dot-string at the start of s.
// A dot is only consumed when an atom follows it, so the match never ends on
// a trailing or doubled dot.
func DotStringLen(s string) int {
	return dottedLen(s, AtomLen)
}

// QuotedStringLen returns the length of the quoted-string at the start of s,
// including both quotes and every escape. An unterminated string yields 0.
func QuotedStringLen(s string) int {
	if len(s) < 2 || s[0] != '"' {
		return 0
	}
	n := 1
	for {
		if n < len(s) && IsQtextSMTP(s[n]) {
			n++
		} else if n+1 < len(s) && IsQuotedPairSMTP(s[n], s[n+1]) {
			n += 2
		} else {
			break
		}
	}
	if n < len(s) && s[n] == '"' {
		return n + 1
	}
	return 0
}

// SubdomainLen returns the length of the subdomain at the start of s.
//
// Dashes are accepted inside a subdomain but never at either end: a run of
// dashes is only confirmed once an alphanumeric character follows it.
func SubdomainLen(s string) int {
	if len(s) == 0 || !IsAlnum(s[0]) {
		return 0
	}
	confirmed := 1
	i := 1
	for i < len(s) {
		switch {
		case IsAlnum(s[i]):
			i++
			confirmed = i
		case s[i] == '-':
			for i < len(s) && s[i] == '-' {
				i++
			}
		default:
			return confirmed
		}
	}
	return confirmed
}

// DomainLen returns the length of the domain at the start of s: one or more
// subdomains separated by single dots.
func DomainLen(s string) int {
	return dottedLen(s, SubdomainLen)
}

// AtDomainLen returns the length of an "@" followed by a domain at the start
// of s, or 0 if either part is missing.
func AtDomainLen(s string) int {
	if len(s) == 0 || s[0] != '@' {
		return 0
	}
	n := DomainLen(s[1:])
	if n == 0 {
		return 0
	}
	return n + 1
}

// SourceRouteLen returns the length of a source route (A-d-l) at the start of
// s, including its terminating colon: zero or more at-domains separated by
// commas and followed by ":". Without the colon the result is 0.
//
// Source routes are obsolete (RFC 5321 Appendix C). Callers must skip the
// matched text and never act on it.
func SourceRouteLen(s string) int {
	n := 0
	for {
		m := AtDomainLen(s[n:])
		if m == 0 {
			break
		}
		n += m
		if n < len(s) && s[n] == ',' {
			n++
			continue
		}
		break
	}
	if n < len(s) && s[n] == ':' {
		return n + 1
	}
	return 0
}

// dottedLen extends the match of part through each '.' that is immediately
// followed by another non-empty part.
func dottedLen(s string, part func(string) int) int {
	n := part(s)
	if n == 0 {
		return 0
	}
	for n < len(s) && s[n] == '.' {
		m := part(s[n+1:])
		if m == 0 {
			break
		}
		n += 1 + m
	}
	return n
}
