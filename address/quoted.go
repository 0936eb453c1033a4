package address

import "strings"

// UnescapeQuotedString returns the content of the quoted-string s without its
// surrounding quotes and with every quoted-pair replaced by the character it
// escapes. The result is meant for display. s must be a valid quoted-string,
// i.e. QuotedStringLen(s) == len(s).
func UnescapeQuotedString(s string) string {
	if len(s) < 2 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s) - 2)
	for i := 1; i < len(s)-1; i++ {
		if s[i] == '\\' && i+1 < len(s)-1 {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// SimplifyQuotedString returns the simplest local part equivalent to the
// quoted-string s: the unescaped text if it is a valid dot-string, otherwise
// s with only the escapes that are required ("\"" and "\\") kept.
func SimplifyQuotedString(s string) string {
	plain := UnescapeQuotedString(s)
	if plain != "" && DotStringLen(plain) == len(plain) {
		return plain
	}

	var b strings.Builder
	b.Grow(len(s))
	b.WriteByte('"')
	for i := 0; i < len(plain); i++ {
		if plain[i] == '"' || plain[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(plain[i])
	}
	b.WriteByte('"')
	return b.String()
}
