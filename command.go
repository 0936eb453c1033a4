package wren

import (
	"strings"

	"github.com/synqronlabs/wren/address"
)

// CommandFunc handles one command line. arg is the rest of the line after
// the command prefix, leading space included. A handler writes its own
// reply; a non-nil error ends the session (ErrQuit ends it cleanly).
type CommandFunc func(s *Session, arg string) error

// CommandSpec declares a command: the prefix that selects it, the states in
// which it is legal, and its handler.
type CommandSpec struct {
	// Prefix is matched case-insensitively against the start of the line,
	// e.g. "MAIL FROM:". A prefix ending in a letter or digit only matches
	// when the line ends there or continues with a space.
	Prefix  string
	States  StateSet
	Handler CommandFunc
}

// Verb returns the command name, the first word of the prefix.
func (c CommandSpec) Verb() string {
	verb, _, _ := strings.Cut(c.Prefix, " ")
	return strings.ToUpper(strings.TrimSuffix(verb, ":"))
}

// match returns the argument part of line if the command applies to it.
func (c CommandSpec) match(line string) (string, bool) {
	n := len(c.Prefix)
	if n == 0 || len(line) < n || !hasPrefixFold(line, c.Prefix) {
		return "", false
	}
	arg := line[n:]
	if address.IsAlnum(c.Prefix[n-1]) && arg != "" && arg[0] != ' ' {
		return "", false
	}
	return arg, true
}

// hasPrefixFold reports whether s begins with prefix, ignoring ASCII case.
func hasPrefixFold(s, prefix string) bool {
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

// CommandTable is an ordered list of commands. The first matching entry
// wins, so more specific prefixes must come first.
type CommandTable []CommandSpec

// Match returns the first command whose prefix matches line, with the
// argument part of the line.
func (t CommandTable) Match(line string) (CommandSpec, string, bool) {
	for _, spec := range t {
		if arg, ok := spec.match(line); ok {
			return spec, arg, true
		}
	}
	return CommandSpec{}, "", false
}

// With returns a copy of the table with every handler wrapped by the given
// middleware. The first middleware is the outermost.
func (t CommandTable) With(middleware ...Middleware) CommandTable {
	out := make(CommandTable, len(t))
	for i, spec := range t {
		h := spec.Handler
		for j := len(middleware) - 1; j >= 0; j-- {
			h = middleware[j](h)
		}
		spec.Handler = h
		out[i] = spec
	}
	return out
}

// DefaultCommands returns the built-in RFC 5321 commands.
func DefaultCommands() CommandTable {
	beforeData := States(StateInit, StateHelo, StateMail, StateRcpt)
	return CommandTable{
		{Prefix: "HELO", States: beforeData, Handler: cmdHelo},
		{Prefix: "EHLO", States: beforeData, Handler: cmdHelo},
		{Prefix: "MAIL FROM:", States: States(StateHelo), Handler: cmdMail},
		{Prefix: "RCPT TO:", States: States(StateMail, StateRcpt), Handler: cmdRcpt},
		{Prefix: "DATA", States: States(StateRcpt), Handler: cmdData},
		{Prefix: "RSET", States: AnyState, Handler: cmdRset},
		{Prefix: "VRFY", States: AnyState, Handler: cmdVrfy},
		{Prefix: "EXPN", States: AnyState, Handler: cmdExpn},
		{Prefix: "HELP", States: AnyState, Handler: cmdHelp},
		{Prefix: "NOOP", States: AnyState, Handler: cmdNoop},
		{Prefix: "QUIT", States: AnyState, Handler: cmdQuit},
	}
}
