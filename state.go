package wren

import (
	"strings"

	"github.com/synqronlabs/wren/address"
)

// TransactionState is the progress of a session through the mail
// transaction. StateData is only held while a message body is read.
type TransactionState uint8

const (
	StateInit TransactionState = iota
	StateHelo
	StateMail
	StateRcpt
	StateData
)

func (s TransactionState) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateHelo:
		return "Helo"
	case StateMail:
		return "Mail"
	case StateRcpt:
		return "Rcpt"
	case StateData:
		return "Data"
	}
	return "Unknown"
}

// StateSet is a set of transaction states in which a command is legal.
type StateSet uint8

// AnyState allows a command in every state.
const AnyState = StateSet(1<<StateInit | 1<<StateHelo | 1<<StateMail | 1<<StateRcpt | 1<<StateData)

// States returns the set holding the given states.
func States(states ...TransactionState) StateSet {
	var set StateSet
	for _, s := range states {
		set |= 1 << s
	}
	return set
}

// Contains reports whether s is in the set.
func (set StateSet) Contains(s TransactionState) bool {
	return set&(1<<s) != 0
}

func (set StateSet) String() string {
	var names []string
	for s := StateInit; s <= StateData; s++ {
		if set.Contains(s) {
			names = append(names, s.String())
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Transaction holds the per-session mail transaction.
type Transaction struct {
	State TransactionState

	// From is the reverse-path, nil for the null sender "<>".
	From       *address.Mailbox
	Recipients []address.Mailbox
}

// Reset drops the sender and recipients and returns to StateInit.
func (t *Transaction) Reset() {
	*t = Transaction{}
}
