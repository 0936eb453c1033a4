package wren

import (
	"context"
	"net"

	"github.com/synqronlabs/wren/address"
)

// EventHandler receives the protocol events of one connection. A new
// handler is created for every connection, so implementations may keep
// per-connection state without locking.
//
// Returning an error vetoes the event. A vetoed domain, sender or recipient
// is rejected with a 550 reply and the session goes on; a vetoed connection
// or body hook ends the connection.
type EventHandler interface {
	// OnConnect is called before the greeting is sent.
	OnConnect(ctx context.Context, remote net.Addr) error

	// OnDomain is called with the domain of a HELO or EHLO command.
	OnDomain(ctx context.Context, domain string) error

	// OnSender is called for MAIL FROM. from is nil for the null
	// reverse-path "<>".
	OnSender(ctx context.Context, from *address.Mailbox) error

	// OnRecipient is called for each RCPT TO.
	OnRecipient(ctx context.Context, to address.Mailbox) error

	// OnBodyStart, OnBodyPart and OnBodyEnd stream a message body. Each
	// part is one line with its CRLF, dot-stuffing already removed. The
	// slice is only valid during the call.
	OnBodyStart(ctx context.Context) error
	OnBodyPart(ctx context.Context, chunk []byte) error
	OnBodyEnd(ctx context.Context) error
}

// NopEventHandler accepts every event. Embed it to implement only some hooks.
type NopEventHandler struct{}

var _ EventHandler = NopEventHandler{}

func (NopEventHandler) OnConnect(context.Context, net.Addr) error { return nil }
func (NopEventHandler) OnDomain(context.Context, string) error { return nil }
func (NopEventHandler) OnSender(context.Context, *address.Mailbox) error { return nil }
func (NopEventHandler) OnRecipient(context.Context, address.Mailbox) error { return nil }
func (NopEventHandler) OnBodyStart(context.Context) error { return nil }
func (NopEventHandler) OnBodyPart(context.Context, []byte) error { return nil }
func (NopEventHandler) OnBodyEnd(context.Context) error { return nil }

// HandlerFactory creates the EventHandler of a new connection.
type HandlerFactory func() EventHandler

func nopHandlerFactory() EventHandler {
	return NopEventHandler{}
}
