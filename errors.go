package wren

import "errors"

var (
	ErrServerClosed = errors.New("smtp: server closed")

	// ErrQuit is returned by a command handler to end the session after its
	// reply has been written.
	ErrQuit = errors.New("smtp: client quit")

	// ErrConnectionAborted ends a session after the event handler vetoed the
	// connection or the message body.
	ErrConnectionAborted = errors.New("smtp: connection aborted by handler")
)

// Configuration errors, returned wrapped by ServerConfig.Validate.
var (
	ErrMaxMessageSizeTooSmall = errors.New("smtp: max message size too small")
	ErrMaxLineSizeTooSmall    = errors.New("smtp: max line size too small")
	ErrMaxRecipientsTooSmall  = errors.New("smtp: max recipients too small")
	ErrInvalidPort            = errors.New("smtp: invalid port")
	ErrInvalidBindAddress     = errors.New("smtp: invalid bind address")
	ErrInvalidHostname        = errors.New("smtp: invalid hostname")
	ErrInvalidExtension       = errors.New("smtp: invalid extension name")
	ErrInvalidCommand         = errors.New("smtp: invalid command spec")
	ErrHostnameUnavailable    = errors.New("smtp: hostname unavailable")
)
