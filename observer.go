package wren

import "time"

// Observer is notified of server activity, typically to export metrics.
// Its methods are called concurrently from every connection.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed(duration time.Duration)
	// CommandProcessed is called once per command line with the verb
	// ("UNKNOWN" for unrecognized lines) and the code of the last reply.
	CommandProcessed(verb string, code SMTPCode)
	MessageAccepted(size int64)
	MessageRejected(code SMTPCode)
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened() {}
func (nopObserver) ConnectionClosed(time.Duration) {}
func (nopObserver) CommandProcessed(string, SMTPCode) {}
func (nopObserver) MessageAccepted(int64) {}
func (nopObserver) MessageRejected(SMTPCode) {}
