package wren

import "fmt"

// SMTPCode represents SMTP reply codes (RFC 5321).
// 2yz: Success, 3yz: Continue, 4yz: Transient failure, 5yz: Permanent failure.
type SMTPCode int

const (
	// 2xx - Success
	CodeServiceReady   SMTPCode = 220
	CodeServiceClosing SMTPCode = 221
	CodeOK             SMTPCode = 250
	CodeCannotVRFY     SMTPCode = 252

	// 3xx - Intermediate
	CodeStartMailInput SMTPCode = 354

	// 4xx - Transient Failure
	CodeServiceUnavailable  SMTPCode = 421
	CodeLocalError          SMTPCode = 451
	CodeInsufficientStorage SMTPCode = 452

	// 5xx - Permanent Failure
	CodeCommandUnrecognized   SMTPCode = 500
	CodeSyntaxError           SMTPCode = 501
	CodeCommandNotImplemented SMTPCode = 502
	CodeBadSequence           SMTPCode = 503
	CodeMailboxNotFound       SMTPCode = 550
	CodeExceededStorage       SMTPCode = 552
	CodeMailboxNameInvalid    SMTPCode = 553
	CodeTransactionFailed     SMTPCode = 554
)

// Class returns the first digit of the code.
func (c SMTPCode) Class() int {
	return int(c) / 100
}

// Response represents an SMTP reply sent to the client.
// Every reply is a single line: the code, a space, and the message.
type Response struct {
	Code    SMTPCode
	Message string
}

// String formats the response as an SMTP reply line, without CRLF.
func (r Response) String() string {
	return fmt.Sprintf("%d %s", r.Code, r.Message)
}

// IsError returns true for 4xx or 5xx codes.
func (r Response) IsError() bool {
	return r.Code >= 400
}

// IsSuccess returns true for 2xx codes.
func (r Response) IsSuccess() bool {
	return r.Code.Class() == 2
}

// Common responses.

func ResponseOK() Response {
	return Response{Code: CodeOK, Message: "OK"}
}

func ResponseCommandUnrecognized() Response {
	return Response{Code: CodeCommandUnrecognized, Message: "Command unrecognized"}
}

func ResponseBadSequence() Response {
	return Response{Code: CodeBadSequence, Message: "Bad sequence of commands"}
}

func ResponseNoArguments() Response {
	return Response{Code: CodeSyntaxError, Message: "No arguments allowed"}
}

func ResponseCommandNotImplemented() Response {
	return Response{Code: CodeCommandNotImplemented, Message: "Command not implemented"}
}

func ResponseLocalError() Response {
	return Response{Code: CodeLocalError, Message: "Requested action aborted: local error in processing"}
}

func ResponseTransactionFailed() Response {
	return Response{Code: CodeTransactionFailed, Message: "Transaction failed"}
}

// ResponseLineTooLong reports a command line longer than max bytes.
func ResponseLineTooLong(max int) Response {
	return Response{Code: CodeCommandUnrecognized, Message: fmt.Sprintf("Command line too long, max %d bytes", max)}
}

// ResponseTooMuchData reports a message body larger than max bytes.
func ResponseTooMuchData(max int64) Response {
	return Response{Code: CodeExceededStorage, Message: fmt.Sprintf("Too much mail data, max %d bytes", max)}
}
