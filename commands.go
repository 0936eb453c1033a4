package wren

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/synqronlabs/wren/address"
	wrenio "github.com/synqronlabs/wren/io"
)

// Built-in command handlers. Each is only called in the states declared by
// DefaultCommands.

func cmdHelo(s *Session, arg string) error {
	domain := strings.TrimSpace(arg)
	if domain == "" {
		return s.Reply(CodeSyntaxError, "Domain name not provided")
	}
	if address.DomainLen(domain) != len(domain) {
		return s.Reply(CodeSyntaxError, "Domain name is invalid")
	}

	if err := s.handler.OnDomain(s.ctx, domain); err != nil {
		s.logger.Info("domain rejected", slog.String("domain", domain), slog.Any("error", err))
		return s.Reply(CodeMailboxNotFound, "Domain not taken")
	}

	// HELO/EHLO in the middle of a transaction is an implicit RSET.
	s.tx.Reset()
	s.tx.State = StateHelo
	s.clientDomain = domain
	return s.WriteResponse(ResponseOK())
}

// pathArgument extracts the address between angle brackets.
func pathArgument(arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if len(arg) < 2 || arg[0] != '<' || arg[len(arg)-1] != '>' {
		return "", false
	}
	return arg[1 : len(arg)-1], true
}

// parseErrorReply turns a Parse error into a 553 reply.
func parseErrorReply(err error) Response {
	reason := strings.TrimPrefix(err.Error(), "address: ")
	return Response{Code: CodeMailboxNameInvalid, Message: "Email address invalid: " + reason}
}

func cmdMail(s *Session, arg string) error {
	path, ok := pathArgument(arg)
	if !ok {
		return s.Reply(CodeSyntaxError, "Invalid argument, format: '<email@example.com>'")
	}

	var from *address.Mailbox
	if path != "" {
		m, err := address.Parse(path)
		if err != nil {
			return s.WriteResponse(parseErrorReply(err))
		}
		from = &m
	}

	if err := s.handler.OnSender(s.ctx, from); err != nil {
		s.logger.Info("sender rejected", slog.String("from", path), slog.Any("error", err))
		return s.Reply(CodeMailboxNotFound, "Mail not taken")
	}

	s.tx.From = from
	s.tx.State = StateMail
	return s.WriteResponse(ResponseOK())
}

func cmdRcpt(s *Session, arg string) error {
	path, ok := pathArgument(arg)
	if !ok {
		return s.Reply(CodeSyntaxError, "Invalid argument, format: '<email@example.com>'")
	}
	if s.recipientLimitReached() {
		return s.Reply(CodeInsufficientStorage, "Too many recipients")
	}

	var to address.Mailbox
	if strings.EqualFold(path, address.Postmaster) {
		to = s.postmaster()
	} else {
		m, err := address.Parse(path)
		if err != nil {
			return s.WriteResponse(parseErrorReply(err))
		}
		to = m
	}

	if err := s.handler.OnRecipient(s.ctx, to); err != nil {
		s.logger.Info("recipient rejected", slog.String("to", to.String()), slog.Any("error", err))
		return s.Reply(CodeMailboxNotFound, "Mail not available")
	}

	s.tx.Recipients = append(s.tx.Recipients, to)
	s.tx.State = StateRcpt
	return s.WriteResponse(ResponseOK())
}

// cmdData reads the message body and streams it to the event handler.
//
// The body ends with a line holding a single "." once at least one body line
// has been read. Lines are forwarded with their CRLF and without the
// leading dot added by the client (RFC 5321 Section 4.5.2). If the body grows
// past MaxMessageSize, or a line is malformed, nothing more is forwarded; the
// rest of the body is read and discarded and the transaction is reset.
// A body hook veto closes the connection without reading the rest.
func cmdData(s *Session, arg string) error {
	if strings.TrimSpace(arg) != "" {
		return s.WriteResponse(ResponseNoArguments())
	}

	if err := s.Reply(CodeStartMailInput, "Start mail input; end with <CRLF>.<CRLF>"); err != nil {
		return err
	}
	s.tx.State = StateData
	s.bodyOpen = true
	s.bodyLines = 0

	if err := s.handler.OnBodyStart(s.ctx); err != nil {
		return s.abort("body start rejected", err)
	}

	var (
		size  int64
		chunk []byte
	)
	for s.bodyOpen {
		line, err := s.readBodyLine()
		if err != nil {
			if !isLineError(err) {
				return err
			}
			if derr := s.discardBody(); derr != nil {
				return derr
			}
			if errors.Is(err, wrenio.ErrLineTooLong) {
				return s.rejectMessage(Response{Code: CodeCommandUnrecognized, Message: fmt.Sprintf("Line too long, max %d bytes", s.config.MaxLineSize)})
			}
			return s.rejectMessage(Response{Code: CodeSyntaxError, Message: "Line must be terminated with CRLF"})
		}
		if !s.bodyOpen {
			break
		}

		line = strings.TrimPrefix(line, ".")
		size += int64(len(line)) + 2
		if size > s.config.MaxMessageSize {
			if err := s.discardBody(); err != nil {
				return err
			}
			s.logger.Info("message too large", slog.Int64("max", s.config.MaxMessageSize))
			return s.rejectMessage(ResponseTooMuchData(s.config.MaxMessageSize))
		}

		chunk = append(append(chunk[:0], line...), '\r', '\n')
		if err := s.handler.OnBodyPart(s.ctx, chunk); err != nil {
			return s.abort("body part rejected", err)
		}
	}

	if err := s.handler.OnBodyEnd(s.ctx); err != nil {
		return s.abort("body end rejected", err)
	}
	return s.acceptMessage(size)
}

func isLineError(err error) bool {
	return errors.Is(err, wrenio.ErrLineTooLong) || errors.Is(err, wrenio.ErrBadLineEnding)
}

// readBodyLine reads the next line of a message body. The line holding a
// single "." after at least one body line closes the body; it is consumed
// and bodyOpen is cleared.
func (s *Session) readBodyLine() (string, error) {
	line, err := s.ReadLine()
	if err != nil {
		if isLineError(err) {
			s.bodyLines++
		}
		return "", err
	}
	if line == "." && s.bodyLines > 0 {
		s.bodyOpen = false
		return "", nil
	}
	s.bodyLines++
	return line, nil
}

// discardBody reads and drops the rest of an open message body, so that
// body text is never read as commands. Malformed lines are dropped too.
func (s *Session) discardBody() error {
	for s.bodyOpen {
		if _, err := s.readBodyLine(); err != nil && !isLineError(err) {
			return err
		}
	}
	return nil
}

// abort ends the connection after the event handler rejected the body.
func (s *Session) abort(msg string, err error) error {
	s.logger.Warn(msg, slog.Any("error", err))
	s.tx.Reset()
	s.config.Observer.MessageRejected(CodeTransactionFailed)
	_ = s.WriteResponse(ResponseTransactionFailed())
	return ErrConnectionAborted
}

func cmdRset(s *Session, arg string) error {
	if strings.TrimSpace(arg) != "" {
		return s.WriteResponse(ResponseNoArguments())
	}
	s.tx.Reset()
	return s.WriteResponse(ResponseOK())
}

func cmdVrfy(s *Session, _ string) error {
	return s.Reply(CodeCannotVRFY, "Cannot VRFY user")
}

func cmdExpn(s *Session, _ string) error {
	return s.Reply(CodeCannotVRFY, "Cannot EXPN mailing list")
}

func cmdHelp(s *Session, _ string) error {
	return s.WriteResponse(ResponseCommandNotImplemented())
}

func cmdNoop(s *Session, _ string) error {
	return s.WriteResponse(ResponseOK())
}

func cmdQuit(s *Session, _ string) error {
	if err := s.Reply(CodeServiceClosing, s.config.Hostname); err != nil {
		return err
	}
	return ErrQuit
}
