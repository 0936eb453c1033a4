package wren

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"slices"

	"github.com/synqronlabs/wren/address"
	wrenio "github.com/synqronlabs/wren/io"
)

// Transport reads command lines and writes reply lines for a session.
// ReadLine must report an overlong line with io.ErrLineTooLong and keep the
// stream usable afterwards.
type Transport interface {
	ReadLine() (string, error)
	WriteLine(line string) error
}

// Session is the state of one client connection. It is only used by the
// goroutine serving the connection; custom command handlers receive it.
type Session struct {
	id       string
	ctx      context.Context
	config   *ServerConfig
	commands CommandTable
	conn     Transport
	remote   net.Addr
	handler  EventHandler
	logger   *slog.Logger

	tx           Transaction
	clientDomain string
	lastCode     SMTPCode

	// bodyOpen is set while a DATA body is being read; bodyLines counts
	// its lines so far.
	bodyOpen  bool
	bodyLines int

	commandCount int64
	messageCount int64
}

func newSession(ctx context.Context, id string, config *ServerConfig, commands CommandTable, conn Transport, remote net.Addr) *Session {
	logger := config.Logger.With(slog.String("conn_id", id))
	if remote != nil {
		logger = logger.With(slog.String("remote", remote.String()))
	}
	return &Session{
		id:       id,
		ctx:      ctx,
		config:   config,
		commands: commands,
		conn:     conn,
		remote:   remote,
		handler:  config.Handler(),
		logger:   logger,
	}
}

// ID returns the connection ID used in logs.
func (s *Session) ID() string { return s.id }

// Context is canceled when the server shuts down.
func (s *Session) Context() context.Context { return s.ctx }

func (s *Session) Logger() *slog.Logger { return s.logger }

func (s *Session) RemoteAddr() net.Addr { return s.remote }

// Handler returns the event handler of this connection.
func (s *Session) Handler() EventHandler { return s.handler }

// Hostname returns the server's announced host name.
func (s *Session) Hostname() string { return s.config.Hostname }

// Extensions returns the configured extension keywords.
func (s *Session) Extensions() []string { return slices.Clone(s.config.Extensions) }

// ClientDomain returns the domain given in the last accepted HELO or EHLO.
func (s *Session) ClientDomain() string { return s.clientDomain }

// State returns the transaction state.
func (s *Session) State() TransactionState { return s.tx.State }

// SetState moves the transaction to state without touching its sender or
// recipients.
func (s *Session) SetState(state TransactionState) { s.tx.State = state }

// Transaction returns the current mail transaction.
func (s *Session) Transaction() *Transaction { return &s.tx }

// Reply writes a single-line reply.
func (s *Session) Reply(code SMTPCode, message string) error {
	return s.WriteResponse(Response{Code: code, Message: message})
}

// WriteResponse writes r to the client.
func (s *Session) WriteResponse(r Response) error {
	s.lastCode = r.Code
	line := r.String()
	if s.config.Debug {
		s.logger.Debug("reply sent", slog.String("line", line))
	}
	return s.conn.WriteLine(line)
}

// ReadLine reads the next line from the client.
func (s *Session) ReadLine() (string, error) {
	return s.conn.ReadLine()
}

// serve runs the session until the client quits or the connection fails.
func (s *Session) serve() error {
	if err := s.handler.OnConnect(s.ctx, s.remote); err != nil {
		s.logger.Warn("connection rejected", slog.Any("error", err))
		_ = s.WriteResponse(Response{Code: CodeTransactionFailed, Message: "Connection rejected"})
		return ErrConnectionAborted
	}

	if err := s.WriteResponse(Response{Code: CodeServiceReady, Message: s.config.Hostname + " Service ready"}); err != nil {
		return err
	}

	for {
		if s.ctx.Err() != nil {
			return nil
		}

		line, err := s.ReadLine()
		if err != nil {
			switch {
			case errors.Is(err, wrenio.ErrLineTooLong):
				err = s.WriteResponse(ResponseLineTooLong(s.config.MaxLineSize))
			case errors.Is(err, wrenio.ErrBadLineEnding):
				err = s.Reply(CodeSyntaxError, "Line must be terminated with CRLF")
			default:
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					_ = s.Reply(CodeServiceUnavailable, s.config.Hostname+" Timeout waiting for command")
				}
				return err
			}
			s.config.Observer.CommandProcessed(verbUnknown, s.lastCode)
			if err != nil {
				return err
			}
			continue
		}

		if err := s.Dispatch(line); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			return err
		}
	}
}

const verbUnknown = "UNKNOWN"

// Dispatch runs the command on line: the first command in the table whose
// prefix matches, if the current state allows it.
func (s *Session) Dispatch(line string) error {
	s.commandCount++
	if s.config.Debug {
		s.logger.Debug("command received", slog.String("line", line), slog.String("state", s.tx.State.String()))
	}

	verb := verbUnknown
	var err error
	spec, arg, ok := s.commands.Match(line)
	switch {
	case !ok:
		err = s.WriteResponse(ResponseCommandUnrecognized())
	case !spec.States.Contains(s.tx.State):
		verb = spec.Verb()
		err = s.WriteResponse(ResponseBadSequence())
	default:
		verb = spec.Verb()
		err = spec.Handler(s, arg)
	}

	s.config.Observer.CommandProcessed(verb, s.lastCode)
	return err
}

// rejectMessage ends a DATA command without accepting the message.
func (s *Session) rejectMessage(r Response) error {
	s.tx.Reset()
	s.config.Observer.MessageRejected(r.Code)
	return s.WriteResponse(r)
}

// acceptMessage completes a DATA command.
func (s *Session) acceptMessage(size int64) error {
	from := "<>"
	if s.tx.From != nil {
		from = s.tx.From.String()
	}
	s.logger.Info("message received",
		slog.String("from", from),
		slog.Int("recipients", len(s.tx.Recipients)),
		slog.Int64("size", size),
	)
	s.messageCount++
	s.tx.Reset()
	s.config.Observer.MessageAccepted(size)
	return s.WriteResponse(ResponseOK())
}

// recipientLimitReached reports whether another RCPT would exceed the limit.
func (s *Session) recipientLimitReached() bool {
	return len(s.tx.Recipients) >= s.config.MaxRecipients
}

// postmaster returns the postmaster mailbox of this server.
func (s *Session) postmaster() address.Mailbox {
	return address.PostmasterAt(s.config.Hostname)
}
