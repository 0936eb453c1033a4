package wren

import (
	"log/slog"
	"time"
)

// Middleware wraps a command handler.
type Middleware func(next CommandFunc) CommandFunc

// ---- Built-in Middleware ----

// Logger returns middleware that logs every command with its reply code.
func Logger(logger *slog.Logger) Middleware {
	return func(next CommandFunc) CommandFunc {
		return func(s *Session, arg string) error {
			start := time.Now()
			state := s.State()
			err := next(s, arg)

			attrs := []any{
				slog.String("conn_id", s.ID()),
				slog.String("state", state.String()),
				slog.Int("code", int(s.lastCode)),
				slog.Duration("duration", time.Since(start)),
			}
			if s.remote != nil {
				attrs = append(attrs, slog.String("remote", s.remote.String()))
			}

			if err != nil && err != ErrQuit {
				logger.Error("command failed", append(attrs, slog.Any("error", err))...)
			} else {
				logger.Debug("command completed", attrs...)
			}

			return err
		}
	}
}

// Recovery returns middleware that recovers from panics in command handlers.
// The client gets a 451 reply and the session continues. A panic in the
// middle of DATA discards the transaction and the rest of the body.
func Recovery(logger *slog.Logger) Middleware {
	return func(next CommandFunc) CommandFunc {
		return func(s *Session, arg string) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic recovered",
						slog.String("conn_id", s.ID()),
						slog.Any("panic", r),
					)
					if s.State() == StateData {
						s.tx.Reset()
					}
					if derr := s.discardBody(); derr != nil {
						err = derr
						return
					}
					err = s.WriteResponse(ResponseLocalError())
				}
			}()
			return next(s, arg)
		}
	}
}
