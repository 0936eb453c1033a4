package wren

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestRecoveryMiddleware(t *testing.T) {
	var logs bytes.Buffer
	config := testConfig(&recordingHandler{})
	config.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	config.Commands = []CommandSpec{{
		Prefix:  "XPANIC",
		States:  AnyState,
		Handler: func(*Session, string) error { panic("boom") },
	}}
	s, tr := newTestSession(t, config)

	expectReply(t, s, tr, "XPANIC", "451 Requested action aborted: local error in processing")
	expectReply(t, s, tr, "NOOP", "250 OK")
	if !strings.Contains(logs.String(), "panic recovered") || !strings.Contains(logs.String(), "boom") {
		t.Errorf("panic not logged: %s", logs.String())
	}
}

func TestRecoveryDiscardsTransactionInData(t *testing.T) {
	h := &recordingHandler{}
	config := testConfig(h)
	config.Handler = func() EventHandler { return panickingBody{h} }
	s, tr := newTestSession(t, config)
	startData(t, s, tr)

	tr.push("first body line", "HELO other.example", "QUIT", ".", "NOOP")
	expectReply(t, s, tr, "DATA", "451 Requested action aborted: local error in processing")
	if s.State() != StateInit || len(s.Transaction().Recipients) != 0 {
		t.Errorf("transaction kept after panic: %v", s.Transaction())
	}

	// The rest of the body up to "." was read and dropped.
	line, err := s.ReadLine()
	if err != nil || line != "NOOP" {
		t.Fatalf("next line = %q, %v; want NOOP", line, err)
	}
	for _, e := range h.Events() {
		if e == "domain other.example" {
			t.Errorf("body text dispatched as a command: %v", h.Events())
		}
	}
	if s.ClientDomain() != "client.example.org" {
		t.Errorf("ClientDomain() = %q", s.ClientDomain())
	}
}

func TestRecoveryInBodyStartKeepsLeadingDot(t *testing.T) {
	h := &recordingHandler{}
	config := testConfig(h)
	config.Handler = func() EventHandler { return panickingStart{h} }
	s, tr := newTestSession(t, config)
	startData(t, s, tr)

	// A lone "." before any body line is body text, not the terminator.
	tr.push(".", "RSET", ".", "NOOP")
	expectReply(t, s, tr, "DATA", "451 Requested action aborted: local error in processing")
	if line, err := s.ReadLine(); err != nil || line != "NOOP" {
		t.Fatalf("next line = %q, %v; want NOOP", line, err)
	}
}

func TestRecoveryAfterBodyEnd(t *testing.T) {
	h := &recordingHandler{}
	config := testConfig(h)
	config.Handler = func() EventHandler { return panickingEnd{h} }
	s, tr := newTestSession(t, config)
	startData(t, s, tr)

	tr.push("line", ".")
	expectReply(t, s, tr, "DATA", "451 Requested action aborted: local error in processing")
	if s.State() != StateInit {
		t.Errorf("state = %v, want Init", s.State())
	}
	expectReply(t, s, tr, "NOOP", "250 OK")
}

type panickingBody struct {
	*recordingHandler
}

func (panickingBody) OnBodyPart(_ context.Context, _ []byte) error {
	panic("body")
}

type panickingStart struct {
	*recordingHandler
}

func (panickingStart) OnBodyStart(context.Context) error {
	panic("body start")
}

type panickingEnd struct {
	*recordingHandler
}

func (panickingEnd) OnBodyEnd(context.Context) error {
	panic("body end")
}

func TestLoggerMiddleware(t *testing.T) {
	var logs bytes.Buffer
	config := testConfig(&recordingHandler{})
	config.Debug = true
	config.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, tr := newTestSession(t, config)

	expectReply(t, s, tr, "HELO client.example.org", "250 OK")
	out := logs.String()
	for _, want := range []string{"command received", "command completed", "code=250", "state=Init", "conn_id=test", "reply sent"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestUserMiddleware(t *testing.T) {
	var seen []string
	config := testConfig(&recordingHandler{})
	config.Middleware = []Middleware{func(next CommandFunc) CommandFunc {
		return func(s *Session, arg string) error {
			seen = append(seen, strings.TrimSpace(arg))
			return next(s, arg)
		}
	}}
	s, tr := newTestSession(t, config)

	expectReply(t, s, tr, "HELO client.example.org", "250 OK")
	expectReply(t, s, tr, "NOOP", "250 OK")
	if len(seen) != 2 || seen[0] != "client.example.org" {
		t.Errorf("middleware saw %v", seen)
	}
}
