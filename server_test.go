package wren

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testClient is a simple SMTP client for integration testing.
type testClient struct {
	conn   net.Conn
	reader *bufio.Reader
	t      *testing.T
}

func newTestClient(t *testing.T, addr string) *testClient {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("Failed to connect to server: %v", err)
	}
	// Set default deadline
	conn.SetDeadline(time.Now().Add(10 * time.Second))
	return &testClient{
		conn:   conn,
		reader: bufio.NewReader(conn),
		t:      t,
	}
}

func (c *testClient) close() {
	c.conn.Close()
}

func (c *testClient) send(cmd string) {
	_, err := c.conn.Write([]byte(cmd + "\r\n"))
	if err != nil {
		c.t.Fatalf("Failed to send command %q: %v", cmd, err)
	}
}

func (c *testClient) sendRaw(data []byte) {
	_, err := c.conn.Write(data)
	if err != nil {
		c.t.Fatalf("Failed to send raw data: %v", err)
	}
}

func (c *testClient) readLine() string {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		c.t.Fatalf("Failed to read response: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

func (c *testClient) expectCode(expectedCode int) string {
	line := c.readLine()
	code := 0
	fmt.Sscanf(line, "%d", &code)
	if code != expectedCode {
		c.t.Errorf("Expected code %d, got response: %s", expectedCode, line)
	}
	return line
}

func (c *testClient) expectLine(expected string) {
	if line := c.readLine(); line != expected {
		c.t.Errorf("Expected %q, got %q", expected, line)
	}
}

// expectClosed checks that the server closed the connection.
func (c *testClient) expectClosed() {
	if line, err := c.reader.ReadString('\n'); err == nil {
		c.t.Errorf("Expected connection to be closed, got %q", line)
	}
}

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testServerConfig returns a ServerConfig with default values suitable for testing.
func testServerConfig() ServerConfig {
	config := DefaultServerConfig()
	config.BindAddress = "127.0.0.1"
	config.Port = 0
	return config
}

// startTestServer starts a test server on a random port and returns the server and address.
func startTestServer(t *testing.T, config ServerConfig) (*Server, string) {
	if config.Hostname == "" {
		config.Hostname = "test.example.com"
	}
	// Disable logging in tests
	config.Logger = discardLogger()

	server, err := NewServer(config)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	listener, err := net.Listen("tcp", server.Config().Addr())
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	// Start server in background
	go func() {
		_ = server.Serve(listener)
	}()

	return server, listener.Addr().String()
}

// startSession reads the greeting and brings the client to the DATA command.
func startSession(c *testClient) {
	c.expectCode(220)
	c.send("EHLO client.example.com")
	c.expectCode(250)
	c.send("MAIL FROM:<sender@example.com>")
	c.expectCode(250)
	c.send("RCPT TO:<recipient@example.com>")
	c.expectCode(250)
}

// ============================================================================
// Basic SMTP Session Tests
// ============================================================================

func TestBasicSMTPSession(t *testing.T) {
	handler := &recordingHandler{}
	config := testServerConfig()
	config.Handler = func() EventHandler { return handler }

	server, addr := startTestServer(t, config)
	defer server.Close()

	client := newTestClient(t, addr)
	defer client.close()

	client.expectLine("220 test.example.com Service ready")

	client.send("EHLO client.example.com")
	client.expectLine("250 OK")

	client.send("MAIL FROM:<sender@example.com>")
	client.expectCode(250)

	client.send("RCPT TO:<recipient@example.com>")
	client.expectCode(250)

	client.send("DATA")
	client.expectCode(354)

	client.send("Subject: Test Message")
	client.send("")
	client.send("This is a test message.")
	client.send(".")
	client.expectCode(250)

	client.send("QUIT")
	client.expectLine("221 test.example.com")
	client.expectClosed()

	want := []string{
		"connect",
		"domain client.example.com",
		"sender sender@example.com",
		"recipient recipient@example.com",
		"body-start",
		"body-part", "body-part", "body-part",
		"body-end",
	}
	if got := handler.Events(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("events = %q, want %q", got, want)
	}
	if got := handler.Body(); got != "Subject: Test Message\r\n\r\nThis is a test message.\r\n" {
		t.Errorf("body = %q", got)
	}
}

// TestDATALineLengthAtLimit verifies that text lines of exactly 998
// characters plus CRLF are accepted and longer ones rejected.
func TestDATALineLengthAtLimit(t *testing.T) {
	handler := &recordingHandler{}
	config := testServerConfig()
	config.Handler = func() EventHandler { return handler }

	server, addr := startTestServer(t, config)
	defer server.Close()

	client := newTestClient(t, addr)
	defer client.close()

	startSession(client)
	client.send("DATA")
	client.expectCode(354)
	client.send(strings.Repeat("a", 998))
	client.send(".")
	client.expectCode(250)

	client.send("MAIL FROM:<sender@example.com>")
	client.expectCode(503)
	client.send("HELO client.example.com")
	client.expectCode(250)
	client.send("MAIL FROM:<sender@example.com>")
	client.expectCode(250)
	client.send("RCPT TO:<recipient@example.com>")
	client.expectCode(250)
	client.send("DATA")
	client.expectCode(354)
	client.send(strings.Repeat("b", 999))
	client.send(".")
	client.expectLine("500 Line too long, max 1000 bytes")

	client.send("NOOP")
	client.expectCode(250)

	if got := handler.Body(); got != strings.Repeat("a", 998)+"\r\n" {
		t.Errorf("body length = %d, want only the first message", len(got))
	}
}

func TestCommandLineTooLong(t *testing.T) {
	server, addr := startTestServer(t, testServerConfig())
	defer server.Close()

	client := newTestClient(t, addr)
	defer client.close()

	client.expectCode(220)
	client.send("HELO " + strings.Repeat("a", 2000))
	client.expectLine("500 Command line too long, max 1000 bytes")
	client.send("NOOP")
	client.expectCode(250)
}

func TestBareLineFeed(t *testing.T) {
	server, addr := startTestServer(t, testServerConfig())
	defer server.Close()

	client := newTestClient(t, addr)
	defer client.close()

	client.expectCode(220)
	client.sendRaw([]byte("NOOP\n"))
	client.expectLine("501 Line must be terminated with CRLF")
	client.send("NOOP")
	client.expectCode(250)
}

func TestDataDotStuffing(t *testing.T) {
	handler := &recordingHandler{}
	config := testServerConfig()
	config.Handler = func() EventHandler { return handler }

	server, addr := startTestServer(t, config)
	defer server.Close()

	client := newTestClient(t, addr)
	defer client.close()

	startSession(client)
	client.send("DATA")
	client.expectCode(354)
	client.sendRaw([]byte("..\r\n...more\r\nend\r\n.\r\n"))
	client.expectCode(250)

	if got := handler.Body(); got != ".\r\n..more\r\nend\r\n" {
		t.Errorf("body = %q", got)
	}
}

func TestMultipleTransactions(t *testing.T) {
	var messages atomic.Int32
	config := testServerConfig()
	config.Handler = func() EventHandler { return &countingHandler{messages: &messages} }

	server, addr := startTestServer(t, config)
	defer server.Close()

	client := newTestClient(t, addr)
	defer client.close()

	startSession(client)
	for i := range 3 {
		if i > 0 {
			client.send("HELO client.example.com")
			client.expectCode(250)
			client.send("MAIL FROM:<>")
			client.expectCode(250)
			client.send("RCPT TO:<postmaster>")
			client.expectCode(250)
		}
		client.send("DATA")
		client.expectCode(354)
		client.send(fmt.Sprintf("message %d", i))
		client.send(".")
		client.expectCode(250)
	}
	client.send("QUIT")
	client.expectCode(221)

	if n := messages.Load(); n != 3 {
		t.Errorf("received %d messages, want 3", n)
	}
}

type countingHandler struct {
	NopEventHandler
	messages *atomic.Int32
}

func (h *countingHandler) OnBodyEnd(context.Context) error {
	h.messages.Add(1)
	return nil
}

func TestPipelining(t *testing.T) {
	server, addr := startTestServer(t, testServerConfig())
	defer server.Close()

	client := newTestClient(t, addr)
	defer client.close()

	client.expectCode(220)
	client.sendRaw([]byte("HELO client.example.com\r\nMAIL FROM:<a@example.com>\r\nRCPT TO:<b@example.com>\r\nRCPT TO:<bad address>\r\nNOOP\r\n"))
	for _, code := range []int{250, 250, 250, 553, 250} {
		client.expectCode(code)
	}
}

func TestHandlerPerConnection(t *testing.T) {
	var created atomic.Int32
	config := testServerConfig()
	config.Handler = func() EventHandler {
		created.Add(1)
		return NopEventHandler{}
	}

	server, addr := startTestServer(t, config)
	defer server.Close()

	for range 3 {
		client := newTestClient(t, addr)
		client.expectCode(220)
		client.send("QUIT")
		client.expectCode(221)
		client.close()
	}

	if n := created.Load(); n != 3 {
		t.Errorf("handler factory called %d times, want 3", n)
	}
}

func TestOnConnectReject(t *testing.T) {
	config := testServerConfig()
	config.Handler = func() EventHandler {
		return &recordingHandler{veto: map[string]bool{"connect": true}}
	}

	server, addr := startTestServer(t, config)
	defer server.Close()

	client := newTestClient(t, addr)
	defer client.close()

	client.expectLine("554 Connection rejected")
	client.expectClosed()
}

func TestBodyRejectClosesConnection(t *testing.T) {
	config := testServerConfig()
	config.Handler = func() EventHandler {
		return &recordingHandler{veto: map[string]bool{"body-end": true}}
	}

	server, addr := startTestServer(t, config)
	defer server.Close()

	client := newTestClient(t, addr)
	defer client.close()

	startSession(client)
	client.send("DATA")
	client.expectCode(354)
	client.send("text")
	client.send(".")
	client.expectLine("554 Transaction failed")
	client.expectClosed()
}

func TestReadTimeout(t *testing.T) {
	config := testServerConfig()
	config.ReadTimeout = 100 * time.Millisecond

	server, addr := startTestServer(t, config)
	defer server.Close()

	client := newTestClient(t, addr)
	defer client.close()

	client.expectCode(220)
	client.expectLine("421 test.example.com Timeout waiting for command")
	client.expectClosed()
}

// ============================================================================
// Lifecycle Tests
// ============================================================================

func TestShutdownNotifiesClients(t *testing.T) {
	server, addr := startTestServer(t, testServerConfig())

	client := newTestClient(t, addr)
	defer client.close()
	client.expectCode(220)
	client.send("NOOP")
	client.expectCode(250)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	client.expectLine("421 test.example.com Service shutting down")
	client.expectClosed()

	if _, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		t.Error("server still accepts connections after Shutdown")
	}
}

func TestServeReturnsErrServerClosed(t *testing.T) {
	config := testServerConfig()
	config.Hostname = "test.example.com"
	config.Logger = discardLogger()
	server, err := NewServer(config)
	if err != nil {
		t.Fatal(err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	var serveErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		serveErr = server.Serve(listener)
	}()

	for server.Addr() == nil {
		time.Sleep(5 * time.Millisecond)
	}
	if err := server.Close(); err != nil {
		t.Fatal(err)
	}
	wg.Wait()

	if !errors.Is(serveErr, ErrServerClosed) {
		t.Errorf("Serve returned %v, want ErrServerClosed", serveErr)
	}

	other, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	if err := server.Serve(other); !errors.Is(err, ErrServerClosed) {
		t.Errorf("Serve after Close returned %v", err)
	}
}

func TestBuilder(t *testing.T) {
	handler := &recordingHandler{}
	var observed atomic.Int32

	server, err := New("Builder.Example.com").
		BindAddress("127.0.0.1").
		Port(0).
		Logger(discardLogger()).
		MaxMessageSize(MinMessageSize).
		MaxRecipients(150).
		Extension("8bitmime", "size").
		Handler(func() EventHandler { return handler }).
		Command(CommandSpec{
			Prefix: "XHELLO",
			States: AnyState,
			Handler: func(s *Session, _ string) error {
				return s.Reply(CodeOK, "hello "+s.RemoteAddr().Network())
			},
		}).
		Use(func(next CommandFunc) CommandFunc {
			return func(s *Session, arg string) error {
				observed.Add(1)
				return next(s, arg)
			}
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	config := server.Config()
	if config.Hostname != "builder.example.com" || config.MaxRecipients != 150 || config.MaxMessageSize != MinMessageSize {
		t.Errorf("unexpected config: %+v", config)
	}
	if strings.Join(config.Extensions, ",") != "8BITMIME,SIZE" {
		t.Errorf("Extensions = %v", config.Extensions)
	}

	listener, err := net.Listen("tcp", config.Addr())
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = server.Serve(listener) }()
	defer server.Close()

	client := newTestClient(t, listener.Addr().String())
	defer client.close()
	client.expectLine("220 builder.example.com Service ready")
	client.send("XHELLO")
	client.expectLine("250 hello tcp")
	client.send("QUIT")
	client.expectCode(221)

	if n := observed.Load(); n != 2 {
		t.Errorf("middleware ran %d times, want 2", n)
	}
}

func TestBuilderInvalidConfig(t *testing.T) {
	_, err := New("mx.example.org").MaxLineSize(80).Build()
	if !errors.Is(err, ErrMaxLineSizeTooSmall) {
		t.Errorf("Build returned %v, want ErrMaxLineSizeTooSmall", err)
	}
}
