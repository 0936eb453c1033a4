package metrics

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synqronlabs/wren"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed(2 * time.Second)
	c.CommandProcessed("HELO", wren.CodeOK)
	c.CommandProcessed("HELO", wren.CodeOK)
	c.CommandProcessed("UNKNOWN", wren.CodeCommandUnrecognized)
	c.MessageAccepted(4096)
	c.MessageRejected(wren.CodeExceededStorage)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.active))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.commands.WithLabelValues("HELO", "250")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.commands.WithLabelValues("UNKNOWN", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messages.WithLabelValues("accepted", "250")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messages.WithLabelValues("rejected", "552")))

	expected := `
# HELP wren_smtpserver_connections_active SMTP connections currently open.
# TYPE wren_smtpserver_connections_active gauge
wren_smtpserver_connections_active 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "wren_smtpserver_connections_active"))
	assert.Equal(t, 1, testutil.CollectAndCount(c.sessionDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(c.messageSize))
}

func TestCollectorDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)
	assert.Panics(t, func() { NewCollector(reg) })
}

func TestCollectorObservesServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	server, err := wren.New("mx.example.org").
		BindAddress("127.0.0.1").
		Port(0).
		Logger(discardLogger()).
		Observer(c).
		Build()
	require.NoError(t, err)

	listener, err := net.Listen("tcp", server.Config().Addr())
	require.NoError(t, err)
	go func() { _ = server.Serve(listener) }()
	defer server.Close()

	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	r := bufio.NewReader(conn)

	read := func() string {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		return strings.TrimRight(line, "\r\n")
	}

	assert.Equal(t, "220 mx.example.org Service ready", read())
	for _, cmd := range []string{"HELO client.example.org", "MAIL FROM:<a@example.org>", "RCPT TO:<b@example.org>", "DATA"} {
		_, err := conn.Write([]byte(cmd + "\r\n"))
		require.NoError(t, err)
		read()
	}
	_, err = conn.Write([]byte("hello\r\n.\r\nBOGUS\r\nQUIT\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "250 OK", read())
	assert.Equal(t, "500 Command unrecognized", read())
	assert.Equal(t, "221 mx.example.org", read())

	// The server closes the connection after QUIT; wait for the close to be observed.
	_, err = r.ReadString('\n')
	require.Error(t, err)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(c.active) == 0
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.commands.WithLabelValues("DATA", "250")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.commands.WithLabelValues("UNKNOWN", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.commands.WithLabelValues("QUIT", "221")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messages.WithLabelValues("accepted", "250")))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
