package wren

import (
	"log/slog"
	"time"
)

// ServerBuilder provides a fluent API for configuring an SMTP server.
type ServerBuilder struct {
	config ServerConfig
}

// New creates a new ServerBuilder. An empty hostname is resolved when the
// server is built, with the OS host name unless HostnameResolver is set.
func New(hostname string) *ServerBuilder {
	config := DefaultServerConfig()
	config.Hostname = hostname
	return &ServerBuilder{config: config}
}

// BindAddress sets the address to listen on, an IP or a host name.
// The default listens on every interface.
func (b *ServerBuilder) BindAddress(addr string) *ServerBuilder {
	b.config.BindAddress = addr
	return b
}

// Port sets the TCP port; 0 picks a free one.
func (b *ServerBuilder) Port(port int) *ServerBuilder {
	b.config.Port = port
	return b
}

// Debug enables logging of every command and reply.
func (b *ServerBuilder) Debug(enabled bool) *ServerBuilder {
	b.config.Debug = enabled
	return b
}

// Logger sets the structured logger for the server.
func (b *ServerBuilder) Logger(logger *slog.Logger) *ServerBuilder {
	b.config.Logger = logger
	return b
}

// ReadTimeout sets the timeout for reading a line.
func (b *ServerBuilder) ReadTimeout(d time.Duration) *ServerBuilder {
	b.config.ReadTimeout = d
	return b
}

// WriteTimeout sets the timeout for writing a reply.
func (b *ServerBuilder) WriteTimeout(d time.Duration) *ServerBuilder {
	b.config.WriteTimeout = d
	return b
}

// MaxMessageSize sets the maximum message size in bytes, at least
// MinMessageSize.
func (b *ServerBuilder) MaxMessageSize(size int64) *ServerBuilder {
	b.config.MaxMessageSize = size
	return b
}

// MaxLineSize sets the maximum line length, CRLF included, at least
// MinLineSize.
func (b *ServerBuilder) MaxLineSize(n int) *ServerBuilder {
	b.config.MaxLineSize = n
	return b
}

// MaxRecipients sets the maximum number of recipients per message, at least
// MinRecipients.
func (b *ServerBuilder) MaxRecipients(n int) *ServerBuilder {
	b.config.MaxRecipients = n
	return b
}

// Extension adds ESMTP extension keywords.
func (b *ServerBuilder) Extension(names ...string) *ServerBuilder {
	b.config.Extensions = append(b.config.Extensions, names...)
	return b
}

// HostnameResolver sets how the hostname is found when none was given.
func (b *ServerBuilder) HostnameResolver(r HostnameResolver) *ServerBuilder {
	b.config.HostnameResolver = r
	return b
}

// Observer sets the receiver of server activity events.
func (b *ServerBuilder) Observer(o Observer) *ServerBuilder {
	b.config.Observer = o
	return b
}

// Handler sets the factory creating the event handler of each connection.
func (b *ServerBuilder) Handler(factory HandlerFactory) *ServerBuilder {
	b.config.Handler = factory
	return b
}

// Command adds a command. Added commands are tried in order, before the
// built-in ones, so a command can replace a built-in one with the same prefix.
func (b *ServerBuilder) Command(spec CommandSpec) *ServerBuilder {
	b.config.Commands = append(b.config.Commands, spec)
	return b
}

// Use adds middleware wrapping every command handler.
func (b *ServerBuilder) Use(middleware ...Middleware) *ServerBuilder {
	b.config.Middleware = append(b.config.Middleware, middleware...)
	return b
}

// Config returns a copy of the configuration built so far.
func (b *ServerBuilder) Config() ServerConfig {
	return b.config
}

// Build creates a Server from the builder configuration.
func (b *ServerBuilder) Build() (*Server, error) {
	return NewServer(b.config)
}

// Run builds and starts the server.
// This is a convenience method equivalent to Build() followed by ListenAndServe().
func (b *ServerBuilder) Run() error {
	server, err := b.Build()
	if err != nil {
		return err
	}
	return server.ListenAndServe()
}
