package wren

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/synqronlabs/wren/address"
)

// Limits from RFC 5321 Section 4.5.3.
const (
	// MinMessageSize is the smallest MaxMessageSize accepted. RFC 5321
	// requires at least 64k octets of message content.
	MinMessageSize int64 = 64 * 1024

	// MinLineSize is the smallest MaxLineSize accepted: the RFC 5321 text
	// line limit, CRLF included.
	MinLineSize = 1000

	// MinRecipients is the smallest MaxRecipients accepted.
	MinRecipients = 100

	DefaultPort           = 25
	DefaultMaxMessageSize = 10 * 1024 * 1024

	hostnameTimeout = 10 * time.Second
)

// ServerConfig contains configuration options for the SMTP server.
// Prefer using the builder pattern via wren.New(). A config is not modified
// once a Server has been created from it.
type ServerConfig struct {
	// Hostname is announced in the greeting and QUIT replies. When empty it
	// is obtained from HostnameResolver.
	Hostname    string
	BindAddress string
	Port        int

	// Debug logs every command line and reply at debug level.
	Debug bool

	MaxMessageSize int64
	// MaxLineSize bounds command and text lines, CRLF included.
	MaxLineSize   int
	MaxRecipients int

	// Extensions is the static list of supported ESMTP keywords.
	Extensions []string

	// ReadTimeout and WriteTimeout bound each line read and reply write.
	// Zero disables the deadline.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Logger           *slog.Logger
	HostnameResolver HostnameResolver
	Observer         Observer

	// Handler creates the event handler of each connection.
	Handler HandlerFactory

	// Commands are matched before the built-in commands, in order.
	Commands []CommandSpec

	// Middleware wraps every command handler, the first one outermost.
	Middleware []Middleware
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:             DefaultPort,
		MaxMessageSize:   DefaultMaxMessageSize,
		MaxLineSize:      MinLineSize,
		MaxRecipients:    MinRecipients,
		ReadTimeout:      5 * time.Minute,
		WriteTimeout:     5 * time.Minute,
		Logger:           slog.Default(),
		HostnameResolver: OSHostname(),
	}
}

// Addr returns the listen address, "host:port".
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}

// Validate checks every field against its floor or syntax. All violations
// are reported, joined, each wrapping one of the Err* configuration errors.
func (c *ServerConfig) Validate() error {
	var errs []error

	if c.MaxMessageSize < MinMessageSize {
		errs = append(errs, fmt.Errorf("%w: %d, minimum is %d", ErrMaxMessageSizeTooSmall, c.MaxMessageSize, MinMessageSize))
	}
	if c.MaxLineSize < MinLineSize {
		errs = append(errs, fmt.Errorf("%w: %d, minimum is %d", ErrMaxLineSizeTooSmall, c.MaxLineSize, MinLineSize))
	}
	if c.MaxRecipients < MinRecipients {
		errs = append(errs, fmt.Errorf("%w: %d, minimum is %d", ErrMaxRecipientsTooSmall, c.MaxRecipients, MinRecipients))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidPort, c.Port))
	}
	if c.BindAddress != "" {
		if _, err := netip.ParseAddr(c.BindAddress); err != nil && address.DomainLen(c.BindAddress) != len(c.BindAddress) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidBindAddress, c.BindAddress))
		}
	}
	if c.Hostname != "" {
		if _, err := NormalizeHostname(c.Hostname); err != nil {
			errs = append(errs, err)
		}
	}
	for _, ext := range c.Extensions {
		if !isExtensionKeyword(ext) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidExtension, ext))
		}
	}
	for i, cmd := range c.Commands {
		if cmd.Prefix == "" || cmd.Handler == nil || cmd.States == 0 {
			errs = append(errs, fmt.Errorf("%w: commands[%d] %q", ErrInvalidCommand, i, cmd.Prefix))
		}
	}

	return errors.Join(errs...)
}

// NormalizeHostname returns the ASCII (A-label) form of an announced host
// name. The result is a valid RFC 5321 domain.
func NormalizeHostname(name string) (string, error) {
	ascii, err := idna.Lookup.ToASCII(strings.TrimSuffix(name, "."))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidHostname, name, err)
	}
	if ascii == "" || len(ascii) > address.MaxDomainLen || address.DomainLen(ascii) != len(ascii) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHostname, name)
	}
	return ascii, nil
}

// isExtensionKeyword reports whether s is an RFC 5321 ehlo-keyword.
func isExtensionKeyword(s string) bool {
	if s == "" || !address.IsAlnum(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !address.IsAlnum(s[i]) && s[i] != '-' {
			return false
		}
	}
	return true
}

// resolved returns a copy of c with defaults applied, the hostname resolved
// and normalized and the extension names upper-cased.
func (c ServerConfig) resolved() (ServerConfig, error) {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	if c.Handler == nil {
		c.Handler = nopHandlerFactory
	}
	if c.HostnameResolver == nil {
		c.HostnameResolver = OSHostname()
	}

	if err := c.Validate(); err != nil {
		return c, err
	}

	if c.Hostname == "" {
		ctx, cancel := context.WithTimeout(context.Background(), hostnameTimeout)
		name, err := c.HostnameResolver.Hostname(ctx)
		cancel()
		if err != nil {
			if errors.Is(err, ErrHostnameUnavailable) {
				return c, err
			}
			return c, fmt.Errorf("%w: %w", ErrHostnameUnavailable, err)
		}
		c.Hostname = name
	}
	hostname, err := NormalizeHostname(c.Hostname)
	if err != nil {
		return c, err
	}
	c.Hostname = hostname

	exts := make([]string, len(c.Extensions))
	for i, ext := range c.Extensions {
		exts[i] = strings.ToUpper(ext)
	}
	c.Extensions = exts
	c.Commands = append([]CommandSpec(nil), c.Commands...)
	c.Middleware = append([]Middleware(nil), c.Middleware...)

	return c, nil
}
