// Command main runs a wren SMTP server.
//
// Settings come from flags, WREN_* environment variables (WREN_PORT,
// WREN_MAX_MESSAGE_SIZE, ...) and an optional config file, in that order of
// precedence. Received events can be journaled to a MessagePack file and
// server metrics are exported for Prometheus.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/synqronlabs/wren"
	"github.com/synqronlabs/wren/dns"
	"github.com/synqronlabs/wren/eventlog"
	"github.com/synqronlabs/wren/metrics"
)

func main() {
	v, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if v.GetBool("debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, v, logger); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func loadConfig(args []string) (*viper.Viper, error) {
	flags := pflag.NewFlagSet("wren", pflag.ContinueOnError)
	flags.String("config", "", "config file (toml, yaml or json)")
	flags.String("hostname", "", "name announced in the greeting; discovered when empty")
	flags.Bool("reverse-dns", false, "discover the hostname by forward-confirmed reverse DNS of --public-ip")
	flags.String("public-ip", "", "public address used for --reverse-dns")
	flags.StringSlice("nameservers", nil, "DNS servers for --reverse-dns (host:port); system resolvers when empty")
	flags.String("bind", "", "address to listen on")
	flags.Int("port", wren.DefaultPort, "SMTP port")
	flags.Int64("max-message-size", wren.DefaultMaxMessageSize, "maximum message size in bytes")
	flags.Int("max-line-size", wren.MinLineSize, "maximum line length, CRLF included")
	flags.Int("max-recipients", wren.MinRecipients, "maximum recipients per message")
	flags.StringSlice("extensions", nil, "ESMTP extension keywords")
	flags.Duration("read-timeout", 5*time.Minute, "timeout for reading a line")
	flags.Duration("write-timeout", 5*time.Minute, "timeout for writing a reply")
	flags.Duration("shutdown-timeout", 30*time.Second, "time allowed for sessions to end on shutdown")
	flags.String("metrics-addr", "127.0.0.1:9125", "address of the Prometheus endpoint; empty disables it")
	flags.String("journal", "", "file receiving protocol events as MessagePack frames")
	flags.Bool("debug", false, "log every command and reply")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}
	v.SetEnvPrefix("wren")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

func run(ctx context.Context, v *viper.Viper, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	builder := wren.New(v.GetString("hostname")).
		BindAddress(v.GetString("bind")).
		Port(v.GetInt("port")).
		Debug(v.GetBool("debug")).
		Logger(logger).
		MaxMessageSize(v.GetInt64("max-message-size")).
		MaxLineSize(v.GetInt("max-line-size")).
		MaxRecipients(v.GetInt("max-recipients")).
		Extension(v.GetStringSlice("extensions")...).
		ReadTimeout(v.GetDuration("read-timeout")).
		WriteTimeout(v.GetDuration("write-timeout")).
		Observer(metrics.NewCollector(reg))

	if v.GetBool("reverse-dns") {
		ip, err := netip.ParseAddr(v.GetString("public-ip"))
		if err != nil {
			return fmt.Errorf("--reverse-dns needs --public-ip: %w", err)
		}
		resolver := dns.NewResolver(dns.ResolverConfig{Nameservers: v.GetStringSlice("nameservers")})
		builder.HostnameResolver(wren.ReverseDNSHostname(resolver, ip))
	}

	if path := v.GetString("journal"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer f.Close()
		builder.Handler(eventlog.New(f).Handler)
	}

	server, err := builder.Build()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := server.ListenAndServe()
		if errors.Is(err, wren.ErrServerClosed) {
			return nil
		}
		return err
	})

	var httpServer *http.Server
	if addr := v.GetString("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		httpServer = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}
		g.Go(func() error {
			logger.Info("metrics server started", slog.String("addr", addr))
			err := httpServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), v.GetDuration("shutdown-timeout"))
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("smtp shutdown: %w", err))
		}
		if httpServer != nil {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
