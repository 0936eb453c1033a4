// Package metrics exports server activity as Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/synqronlabs/wren"
)

// Collector implements wren.Observer.
type Collector struct {
	connections     prometheus.Counter
	active          prometheus.Gauge
	sessionDuration prometheus.Histogram
	commands        *prometheus.CounterVec
	messages        *prometheus.CounterVec
	messageSize     prometheus.Histogram
}

var _ wren.Observer = (*Collector)(nil)

// NewCollector registers the server metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		connections: factory.NewCounter(prometheus.CounterOpts{
			Name: "wren_smtpserver_connection_total",
			Help: "Incoming SMTP connections.",
		}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "wren_smtpserver_connections_active",
			Help: "SMTP connections currently open.",
		}),
		sessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wren_smtpserver_session_duration_seconds",
			Help:    "SMTP connection lifetime in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}),
		commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wren_smtpserver_command_total",
				Help: "SMTP commands by verb and reply code. Unrecognized lines have verb UNKNOWN.",
			},
			[]string{
				"cmd",
				"code",
			},
		),
		messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wren_smtpserver_message_total",
				Help: "Message transactions completed by DATA. Result values: accepted, rejected.",
			},
			[]string{
				"result",
				"code",
			},
		),
		messageSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wren_smtpserver_message_size_bytes",
			Help:    "Size of accepted message bodies.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
}

func (c *Collector) ConnectionOpened() {
	c.connections.Inc()
	c.active.Inc()
}

func (c *Collector) ConnectionClosed(duration time.Duration) {
	c.active.Dec()
	c.sessionDuration.Observe(duration.Seconds())
}

func (c *Collector) CommandProcessed(verb string, code wren.SMTPCode) {
	c.commands.WithLabelValues(verb, strconv.Itoa(int(code))).Inc()
}

func (c *Collector) MessageAccepted(size int64) {
	c.messages.WithLabelValues("accepted", strconv.Itoa(int(wren.CodeOK))).Inc()
	c.messageSize.Observe(float64(size))
}

func (c *Collector) MessageRejected(code wren.SMTPCode) {
	c.messages.WithLabelValues("rejected", strconv.Itoa(int(code))).Inc()
}
