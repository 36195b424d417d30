package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CDRDirectionCounter returns CDR counts grouped by direction.
type CDRDirectionCounter interface {
	CountByDirection(ctx context.Context) (map[string]int64, error)
}

// EventStreamStatus reports whether the switch event stream is up.
type EventStreamStatus interface {
	Connected() bool
}

// ClientCounter reports how many realtime clients are connected.
type ClientCounter interface {
	ClientCount() int64
}

// Collector is a prometheus.Collector that gathers control-plane metrics
// at scrape time. Any provider may be nil if unavailable.
type Collector struct {
	cdrs          CDRDirectionCounter
	eventStream   EventStreamStatus
	registrations ClientCounter
	calls         ClientCounter
	startTime     time.Time

	callsTotalDesc  *prometheus.Desc
	eventStreamDesc *prometheus.Desc
	wsClientsDesc   *prometheus.Desc
	uptimeDesc      *prometheus.Desc
}

// NewCollector creates a new metrics collector.
func NewCollector(
	cdrs CDRDirectionCounter,
	eventStream EventStreamStatus,
	registrations ClientCounter,
	calls ClientCounter,
	startTime time.Time,
) *Collector {
	return &Collector{
		cdrs:          cdrs,
		eventStream:   eventStream,
		registrations: registrations,
		calls:         calls,
		startTime:     startTime,

		callsTotalDesc: prometheus.NewDesc(
			"routepbx_calls_total",
			"Total number of calls processed (from CDR)",
			[]string{"direction"}, nil,
		),
		eventStreamDesc: prometheus.NewDesc(
			"routepbx_event_stream_connected",
			"Whether the switch event-socket stream is connected (1=yes)",
			nil, nil,
		),
		wsClientsDesc: prometheus.NewDesc(
			"routepbx_websocket_clients",
			"Connected realtime websocket clients",
			[]string{"family"}, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"routepbx_uptime_seconds",
			"Seconds since the process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.callsTotalDesc
	ch <- c.eventStreamDesc
	ch <- c.wsClientsDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.cdrs != nil {
		counts, err := c.cdrs.CountByDirection(ctx)
		if err != nil {
			slog.Error("metrics: failed to count cdrs by direction", "error", err)
		} else {
			for _, dir := range []string{"inbound", "outbound", "local"} {
				ch <- prometheus.MustNewConstMetric(
					c.callsTotalDesc, prometheus.CounterValue,
					float64(counts[dir]), dir,
				)
			}
		}
	}

	if c.eventStream != nil {
		val := 0.0
		if c.eventStream.Connected() {
			val = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.eventStreamDesc, prometheus.GaugeValue, val)
	}

	if c.registrations != nil {
		ch <- prometheus.MustNewConstMetric(
			c.wsClientsDesc, prometheus.GaugeValue,
			float64(c.registrations.ClientCount()), "registrations",
		)
	}
	if c.calls != nil {
		ch <- prometheus.MustNewConstMetric(
			c.wsClientsDesc, prometheus.GaugeValue,
			float64(c.calls.ClientCount()), "calls",
		)
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
