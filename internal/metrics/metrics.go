package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const prefix = "midimcp_"

// Metrics counts MIDI traffic produced by the tools. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	messagesSent     *prometheus.CounterVec
	sendFailures     prometheus.Counter
	sequencesStarted prometheus.Counter
	toolCalls        *prometheus.CounterVec
}

// New registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "messages_sent_total",
				Help: "Number of MIDI messages written to the output port",
			},
			[]string{"kind"},
		),
		sendFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "send_failures_total",
				Help: "Number of MIDI writes rejected by the driver",
			},
		),
		sequencesStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "sequences_started_total",
				Help: "Number of note sequences scheduled",
			},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "tool_calls_total",
				Help: "Number of tool invocations by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
	}
	m.registry.MustRegister(m.messagesSent, m.sendFailures, m.sequencesStarted, m.toolCalls)
	return m
}

func (m *Metrics) RecordMessageSent(kind string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordSendFailure() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

func (m *Metrics) RecordSequenceStarted() {
	if m == nil {
		return
	}
	m.sequencesStarted.Inc()
}

func (m *Metrics) RecordToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collected metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
