package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hostCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "protect_host_calls_total",
		Help: "Total number of host handler calls by handler and outcome",
	}, []string{"handler", "outcome"})

	hostCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "protect_host_call_duration_seconds",
		Help:    "Host handler call latency",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"handler"})

	hostEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "protect_host_events_total",
		Help: "Total number of host events delivered to pages",
	}, []string{"event"})

	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "protect_ws_connections",
		Help: "Currently connected WebSocket pages",
	})

	wsDuplicateCallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "protect_ws_duplicate_calls_total",
		Help: "Calls answered from the replay cache instead of being executed again",
	})
)

const (
	OutcomeOK        = "ok"
	OutcomeHostError = "host_error"
	OutcomeError     = "error"
)

// ObserveHostCall records one host handler call.
func ObserveHostCall(handler, outcome string, took time.Duration) {
	if handler == "" {
		handler = "unknown"
	}
	if outcome == "" {
		outcome = OutcomeOK
	}
	hostCallsTotal.WithLabelValues(handler, outcome).Inc()
	hostCallDuration.WithLabelValues(handler).Observe(took.Seconds())
}

func IncHostEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	hostEventsTotal.WithLabelValues(event).Inc()
}

func IncWSConnections() { wsConnections.Inc() }
func DecWSConnections() { wsConnections.Dec() }

func IncDuplicateCall() { wsDuplicateCallsTotal.Inc() }
