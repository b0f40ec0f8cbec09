// Package metrics registers the Prometheus instruments for the tool bridge
// and the WebSocket session pool.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for ToolRoundTrips.
const (
	OutcomeSuccess   = "success"
	OutcomeRemote    = "remote_failure"
	OutcomeTimeout   = "timeout"
	OutcomeNoSession = "no_session"
	OutcomeRejected  = "rejected"
	OutcomeSendFail  = "send_failure"
)

var (
	// ToolRoundTrips counts completed tool bridge round-trips by outcome.
	ToolRoundTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabpilot_tool_roundtrips_total",
		Help: "Tool bridge round-trips, labeled by outcome.",
	}, []string{"outcome"})

	// ToolRoundTripSeconds observes round-trip latency from send to reply.
	ToolRoundTripSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tabpilot_tool_roundtrip_seconds",
		Help:    "Latency of tool bridge round-trips.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// ActiveSessions tracks currently connected WebSocket sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tabpilot_active_sessions",
		Help: "Currently connected browser extension sessions.",
	})
)

// Handler returns the exposition endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
