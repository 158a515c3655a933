// Package metrics exposes a /metrics Prometheus endpoint for the renderer:
// SOAP action counts, subscriber gauges, and player transport-state
// transitions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SOAPActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "renderd",
		Name:      "soap_actions_total",
		Help:      "Number of SOAP control actions dispatched, by service and action name.",
	}, []string{"service", "action"})

	SOAPFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "renderd",
		Name:      "soap_faults_total",
		Help:      "Number of SOAP control actions that returned a UPnP fault, by service and fault code.",
	}, []string{"service", "code"})

	SubscribersGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "renderd",
		Name:      "event_subscribers",
		Help:      "Current number of active GENA event subscribers, by service.",
	}, []string{"service"})

	EventsDeliveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "renderd",
		Name:      "events_delivered_total",
		Help:      "Number of NOTIFY deliveries attempted, by service and outcome.",
	}, []string{"service", "outcome"})

	PlayerTransportState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "renderd",
		Name:      "player_transport_state",
		Help:      "1 for the currently active AVTransport TransportState, 0 otherwise.",
	}, []string{"state"})
)

// Handler returns the http.Handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetTransportState zeroes every known state and sets only the active one,
// so a Prometheus query always sees exactly one state at value 1.
func SetTransportState(active string, known []string) {
	for _, s := range known {
		if s == active {
			PlayerTransportState.WithLabelValues(s).Set(1)
		} else {
			PlayerTransportState.WithLabelValues(s).Set(0)
		}
	}
}
