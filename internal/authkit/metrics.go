package authkit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Auth event labels recorded on the counter vector.
const (
	EventRegister       = "register"
	EventLogin          = "login"
	EventLoginRejected  = "login_rejected"
	EventRotate         = "rotate"
	EventRotateRejected = "rotate_rejected"
	EventLogout         = "logout"
	EventFederatedLogin = "federated_login"
	EventAccountLinked  = "account_linked"
)

// Metrics counts auth events.
type Metrics struct {
	events *prometheus.CounterVec
}

// NewMetrics constructs an unregistered metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_auth_events_total",
			Help: "Authentication and session lifecycle events.",
		}, []string{"event"}),
	}
}

// Register attaches the collectors to the given registry.
func (metrics *Metrics) Register(registry prometheus.Registerer) error {
	return registry.Register(metrics.events)
}

// Increment bumps the counter for an event.
func (metrics *Metrics) Increment(event string) {
	metrics.events.WithLabelValues(event).Inc()
}

// Collector exposes the counter vector for test inspection.
func (metrics *Metrics) Collector(event string) prometheus.Counter {
	return metrics.events.WithLabelValues(event)
}
