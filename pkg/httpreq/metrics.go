package httpreq

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by a Transport.
type Metrics struct {
	RequestsTotal         *prometheus.CounterVec
	TimeoutsTotal         prometheus.Counter
	PausedRejectionsTotal prometheus.Counter
	PauseActivationsTotal prometheus.Counter
	TransportErrorsTotal  prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg when it is not
// nil. Collectors already registered by another Transport are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fancyspaces",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of completed outbound requests by method and status code",
			},
			[]string{"method", "code"},
		),
		TimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fancyspaces",
			Subsystem: "http",
			Name:      "timeouts_total",
			Help:      "Total number of outbound requests that timed out",
		}),
		PausedRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fancyspaces",
			Subsystem: "http",
			Name:      "paused_rejections_total",
			Help:      "Total number of requests rejected locally during a pause window",
		}),
		PauseActivationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fancyspaces",
			Subsystem: "http",
			Name:      "pause_activations_total",
			Help:      "Total number of pause windows opened after repeated timeouts",
		}),
		TransportErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fancyspaces",
			Subsystem: "http",
			Name:      "transport_errors_total",
			Help:      "Total number of outbound requests that failed without a response",
		}),
	}

	if reg == nil {
		return m
	}

	m.RequestsTotal = register(reg, m.RequestsTotal)
	m.TimeoutsTotal = register(reg, m.TimeoutsTotal)
	m.PausedRejectionsTotal = register(reg, m.PausedRejectionsTotal)
	m.PauseActivationsTotal = register(reg, m.PauseActivationsTotal)
	m.TransportErrorsTotal = register(reg, m.TransportErrorsTotal)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
