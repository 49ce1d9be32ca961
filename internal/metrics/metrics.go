package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collectors struct {
	Transitions        *prometheus.CounterVec
	TransitionFailures *prometheus.CounterVec
	SideEffects        *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

var collectors = sync.OnceValue(func() *Collectors {
	return &Collectors{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "change_requests",
			Name:      "transitions_total",
			Help:      "Total number of applied change request status transitions.",
		}, []string{"from", "to", "action"}),
		TransitionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "change_requests",
			Name:      "transition_failures_total",
			Help:      "Total number of rejected change request transitions by failure kind.",
		}, []string{"kind"}),
		SideEffects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "change_requests",
			Name:      "side_effects_total",
			Help:      "Total number of status change side effects by step and result.",
		}, []string{"step", "result"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "change_requests",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
})

// Get returns the process-wide collectors, registering them on first use.
func Get() *Collectors {
	return collectors()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
