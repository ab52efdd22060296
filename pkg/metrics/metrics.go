package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quizbank"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	// Ingestion loop counters.
	PagesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "ingestion", Name: "pages_fetched_total", Help: "Pages requested from the question source."},
	)
	PagesRejected = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "ingestion", Name: "pages_rejected_total", Help: "Pages that failed validation and aborted an ingestion."},
	)
	Candidates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "ingestion", Name: "candidates_total", Help: "Candidate questions by outcome (accepted, duplicate, conflict)."},
		[]string{"outcome"},
	)
	Failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Subsystem: "ingestion", Name: "failures_total", Help: "Ingestions aborted by a fatal error, by stage."},
		[]string{"stage"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(PagesFetched)
	reg.MustRegister(PagesRejected)
	reg.MustRegister(Candidates)
	reg.MustRegister(Failures)
}
