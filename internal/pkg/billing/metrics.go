package billing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	intakeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payfox",
		Subsystem: "billing",
		Name:      "webhook_intake_total",
		Help:      "Inbound gateway notifications by intake result.",
	}, []string{"result"})

	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payfox",
		Subsystem: "billing",
		Name:      "events_dispatched_total",
		Help:      "Processed gateway events by type and outcome.",
	}, []string{"event_type", "outcome"})

	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "payfox",
		Subsystem: "billing",
		Name:      "dispatch_duration_seconds",
		Help:      "Time spent dispatching one gateway event, lock wait included.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})
)
