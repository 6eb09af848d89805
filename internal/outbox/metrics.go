package outbox

import "github.com/prometheus/client_golang/prometheus"

const (
	resultDelivered    = "delivered"
	resultDeadLettered = "dead_lettered"
)

var (
	dispatchedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecotrack_outbox_events_total",
		Help: "Outbox events settled by the dispatcher, by topic and result.",
	}, []string{"topic", "result"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ecotrack_outbox_batch_duration_seconds",
		Help:    "Wall time of one claim, deliver and settle cycle.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(dispatchedEvents, batchDuration)
}

// recordBatch counts every message in a settled batch under one result.
func recordBatch(messages []Message, deliverErr error) {
	result := resultDelivered
	if deliverErr != nil {
		result = resultDeadLettered
	}
	for _, msg := range messages {
		dispatchedEvents.WithLabelValues(msg.Topic, result).Inc()
	}
}
