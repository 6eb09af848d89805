package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type outcome string

const (
	outcomeHandled     outcome = "handled"
	outcomeFailed      outcome = "handler_error"
	outcomeUndecodable outcome = "undecodable"
)

var (
	consumedRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecotrack_consumer_records_total",
		Help: "Kafka records read by the event-log consumer, by topic and outcome.",
	}, []string{"topic", "outcome"})

	recordAge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ecotrack_consumer_record_age_seconds",
		Help: "Age of the last handled record when it reached the consumer.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(consumedRecords, recordAge)
}

func observe(topic string, o outcome, produced time.Time) {
	consumedRecords.WithLabelValues(topic, string(o)).Inc()
	if o == outcomeHandled && !produced.IsZero() {
		recordAge.WithLabelValues(topic).Set(time.Since(produced).Seconds())
	}
}
