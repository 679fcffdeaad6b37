// internal/service/flashsale/application/metrics.go
package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationsGranted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulsecart_reservations_granted_total",
		Help: "Number of successfully granted reservations.",
	})

	reservationsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsecart_reservations_rejected_total",
		Help: "Number of rejected reservation attempts, by reason.",
	}, []string{"reason"})

	intentRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulsecart_intent_retries_total",
		Help: "Number of purchase intents re-enqueued after a transient failure.",
	})

	intentsDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulsecart_intents_dead_lettered_total",
		Help: "Number of purchase intents routed to the dead-letter sink.",
	})
)
