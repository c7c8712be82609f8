package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fizzy_jobs_processed_total",
		Help: "Total number of queue jobs processed, labelled by kind and outcome.",
	}, []string{"kind", "outcome"})

	JobsDead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fizzy_jobs_dead_total",
		Help: "Total number of jobs moved to the dead state after exhausting retries.",
	}, []string{"kind"})

	NotificationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fizzy_notifications_created_total",
		Help: "Total number of notification rows inserted.",
	})

	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fizzy_webhook_deliveries_total",
		Help: "Total number of webhook delivery attempts, labelled by outcome.",
	}, []string{"outcome"})

	WebhookDeliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fizzy_webhook_delivery_duration_seconds",
		Help:    "Webhook endpoint response latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	BroadcastsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fizzy_broadcasts_sent_total",
		Help: "Total number of broadcast instructions fanned out to streams.",
	})

	BroadcastsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fizzy_broadcasts_dropped_total",
		Help: "Total number of broadcast instructions dropped on slow clients.",
	})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fizzy_stream_clients",
		Help: "Number of currently connected stream clients.",
	})
)
