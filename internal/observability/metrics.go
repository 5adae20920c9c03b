package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProjectsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "projects_created_total",
		Help: "Total number of projects created",
	})

	ProjectsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "projects_deleted_total",
		Help: "Total number of projects deleted",
	})

	PaymentSessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_sessions_created_total",
		Help: "Total number of hosted payment sessions created",
	})

	PaymentNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_notifications_total",
		Help: "Payment gateway notifications by event kind and outcome",
	}, []string{"kind", "outcome"})

	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "generations_total",
		Help: "Generation attempts by outcome",
	}, []string{"outcome"})

	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "generation_duration_seconds",
		Help:    "Latency of the external generation call including result download",
		Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
