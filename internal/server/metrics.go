package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solardesk_timeline_transitions_total",
		Help: "Timeline transition requests by action and outcome.",
	}, []string{"action", "outcome"})

	conflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solardesk_timeline_conflicts_total",
		Help: "Transitions rejected on the optimistic-concurrency check.",
	})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solardesk_http_requests_total",
		Help: "HTTP requests by route and status class.",
	}, []string{"route", "status"})
)
