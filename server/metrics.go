package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestTotal counts HTTP requests by method, route pattern and status.
	requestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskboard_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	// reorderItems counts positions rewritten by reorder requests, by scope.
	reorderItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskboard_reorder_items_total",
			Help: "Positions rewritten by list and card reorders",
		},
		[]string{"scope"},
	)
)
