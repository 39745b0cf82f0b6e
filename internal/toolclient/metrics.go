package toolclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeMock    = "mock"
)

var (
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toolbridge",
		Subsystem: "toolclient",
		Name:      "calls_total",
		Help:      "Tool calls by tool name and terminal outcome.",
	}, []string{"tool", "outcome"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toolbridge",
		Subsystem: "toolclient",
		Name:      "retries_total",
		Help:      "Retried attempts by tool name, excluding the first attempt of each call.",
	}, []string{"tool"})

	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "toolbridge",
		Subsystem: "toolclient",
		Name:      "call_duration_seconds",
		Help:      "End-to-end tool call duration including backoff waits.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})
)
