package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_gate_transitions_total",
		Help: "Activation gate transitions",
	}, []string{"from", "to"})

	metricIgnored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_gate_ignored_total",
		Help: "Events the activation gate ignored, by reason",
	}, []string{"event", "reason"})

	metricJoinFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_join_failures_total",
		Help: "Joins reported as failed by the transport",
	})

	metricChannelsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_channels_created_total",
		Help: "Channel ids generated for locally created sessions",
	})
)
