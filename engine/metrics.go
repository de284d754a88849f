package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workflowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bioai",
		Name:      "workflows_total",
		Help:      "Workflows executed, by final status.",
	}, []string{"status"})

	workflowDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bioai",
		Name:      "workflow_duration_seconds",
		Help:      "Wall-clock duration of workflow runs.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	agentExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bioai",
		Name:      "agent_executions_total",
		Help:      "Agent node executions, by agent and outcome.",
	}, []string{"agent", "status"})

	activeWorkflows = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bioai",
		Name:      "active_workflows",
		Help:      "Workflows currently in flight.",
	})
)
