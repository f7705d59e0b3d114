package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal tracks logical Controller2 calls by operation and final code
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debugctl_rpc_calls_total",
			Help: "Total number of logical Controller2 calls",
		},
		[]string{"method", "code"},
	)

	// RPCAttemptsTotal tracks individual transport attempts, retries included
	RPCAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debugctl_rpc_attempts_total",
			Help: "Total number of Controller2 transport attempts",
		},
		[]string{"method", "code"},
	)

	// RPCRetriesTotal tracks retries scheduled by the retry policy
	RPCRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debugctl_rpc_retries_total",
			Help: "Total number of Controller2 retries",
		},
		[]string{"method"},
	)

	// RPCLatency tracks the latency of whole logical calls
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "debugctl_rpc_latency_seconds",
			Help:    "Controller2 call latency in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// AgentActiveBreakpoints is the size of the last active list an agent received
	AgentActiveBreakpoints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "debugctl_agent_active_breakpoints",
			Help: "Number of active breakpoints in the last list received by the agent",
		},
	)

	// AgentRegistrationsTotal tracks (re-)registrations performed by the agent
	AgentRegistrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "debugctl_agent_registrations_total",
			Help: "Total number of debuggee registrations performed by the agent",
		},
	)

	// AgentBreakpointsCompleted tracks breakpoints the agent reported as final
	AgentBreakpointsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "debugctl_agent_breakpoints_completed_total",
			Help: "Total number of breakpoints completed by the agent",
		},
	)

	// ControllerRequestsTotal tracks requests served by the reference controller
	ControllerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debugctl_controller_requests_total",
			Help: "Total number of requests served by the controller",
		},
		[]string{"method", "code"},
	)

	// ControllerDiscardedResults tracks final updates that lost the completion race
	ControllerDiscardedResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "debugctl_controller_discarded_results_total",
			Help: "Total number of breakpoint results discarded because another agent completed first",
		},
	)

	// ControllerWaitsTotal tracks hanging list calls by outcome (changed, expired)
	ControllerWaitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debugctl_controller_waits_total",
			Help: "Total number of hanging list calls by outcome",
		},
		[]string{"outcome"},
	)

	// DBConnectionPoolUsage tracks the share of open connections in the pool
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "debugctl_db_connection_pool_usage_percent",
			Help: "Percentage of the database connection pool in use",
		},
	)
)
