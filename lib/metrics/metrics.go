// Package metrics holds the prometheus collectors exported on the admin endpoint
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tidis"

var (
	// Commands counts executed commands by name and outcome
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Executed commands partitioned by command name and result.",
	}, []string{"cmd", "result"})

	// CommandDuration observes command latency
	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "command_duration_seconds",
		Help:      "Command execution latency.",
		Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 10),
	}, []string{"cmd"})

	// TxnCommits counts successful standalone commits
	TxnCommits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "txn_commits_total",
		Help:      "Committed transactions.",
	})

	// TxnConflicts counts write conflicts that triggered a retry
	TxnConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "txn_conflicts_total",
		Help:      "Transactions aborted by a write conflict.",
	})

	// TxnRetryExhausted counts commands that gave up after the retry limit
	TxnRetryExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "txn_retry_exhausted_total",
		Help:      "Commands failed because every retry hit a conflict.",
	})

	// GCKeys counts user keys whose stale data was swept
	GCKeys = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gc_keys_total",
		Help:      "User keys cleaned by the tombstone sweeper.",
	})

	// Connections is the number of connected clients
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections",
		Help:      "Connected clients.",
	})
)

// ObserveCommand records one command execution
func ObserveCommand(cmd string, start time.Time, failed bool) {
	result := "ok"
	if failed {
		result = "err"
	}
	Commands.WithLabelValues(cmd, result).Inc()
	CommandDuration.WithLabelValues(cmd).Observe(time.Since(start).Seconds())
}
