// Package metrics defines Prometheus instrumentation for the backtester.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Counter vectors
var (
	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prop_edge",
		Name:      "backtest_runs_total",
		Help:      "Total number of backtest runs by status",
	}, []string{"status"})

	SimulatedBetsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prop_edge",
		Name:      "simulated_bets_total",
		Help:      "Simulated bets by outcome",
	}, []string{"outcome"})

	CandidatesRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prop_edge",
		Name:      "candidates_rejected_total",
		Help:      "Candidates rejected before simulation, by reason",
	}, []string{"reason"})

	OracleRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prop_edge",
		Name:      "oracle_requests_total",
		Help:      "Prediction oracle requests by model and status",
	}, []string{"model", "status"})

	OracleCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "prop_edge",
		Name:      "oracle_cache_hits_total",
		Help:      "Prediction cache hits",
	})

	OracleCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "prop_edge",
		Name:      "oracle_cache_misses_total",
		Help:      "Prediction cache misses",
	})
)

// Histogram vectors
var (
	StakeFraction = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "prop_edge",
		Name:      "stake_fraction",
		Help:      "Distribution of sized stake fractions of bankroll",
		Buckets:   []float64{0.005, 0.01, 0.02, 0.03, 0.05, 0.075, 0.1, 0.15},
	})

	OracleLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "prop_edge",
		Name:      "oracle_latency_seconds",
		Help:      "Prediction oracle request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"model"})
)

// Gauges
var (
	LastRunROI = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "prop_edge",
		Name:      "last_run_roi",
		Help:      "ROI percentage of the most recent backtest run",
	})

	LastRunMaxDrawdown = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "prop_edge",
		Name:      "last_run_max_drawdown",
		Help:      "Max drawdown of the most recent backtest run",
	})
)

// Register registers all collectors with the given registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		BacktestRunsTotal,
		SimulatedBetsTotal,
		CandidatesRejectedTotal,
		OracleRequestsTotal,
		OracleCacheHitsTotal,
		OracleCacheMissesTotal,
		StakeFraction,
		OracleLatencySeconds,
		LastRunROI,
		LastRunMaxDrawdown,
	)
}

// RecordBacktestRun records a backtest run event.
// status should be one of: "success", "failure", "stopped_early"
func RecordBacktestRun(status string) {
	BacktestRunsTotal.WithLabelValues(status).Inc()
}

// RecordSimulatedBet records a simulated bet outcome.
func RecordSimulatedBet(outcome string) {
	SimulatedBetsTotal.WithLabelValues(outcome).Inc()
}
