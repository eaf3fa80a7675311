// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes the aggregator's Prometheus surface, generalized
// from the teacher's telemetry/churn package (module-global collectors
// registered once in init, opt-in server/export wiring left to the
// entrypoint) from a single-purpose rate-limiter KPI set to the C2/C4/C6/C7
// signals spec §6's /stats/metrics endpoint reports.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PluginInvocationsTotal counts every C5 plugin call, labeled by
	// plugin name and outcome ("success"/"failure").
	PluginInvocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregator_plugin_invocations_total",
		Help: "Total plugin invocations by plugin and outcome",
	}, []string{"plugin", "outcome"})

	// PluginInvocationDuration observes C5 plugin call latency.
	PluginInvocationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aggregator_plugin_invocation_duration_seconds",
		Help:    "Plugin invocation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"plugin"})

	// CircuitState reports each C4 breaker's current numeric state
	// (0=Closed, 1=Open, 2=HalfOpen, matching breaker.State's own
	// iota order), one gauge per plugin.
	CircuitState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aggregator_circuit_state",
		Help: "Circuit breaker state per plugin (0=closed, 1=open, 2=half-open)",
	}, []string{"plugin"})

	// PoolUtilization reports C3's active/capacity ratio per slot class.
	PoolUtilization = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aggregator_pool_utilization",
		Help: "Fraction of concurrency pool slots currently in use, by class",
	}, []string{"class"})

	// PluginScore mirrors C6's current EWMA snapshot, one gauge per
	// plugin/category/bucket combination.
	PluginScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aggregator_plugin_score",
		Help: "Current EWMA confidence score per plugin, category, and bucket",
	}, []string{"plugin", "category", "bucket"})

	// ProbeResultsTotal counts C7 background probe outcomes.
	ProbeResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregator_probe_results_total",
		Help: "Total background prober results by plugin and outcome",
	}, []string{"plugin", "outcome"})

	// InFlightRequests is C11's drain-wait gauge: top-level requests
	// currently being served.
	InFlightRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aggregator_in_flight_requests",
		Help: "Top-level HTTP requests currently being served",
	})
)

func init() {
	prometheus.MustRegister(
		PluginInvocationsTotal,
		PluginInvocationDuration,
		CircuitState,
		PoolUtilization,
		PluginScore,
		ProbeResultsTotal,
		InFlightRequests,
	)
}

// Handler returns the promhttp handler for /stats endpoints that expose
// raw Prometheus exposition format alongside the JSON views in spec §6.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePluginInvocation records one C5 plugin call's outcome and
// latency, called from C9/C10's dispatch path after a breaker-recorded
// success or failure.
func ObservePluginInvocation(plugin string, success bool, seconds float64) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	PluginInvocationsTotal.WithLabelValues(plugin, outcome).Inc()
	PluginInvocationDuration.WithLabelValues(plugin).Observe(seconds)
}

// SetCircuitState publishes C4's current breaker state for a plugin.
func SetCircuitState(plugin string, state int) {
	CircuitState.WithLabelValues(plugin).Set(float64(state))
}

// SetPoolUtilization publishes C3's active/capacity ratio for a slot class.
func SetPoolUtilization(class string, active, capacity int) {
	if capacity <= 0 {
		PoolUtilization.WithLabelValues(class).Set(0)
		return
	}
	PoolUtilization.WithLabelValues(class).Set(float64(active) / float64(capacity))
}

// SetPluginScore publishes C6's latest EWMA snapshot.
func SetPluginScore(plugin, category, bucket string, confidence float64) {
	PluginScore.WithLabelValues(plugin, category, bucket).Set(confidence)
}

// ObserveProbeResult records one C7 background probe's outcome.
func ObserveProbeResult(plugin string, reachable bool) {
	outcome := "unreachable"
	if reachable {
		outcome = "reachable"
	}
	ProbeResultsTotal.WithLabelValues(plugin, outcome).Inc()
}
