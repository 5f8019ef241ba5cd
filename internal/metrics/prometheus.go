// Package metrics registers and records Prometheus metrics for all
// analyzer subsystems including input handling, sequence generation,
// cellular automaton processing, SIMD dispatch, and the statistical test
// battery.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal        prometheus.Counter
	AnalysisDuration     prometheus.Histogram
	InputBitsAnalyzed    prometheus.Counter
	GeneratedBits        prometheus.Counter
	TestsExecuted        *prometheus.CounterVec
	TestFailures         *prometheus.CounterVec
	TestPValues          prometheus.Histogram
	SuitePassRate        prometheus.Gauge
	CAGenerations        prometheus.Counter
	CACellUpdates        prometheus.Counter
	CAProcessDuration    prometheus.Histogram
	CACustomRuleFailures prometheus.Counter
	DispatchTier         *prometheus.GaugeVec

	metricsMu         sync.RWMutex
	currentRegisterer prometheus.Registerer = prometheus.DefaultRegisterer
)

func init() {
	resetMetrics(prometheus.DefaultRegisterer)
}

// SetRegisterer sets a new registerer and reinitializes all metrics.
// It returns the previous registerer so it can be restored later.
// This function is thread-safe and designed for use in tests to provide
// isolated metric registries per test.
func SetRegisterer(registerer prometheus.Registerer) prometheus.Registerer {
	metricsMu.Lock()
	defer metricsMu.Unlock()

	previous := currentRegisterer

	// Unregister from previous registerer
	if currentRegisterer != nil {
		unregisterAll(currentRegisterer)
	}

	// Set new registerer and reinitialize metrics
	currentRegisterer = registerer
	initializeMetrics(registerer)

	return previous
}

// ResetForTesting reconfigures all metric collectors against the provided registerer.
// It unregisters the existing metrics from the previous registerer to prevent
// duplicate registrations when invoked repeatedly.
//
// Deprecated: Use SetRegisterer instead for better test isolation.
func ResetForTesting(registerer prometheus.Registerer) {
	resetMetrics(registerer)
}

func resetMetrics(registerer prometheus.Registerer) {
	metricsMu.Lock()
	defer metricsMu.Unlock()

	if currentRegisterer != nil {
		unregisterAll(currentRegisterer)
	}

	currentRegisterer = registerer
	initializeMetrics(registerer)
}

// initializeMetrics creates all metrics using the provided registerer.
// This function must be called while holding metricsMu.
func initializeMetrics(registerer prometheus.Registerer) {
	factory := promauto.With(registerer)

	AnalysesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "analyses_total",
			Help: "Total number of analysis runs",
		},
	)

	AnalysisDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_duration_seconds",
			Help:    "Time taken to run the full test battery",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
	)

	InputBitsAnalyzed = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "input_bits_analyzed_total",
			Help: "Total number of input bits fed to the test battery",
		},
	)

	GeneratedBits = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "generated_bits_total",
			Help: "Total number of bits produced by the built-in generator",
		},
	)

	TestsExecuted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tests_executed_total",
			Help: "Total number of statistical test executions",
		},
		[]string{"test"},
	)

	TestFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_failures_total",
			Help: "Total number of statistical test failures",
		},
		[]string{"test"},
	)

	TestPValues = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "test_p_values",
			Help:    "Distribution of p-values produced by the test battery",
			Buckets: prometheus.LinearBuckets(0.0, 0.05, 21),
		},
	)

	SuitePassRate = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "suite_pass_rate",
			Help: "Pass rate of the most recent analysis run (0.0-1.0)",
		},
	)

	CAGenerations = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "ca_generations_total",
			Help: "Total number of cellular automaton generations computed",
		},
	)

	CACellUpdates = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "ca_cell_updates_total",
			Help: "Total number of cell state updates across all generations",
		},
	)

	CAProcessDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ca_process_duration_seconds",
			Help:    "Time taken to run a cellular automaton transformation",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		},
	)

	CACustomRuleFailures = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "ca_custom_rule_failures_total",
			Help: "Total number of cellular automaton custom rule errors",
		},
	)

	DispatchTier = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "simd_dispatch_tier",
			Help: "Active SIMD dispatch tier (1 for the selected tier, 0 otherwise)",
		},
		[]string{"tier"},
	)
}

func unregisterAll(registerer prometheus.Registerer) {
	if AnalysesTotal != nil {
		registerer.Unregister(AnalysesTotal)
	}
	if AnalysisDuration != nil {
		registerer.Unregister(AnalysisDuration)
	}
	if InputBitsAnalyzed != nil {
		registerer.Unregister(InputBitsAnalyzed)
	}
	if GeneratedBits != nil {
		registerer.Unregister(GeneratedBits)
	}
	if TestsExecuted != nil {
		registerer.Unregister(TestsExecuted)
	}
	if TestFailures != nil {
		registerer.Unregister(TestFailures)
	}
	if TestPValues != nil {
		registerer.Unregister(TestPValues)
	}
	if SuitePassRate != nil {
		registerer.Unregister(SuitePassRate)
	}
	if CAGenerations != nil {
		registerer.Unregister(CAGenerations)
	}
	if CACellUpdates != nil {
		registerer.Unregister(CACellUpdates)
	}
	if CAProcessDuration != nil {
		registerer.Unregister(CAProcessDuration)
	}
	if CACustomRuleFailures != nil {
		registerer.Unregister(CACustomRuleFailures)
	}
	if DispatchTier != nil {
		registerer.Unregister(DispatchTier)
	}
}

// RecordAnalysis records one completed analysis run.
func RecordAnalysis(inputBits int, duration time.Duration, passRate float64) {
	AnalysesTotal.Inc()
	if inputBits > 0 {
		InputBitsAnalyzed.Add(float64(inputBits))
	}
	if duration < 0 {
		duration = 0
	}
	AnalysisDuration.Observe(duration.Seconds())

	// Clamp to valid range [0.0, 1.0]
	if passRate < 0 {
		passRate = 0
	} else if passRate > 1 {
		passRate = 1
	}
	SuitePassRate.Set(passRate)
}

// RecordTestResult records a single statistical test execution.
func RecordTestResult(test string, pValue float64, passed bool) {
	TestsExecuted.WithLabelValues(test).Inc()
	TestPValues.Observe(pValue)
	if !passed {
		TestFailures.WithLabelValues(test).Inc()
	}
}

// RecordGeneratedBits tracks output of the built-in sequence generator.
func RecordGeneratedBits(bits int) {
	if bits > 0 {
		GeneratedBits.Add(float64(bits))
	}
}

// RecordCAProcess records one cellular automaton transformation.
func RecordCAProcess(generations, cells int, duration time.Duration) {
	if generations > 0 {
		CAGenerations.Add(float64(generations))
		if cells > 0 {
			CACellUpdates.Add(float64(generations) * float64(cells))
		}
	}
	if duration < 0 {
		duration = 0
	}
	CAProcessDuration.Observe(duration.Seconds())
}

// RecordCACustomRuleFailure increments the custom rule failure counter.
func RecordCACustomRuleFailure() {
	CACustomRuleFailures.Inc()
}

// SetDispatchTier publishes the active SIMD tier. All known tiers are
// reset to zero so a tier change never leaves two tiers marked active.
func SetDispatchTier(active string) {
	for _, tier := range []string{"scalar", "sse2", "avx2", "avx512", "neon"} {
		value := 0.0
		if tier == active {
			value = 1.0
		}
		DispatchTier.WithLabelValues(tier).Set(value)
	}
}
