package nist

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"entropy-ca-analyzer/internal/bitseq"
)

// Suite runs an ordered collection of statistical tests with a shared
// significance level.
type Suite struct {
	tests []Test
	alpha float64
}

// NewSuite creates an empty suite with the default significance level.
func NewSuite() *Suite {
	return &Suite{alpha: DefaultAlpha}
}

// NewStandardSuite creates a suite preloaded with the full test battery
// using default parameters.
func NewStandardSuite() *Suite {
	s := NewSuite()
	s.AddTest(NewFrequencyTest())
	s.AddTest(NewBlockFrequencyTest(DefaultBlockSize))
	s.AddTest(NewRunsTest())
	s.AddTest(NewLongestRunTest())
	s.AddTest(NewDFTTest())
	s.AddTest(NewNonOverlappingTemplateTest(DefaultTemplateLength, DefaultNonOverlappingBlockSize))
	s.AddTest(NewOverlappingTemplateTest(nil, DefaultOverlappingBlockSize))
	return s
}

// AddTest appends a test to the suite and applies the suite's significance
// level to it.
func (s *Suite) AddTest(t Test) {
	// The suite alpha is always valid, so SetAlpha cannot fail here.
	_ = t.SetAlpha(s.alpha)
	s.tests = append(s.tests, t)
}

// SetAlpha changes the significance level for the suite and every test
// already added. Values outside (0, 1) are rejected and leave the suite
// unchanged.
func (s *Suite) SetAlpha(alpha float64) error {
	if alpha <= 0 || alpha >= 1 {
		return fmt.Errorf("nist: alpha must be between 0 and 1, got %v", alpha)
	}
	s.alpha = alpha
	for _, t := range s.tests {
		if err := t.SetAlpha(alpha); err != nil {
			return err
		}
	}
	return nil
}

// Alpha returns the suite's significance level.
func (s *Suite) Alpha() float64 {
	return s.alpha
}

// Tests returns the tests in configuration order.
func (s *Suite) Tests() []Test {
	return s.tests
}

// RunTests executes every test against the sequence and returns one result
// per test, in the order the tests were added. Tests that cannot run on
// the given sequence report through their error metric; the suite never
// skips or aborts.
func (s *Suite) RunTests(data *bitseq.BitSequence) []TestResult {
	results := make([]TestResult, 0, len(s.tests))
	for _, t := range s.tests {
		results = append(results, t.Execute(data))
	}
	return results
}

// RunTestsBytes is a convenience wrapper over RunTests for raw byte input.
func (s *Suite) RunTestsBytes(data []byte) []TestResult {
	return s.RunTests(bitseq.FromBytes(data))
}

// Summary aggregates a batch of test results.
type Summary struct {
	Total        int
	Passed       int
	PassRate     float64
	MeanPValue   float64
	MedianPValue float64
}

// Summarize computes aggregate statistics over a set of results. An empty
// input yields a zero summary.
func Summarize(results []TestResult) Summary {
	if len(results) == 0 {
		return Summary{}
	}

	pValues := make([]float64, 0, len(results))
	passed := 0
	for _, r := range results {
		pValues = append(pValues, r.PValue)
		if r.Passed {
			passed++
		}
	}

	// stats errors only on empty input, which is excluded above.
	mean, _ := stats.Mean(pValues)
	median, _ := stats.Median(pValues)

	return Summary{
		Total:        len(results),
		Passed:       passed,
		PassRate:     float64(passed) / float64(len(results)),
		MeanPValue:   mean,
		MedianPValue: median,
	}
}
