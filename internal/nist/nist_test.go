package nist

import (
	"math"
	"testing"

	"entropy-ca-analyzer/internal/bitseq"
)

// alternating returns a 0101... sequence of n bits.
func alternating(n int) *bitseq.BitSequence {
	seq := bitseq.New(n)
	for i := 1; i < n; i += 2 {
		seq.SetBit(i, true)
	}
	return seq
}

// halfOnes returns an n-bit sequence whose first half is all ones.
func halfOnes(n int) *bitseq.BitSequence {
	seq := bitseq.New(n)
	for i := 0; i < n/2; i++ {
		seq.SetBit(i, true)
	}
	return seq
}

// allOnes returns an n-bit sequence of ones.
func allOnes(n int) *bitseq.BitSequence {
	seq := bitseq.New(n)
	for i := 0; i < n; i++ {
		seq.SetBit(i, true)
	}
	return seq
}

func TestChiSquaredPKnownValue(t *testing.T) {
	t.Parallel()

	// With two degrees of freedom the approximation reduces to
	// exp(-chi/2).
	got := chiSquaredP(2.0, 2)
	want := math.Exp(-1)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("chiSquaredP(2, 2) = %v, want %v", got, want)
	}

	if p := chiSquaredP(0, 4); p != 0 {
		t.Fatalf("chiSquaredP(0, 4) = %v, want 0", p)
	}
}

func TestFrequencyBalancedSequencePasses(t *testing.T) {
	t.Parallel()

	result := NewFrequencyTest().Execute(halfOnes(128))
	if result.PValue != 1.0 {
		t.Fatalf("PValue = %v, want 1 for perfectly balanced input", result.PValue)
	}
	if !result.Passed {
		t.Fatal("balanced sequence failed the frequency test")
	}
	if result.Metrics["ones_count"] != 64 || result.Metrics["zeros_count"] != 64 {
		t.Fatalf("counts = %v/%v, want 64/64",
			result.Metrics["ones_count"], result.Metrics["zeros_count"])
	}
}

func TestFrequencyAllZerosFails(t *testing.T) {
	t.Parallel()

	result := NewFrequencyTest().Execute(bitseq.New(128))
	if result.Passed {
		t.Fatal("all-zero sequence passed the frequency test")
	}
	if result.PValue > 1e-9 {
		t.Fatalf("PValue = %v, want near zero", result.PValue)
	}
	if result.Metrics["bias"] != 0 {
		t.Fatalf("bias = %v, want 0", result.Metrics["bias"])
	}
}

func TestFrequencyInsufficientData(t *testing.T) {
	t.Parallel()

	result := NewFrequencyTest().Execute(bitseq.New(99))
	if result.Passed || result.PValue != 0 {
		t.Fatalf("undersized input: passed=%v p=%v, want failed with p=0", result.Passed, result.PValue)
	}
	if result.Metrics["error"] != 1 {
		t.Fatalf("error metric = %v, want 1", result.Metrics["error"])
	}
}

func TestBlockFrequencyBlockCount(t *testing.T) {
	t.Parallel()

	result := NewBlockFrequencyTest(128).Execute(halfOnes(1024))
	if got := result.Metrics["num_blocks"]; got != 8 {
		t.Fatalf("num_blocks = %v, want 8", got)
	}
	if got := result.Metrics["block_size"]; got != 128 {
		t.Fatalf("block_size = %v, want 128", got)
	}
}

func TestBlockFrequencyZeroBlocksReported(t *testing.T) {
	t.Parallel()

	// 128 bits clear the 100-bit minimum but form zero complete blocks
	// at block size 256.
	result := NewBlockFrequencyTest(256).Execute(halfOnes(128))
	if result.Passed {
		t.Fatal("zero-block input passed")
	}
	if result.Metrics["error"] != 2 {
		t.Fatalf("error metric = %v, want 2", result.Metrics["error"])
	}
}

func TestBlockFrequencyExtremeBlocksFail(t *testing.T) {
	t.Parallel()

	// First half all ones, second half all zeros: every block is
	// maximally biased, chi-squared is 4*M per block.
	result := NewBlockFrequencyTest(128).Execute(halfOnes(1024))
	if result.Passed {
		t.Fatal("maximally biased blocks passed")
	}
	wantChi := 4.0 * 128 * 0.25 * 8
	if math.Abs(result.Metrics["chi_squared"]-wantChi) > 1e-9 {
		t.Fatalf("chi_squared = %v, want %v", result.Metrics["chi_squared"], wantChi)
	}
}

func TestRunsAlternatingSequenceFails(t *testing.T) {
	t.Parallel()

	// A strictly alternating sequence has the maximum possible number
	// of runs; its p-value collapses to zero.
	result := NewRunsTest().Execute(alternating(1024))
	if result.Passed {
		t.Fatal("alternating sequence passed the runs test")
	}
	if result.PValue > 1e-9 {
		t.Fatalf("PValue = %v, want near zero", result.PValue)
	}
	if got := result.Metrics["runs_count"]; got != 1024 {
		t.Fatalf("runs_count = %v, want 1024", got)
	}
}

func TestRunsPreconditionFailureReported(t *testing.T) {
	t.Parallel()

	// All ones: pi deviates from 0.5 far beyond 2/sqrt(n), so the test
	// reports the precondition failure without computing the statistic.
	result := NewRunsTest().Execute(allOnes(256))
	if result.Passed || result.PValue != 0 {
		t.Fatalf("precondition failure: passed=%v p=%v", result.Passed, result.PValue)
	}
	if result.Metrics["error"] != 2 {
		t.Fatalf("error metric = %v, want 2", result.Metrics["error"])
	}
	if result.Metrics["pi"] != 1.0 {
		t.Fatalf("pi metric = %v, want 1", result.Metrics["pi"])
	}
}

func TestLongestRunRegimeSelection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		bits      int
		blockSize float64
	}{
		{"short regime", 256, 8},
		{"medium regime", 6272, 128},
		{"long regime", 750000, 10000},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := NewLongestRunTest().Execute(alternating(tc.bits))
			if got := result.Metrics["block_size"]; got != tc.blockSize {
				t.Fatalf("block_size = %v, want %v", got, tc.blockSize)
			}
		})
	}
}

func TestLongestRunBinsOverlongRuns(t *testing.T) {
	t.Parallel()

	// All ones in the short regime: every 8-bit block has a run of 8,
	// beyond the top bound of 3, so everything lands in the open-ended
	// bin and the statistic blows up.
	result := NewLongestRunTest().Execute(allOnes(256))
	if result.Passed {
		t.Fatal("all-ones sequence passed the longest run test")
	}

	// 32 blocks, all in the top bin (probability 0.1875).
	numBlocks := 32.0
	wantChi := 0.0
	probs := []float64{0.21484375, 0.3671875, 0.23046875, 0.1875}
	for i, p := range probs {
		expected := numBlocks * p
		observed := 0.0
		if i == len(probs)-1 {
			observed = numBlocks
		}
		diff := observed - expected
		wantChi += diff * diff / expected
	}
	if math.Abs(result.Metrics["chi_squared"]-wantChi) > 1e-9 {
		t.Fatalf("chi_squared = %v, want %v", result.Metrics["chi_squared"], wantChi)
	}
}

func TestLongestRunInsufficientData(t *testing.T) {
	t.Parallel()

	result := NewLongestRunTest().Execute(bitseq.New(127))
	if result.Metrics["error"] != 1 {
		t.Fatalf("error metric = %v, want 1", result.Metrics["error"])
	}
}

func TestDFTAlternatingSequenceFails(t *testing.T) {
	t.Parallel()

	// A strictly alternating sequence concentrates all spectral energy
	// at the Nyquist frequency; every retained coefficient sits below
	// the threshold and the excess is detected.
	result := NewDFTTest().Execute(alternating(1024))
	if result.Passed {
		t.Fatal("alternating sequence passed the spectral test")
	}
	if got := result.Metrics["frequencies_below_threshold"]; got != 512 {
		t.Fatalf("frequencies_below_threshold = %v, want 512", got)
	}
}

func TestDFTInsufficientData(t *testing.T) {
	t.Parallel()

	result := NewDFTTest().Execute(alternating(999))
	if result.Metrics["error"] != 1 {
		t.Fatalf("error metric = %v, want 1", result.Metrics["error"])
	}
}

func TestNonOverlappingScanDoesNotDoubleCount(t *testing.T) {
	t.Parallel()

	// All ones with template 11 and block size 10: a naive overlapping
	// scan would find nine matches per block, the non-overlapping scan
	// finds exactly five. Pin the behavior through the chi-squared
	// statistic, which is fully determined by the per-block count.
	test := NewNonOverlappingTemplateTest(2, 10)
	if err := test.SetTemplates([][]bool{{true, true}}); err != nil {
		t.Fatalf("SetTemplates() error: %v", err)
	}

	result := test.Execute(allOnes(1000))

	mu := (10.0 - 2.0 + 1.0) / 4.0
	sigmaSquared := 10.0 * 0.25 * 0.75
	perBlock := (5.0 - mu) * (5.0 - mu) / sigmaSquared
	wantChi := 100.0 * perBlock
	if math.Abs(result.Metrics["chi_squared"]-wantChi) > 1e-9 {
		t.Fatalf("chi_squared = %v, want %v (five non-overlapping matches per block)",
			result.Metrics["chi_squared"], wantChi)
	}
}

func TestNonOverlappingSetTemplatesValidation(t *testing.T) {
	t.Parallel()

	test := NewNonOverlappingTemplateTest(0, 0)
	if err := test.SetTemplates(nil); err == nil {
		t.Fatal("SetTemplates(nil) did not error")
	}
	if err := test.SetTemplates([][]bool{{true, false}, {true}}); err == nil {
		t.Fatal("SetTemplates with mismatched lengths did not error")
	}
	if err := test.SetTemplates([][]bool{{true, false, true}}); err != nil {
		t.Fatalf("SetTemplates with valid input errored: %v", err)
	}
	if test.MinimumLength() != DefaultNonOverlappingBlockSize*100 {
		t.Fatalf("MinimumLength() = %d, want %d", test.MinimumLength(), DefaultNonOverlappingBlockSize*100)
	}
}

func TestNonOverlappingInsufficientData(t *testing.T) {
	t.Parallel()

	test := NewNonOverlappingTemplateTest(9, 968)
	result := test.Execute(bitseq.New(1000))
	if result.Metrics["error"] != 1 {
		t.Fatalf("error metric = %v, want 1", result.Metrics["error"])
	}
}

func TestOverlappingTemplateCountsOverlaps(t *testing.T) {
	t.Parallel()

	// All ones with template 11 and block size 10: overlapping matches
	// per block are nine, beyond category five, so every block lands in
	// the top category.
	test := NewOverlappingTemplateTest([]bool{true, true}, 10)
	result := test.Execute(allOnes(1000))

	if result.Passed {
		t.Fatal("all-ones sequence passed the overlapping template test")
	}
	if got := result.Metrics["num_blocks"]; got != 100 {
		t.Fatalf("num_blocks = %v, want 100", got)
	}
	wantLambda := 9.0 / 4.0
	if math.Abs(result.Metrics["lambda"]-wantLambda) > 1e-12 {
		t.Fatalf("lambda = %v, want %v", result.Metrics["lambda"], wantLambda)
	}
}

func TestOverlappingSetTemplateValidation(t *testing.T) {
	t.Parallel()

	test := NewOverlappingTemplateTest(nil, 0)
	if err := test.SetTemplate(nil); err == nil {
		t.Fatal("SetTemplate(nil) did not error")
	}
	if err := test.SetTemplate([]bool{true, false}); err != nil {
		t.Fatalf("SetTemplate with valid input errored: %v", err)
	}
}

func TestSuiteRunsAllTestsInOrder(t *testing.T) {
	t.Parallel()

	suite := NewStandardSuite()
	// 2048 bits clears every minimum except the template tests'
	// block-size-times-100 requirement, so the last two results must
	// carry the insufficient-data metric.
	results := suite.RunTests(halfOnes(2048))

	wantNames := []string{
		"Frequency (Monobit) Test",
		"Block Frequency Test",
		"Runs Test",
		"Longest Run of Ones Test",
		"Discrete Fourier Transform (Spectral) Test",
		"Non-overlapping Template Matching Test",
		"Overlapping Template Matching Test",
	}
	if len(results) != len(wantNames) {
		t.Fatalf("RunTests returned %d results, want %d", len(results), len(wantNames))
	}
	for i, want := range wantNames {
		if results[i].Name != want {
			t.Fatalf("result %d name = %q, want %q", i, results[i].Name, want)
		}
	}

	// The undersized template tests must report, not vanish.
	for _, i := range []int{5, 6} {
		if results[i].Metrics["error"] != 1 {
			t.Fatalf("%s: error metric = %v, want 1", results[i].Name, results[i].Metrics["error"])
		}
	}
}

func TestSuiteSetAlpha(t *testing.T) {
	t.Parallel()

	suite := NewSuite()
	if err := suite.SetAlpha(0); err == nil {
		t.Fatal("SetAlpha(0) did not error")
	}
	if err := suite.SetAlpha(1); err == nil {
		t.Fatal("SetAlpha(1) did not error")
	}
	if err := suite.SetAlpha(0.05); err != nil {
		t.Fatalf("SetAlpha(0.05) errored: %v", err)
	}
	if suite.Alpha() != 0.05 {
		t.Fatalf("Alpha() = %v, want 0.05", suite.Alpha())
	}
}

func TestTestSetAlphaValidation(t *testing.T) {
	t.Parallel()

	test := NewFrequencyTest()
	if err := test.SetAlpha(-0.1); err == nil {
		t.Fatal("SetAlpha(-0.1) did not error")
	}
	if err := test.SetAlpha(0.2); err != nil {
		t.Fatalf("SetAlpha(0.2) errored: %v", err)
	}
}

func TestAddTestAppliesSuiteAlpha(t *testing.T) {
	t.Parallel()

	suite := NewSuite()
	if err := suite.SetAlpha(0.5); err != nil {
		t.Fatalf("SetAlpha() error: %v", err)
	}

	test := NewFrequencyTest()
	suite.AddTest(test)
	if test.alpha != 0.5 {
		t.Fatalf("test alpha = %v, want 0.5 applied by AddTest", test.alpha)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	results := []TestResult{
		{Name: "a", PValue: 0.2, Passed: true},
		{Name: "b", PValue: 0.6, Passed: true},
		{Name: "c", PValue: 0.001, Passed: false},
	}
	summary := Summarize(results)

	if summary.Total != 3 || summary.Passed != 2 {
		t.Fatalf("Total/Passed = %d/%d, want 3/2", summary.Total, summary.Passed)
	}
	if math.Abs(summary.PassRate-2.0/3.0) > 1e-12 {
		t.Fatalf("PassRate = %v, want 2/3", summary.PassRate)
	}
	wantMean := (0.2 + 0.6 + 0.001) / 3.0
	if math.Abs(summary.MeanPValue-wantMean) > 1e-12 {
		t.Fatalf("MeanPValue = %v, want %v", summary.MeanPValue, wantMean)
	}
	if summary.MedianPValue != 0.2 {
		t.Fatalf("MedianPValue = %v, want 0.2", summary.MedianPValue)
	}

	if empty := Summarize(nil); empty.Total != 0 || empty.PassRate != 0 {
		t.Fatalf("Summarize(nil) = %+v, want zero summary", empty)
	}
}
