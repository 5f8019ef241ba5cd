package nist

import (
	"math"

	"entropy-ca-analyzer/internal/bitseq"
)

// RunsTest is the NIST Runs Test. It counts uninterrupted sequences of
// identical bits and compares the total against the count expected of a
// random sequence with the observed bias.
type RunsTest struct {
	base
}

// NewRunsTest creates a runs test with the default significance level.
func NewRunsTest() *RunsTest {
	return &RunsTest{base: newBase()}
}

// Name implements the Test interface.
func (t *RunsTest) Name() string {
	return "Runs Test"
}

// MinimumLength implements the Test interface.
func (t *RunsTest) MinimumLength() int {
	return 100
}

// Execute implements the Test interface. The runs statistic is only
// meaningful when the sequence is roughly balanced; a proportion of ones
// deviating from one half by 2/sqrt(n) or more is reported as a failed
// precondition (error metric 2) without computing the statistic.
func (t *RunsTest) Execute(data *bitseq.BitSequence) TestResult {
	n := data.Size()
	if n < t.MinimumLength() {
		return insufficientData(t.Name())
	}

	pi := float64(data.CountOnes()) / float64(n)
	if math.Abs(pi-0.5) >= 2.0/math.Sqrt(float64(n)) {
		return TestResult{
			Name:   t.Name(),
			PValue: 0,
			Passed: false,
			Metrics: map[string]float64{
				"error": 2,
				"pi":    pi,
			},
		}
	}

	runs := 1
	prev := data.Bit(0)
	for i := 1; i < n; i++ {
		cur := data.Bit(i)
		if cur != prev {
			runs++
			prev = cur
		}
	}

	expected := 2.0 * float64(n) * pi * (1.0 - pi)
	stdDev := math.Sqrt(2.0 * float64(n) * pi * (1.0 - pi) * (1.0 - pi*(1.0-pi)))
	z := (float64(runs) - expected) / stdDev
	pValue := clampP(math.Erfc(math.Abs(z) / math.Sqrt2))

	return TestResult{
		Name:   t.Name(),
		PValue: pValue,
		Passed: t.passed(pValue),
		Metrics: map[string]float64{
			"pi":            pi,
			"runs_count":    float64(runs),
			"expected_runs": expected,
			"z_score":       z,
		},
	}
}

// longestRunRegime holds the block length, bin bounds and theoretical bin
// probabilities for one input-length regime of the longest run test. The
// tables come from NIST SP 800-22 section 2.4.
type longestRunRegime struct {
	blockSize int
	bounds    []int
	probs     []float64
}

var longestRunRegimes = []struct {
	maxLength int
	regime    longestRunRegime
}{
	{6272, longestRunRegime{
		blockSize: 8,
		bounds:    []int{1, 2, 3},
		probs:     []float64{0.21484375, 0.3671875, 0.23046875, 0.1875},
	}},
	{750000, longestRunRegime{
		blockSize: 128,
		bounds:    []int{4, 5, 6, 7, 8},
		probs:     []float64{0.1174, 0.2430, 0.2493, 0.1752, 0.1027, 0.1124},
	}},
	{math.MaxInt, longestRunRegime{
		blockSize: 10000,
		bounds:    []int{10, 11, 12, 13, 14, 15},
		probs:     []float64{0.0882, 0.2092, 0.2483, 0.1933, 0.1208, 0.0675, 0.0727},
	}},
}

// LongestRunTest is the NIST Longest Run of Ones Test. It divides the
// sequence into blocks, finds the longest run of ones in each, and checks
// the distribution of those lengths against theoretical frequencies.
type LongestRunTest struct {
	base
}

// NewLongestRunTest creates a longest-run test with the default
// significance level.
func NewLongestRunTest() *LongestRunTest {
	return &LongestRunTest{base: newBase()}
}

// Name implements the Test interface.
func (t *LongestRunTest) Name() string {
	return "Longest Run of Ones Test"
}

// MinimumLength implements the Test interface.
func (t *LongestRunTest) MinimumLength() int {
	return 128
}

// Execute implements the Test interface.
func (t *LongestRunTest) Execute(data *bitseq.BitSequence) TestResult {
	n := data.Size()
	if n < t.MinimumLength() {
		return insufficientData(t.Name())
	}

	var regime longestRunRegime
	for _, r := range longestRunRegimes {
		if n < r.maxLength {
			regime = r.regime
			break
		}
	}

	k := len(regime.bounds)
	numBlocks := n / regime.blockSize
	frequencies := make([]int, k+1)

	for i := 0; i < numBlocks; i++ {
		start := i * regime.blockSize
		longest, current := 0, 0
		for j := 0; j < regime.blockSize; j++ {
			if data.Bit(start + j) {
				current++
				if current > longest {
					longest = current
				}
			} else {
				current = 0
			}
		}

		// Runs longer than every bound land in the open-ended top bin.
		index := k
		for j, bound := range regime.bounds {
			if longest <= bound {
				index = j
				break
			}
		}
		frequencies[index]++
	}

	chiSquared := 0.0
	for i := 0; i <= k; i++ {
		expected := float64(numBlocks) * regime.probs[i]
		diff := float64(frequencies[i]) - expected
		chiSquared += diff * diff / expected
	}

	pValue := chiSquaredP(chiSquared, float64(k))
	return TestResult{
		Name:   t.Name(),
		PValue: pValue,
		Passed: t.passed(pValue),
		Metrics: map[string]float64{
			"block_size":  float64(regime.blockSize),
			"num_blocks":  float64(numBlocks),
			"chi_squared": chiSquared,
		},
	}
}
