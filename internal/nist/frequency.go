package nist

import (
	"math"

	"entropy-ca-analyzer/internal/bitseq"
)

// FrequencyTest is the NIST Frequency (Monobit) Test. It checks that the
// counts of zeros and ones are approximately equal, as expected of a
// random sequence.
type FrequencyTest struct {
	base
}

// NewFrequencyTest creates a frequency test with the default significance
// level.
func NewFrequencyTest() *FrequencyTest {
	return &FrequencyTest{base: newBase()}
}

// Name implements the Test interface.
func (t *FrequencyTest) Name() string {
	return "Frequency (Monobit) Test"
}

// MinimumLength implements the Test interface.
func (t *FrequencyTest) MinimumLength() int {
	return 100
}

// Execute implements the Test interface.
func (t *FrequencyTest) Execute(data *bitseq.BitSequence) TestResult {
	n := data.Size()
	if n < t.MinimumLength() {
		return insufficientData(t.Name())
	}

	ones := data.CountOnes()
	sum := 2.0*float64(ones) - float64(n)
	sObs := math.Abs(sum) / math.Sqrt(float64(n))
	pValue := clampP(math.Erfc(sObs / math.Sqrt2))

	return TestResult{
		Name:   t.Name(),
		PValue: pValue,
		Passed: t.passed(pValue),
		Metrics: map[string]float64{
			"ones_count":  float64(ones),
			"zeros_count": float64(n - ones),
			"bias":        float64(ones) / float64(n),
		},
	}
}

// BlockFrequencyTest is the NIST Block Frequency Test. It splits the
// sequence into fixed-size blocks and checks that the proportion of ones
// within each block is close to one half.
type BlockFrequencyTest struct {
	base
	blockSize int
}

// DefaultBlockSize is the block length used when none is configured.
const DefaultBlockSize = 128

// NewBlockFrequencyTest creates a block frequency test. Non-positive
// block sizes fall back to DefaultBlockSize.
func NewBlockFrequencyTest(blockSize int) *BlockFrequencyTest {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &BlockFrequencyTest{base: newBase(), blockSize: blockSize}
}

// Name implements the Test interface.
func (t *BlockFrequencyTest) Name() string {
	return "Block Frequency Test"
}

// MinimumLength implements the Test interface.
func (t *BlockFrequencyTest) MinimumLength() int {
	return 100
}

// BlockSize returns the configured block length.
func (t *BlockFrequencyTest) BlockSize() int {
	return t.blockSize
}

// Execute implements the Test interface.
func (t *BlockFrequencyTest) Execute(data *bitseq.BitSequence) TestResult {
	n := data.Size()
	if n < t.MinimumLength() {
		return insufficientData(t.Name())
	}

	numBlocks := n / t.blockSize
	if numBlocks == 0 {
		return TestResult{
			Name:    t.Name(),
			PValue:  0,
			Passed:  false,
			Metrics: map[string]float64{"error": 2},
		}
	}

	chiSquared := 0.0
	for i := 0; i < numBlocks; i++ {
		start := i * t.blockSize
		ones := 0
		for j := 0; j < t.blockSize; j++ {
			if data.Bit(start + j) {
				ones++
			}
		}
		v := float64(ones)/float64(t.blockSize) - 0.5
		chiSquared += 4.0 * float64(t.blockSize) * v * v
	}

	pValue := chiSquaredP(chiSquared, float64(numBlocks))
	return TestResult{
		Name:   t.Name(),
		PValue: pValue,
		Passed: t.passed(pValue),
		Metrics: map[string]float64{
			"block_size":  float64(t.blockSize),
			"num_blocks":  float64(numBlocks),
			"chi_squared": chiSquared,
		},
	}
}
