package nist

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"entropy-ca-analyzer/internal/bitseq"
)

// DFTTest is the NIST Discrete Fourier Transform (Spectral) Test. It looks
// for periodic features in the sequence by checking how many Fourier
// coefficient magnitudes stay below the 95% threshold expected under
// randomness.
type DFTTest struct {
	base
}

// NewDFTTest creates a spectral test with the default significance level.
func NewDFTTest() *DFTTest {
	return &DFTTest{base: newBase()}
}

// Name implements the Test interface.
func (t *DFTTest) Name() string {
	return "Discrete Fourier Transform (Spectral) Test"
}

// MinimumLength implements the Test interface.
func (t *DFTTest) MinimumLength() int {
	return 1000
}

// Execute implements the Test interface.
func (t *DFTTest) Execute(data *bitseq.BitSequence) TestResult {
	n := data.Size()
	if n < t.MinimumLength() {
		return insufficientData(t.Name())
	}

	// Map bits to +1/-1 before transforming.
	x := make([]float64, n)
	for i := 0; i < n; i++ {
		if data.Bit(i) {
			x[i] = 1.0
		} else {
			x[i] = -1.0
		}
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, x)

	// Only the first n/2 coefficients carry independent information for
	// a real-valued input.
	threshold := math.Sqrt(math.Log(1.0/0.05) * float64(n))
	below := 0
	for i := 0; i < n/2; i++ {
		if cmplx.Abs(coeffs[i]) < threshold {
			below++
		}
	}

	expected := 0.95 * float64(n) / 2.0
	d := (float64(below) - expected) / math.Sqrt(float64(n)*0.95*0.05/4.0)
	pValue := clampP(math.Erfc(math.Abs(d) / math.Sqrt2))

	return TestResult{
		Name:   t.Name(),
		PValue: pValue,
		Passed: t.passed(pValue),
		Metrics: map[string]float64{
			"threshold":                   threshold,
			"frequencies_below_threshold": float64(below),
			"expected_below_threshold":    expected,
			"d_statistic":                 d,
		},
	}
}
