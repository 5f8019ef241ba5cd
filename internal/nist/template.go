package nist

import (
	"errors"
	"math"

	"entropy-ca-analyzer/internal/bitseq"
)

// Default template parameters shared by the two template matching tests.
const (
	DefaultTemplateLength = 9
	// DefaultNonOverlappingBlockSize follows the SP 800-22 example
	// parameterization for length-9 templates.
	DefaultNonOverlappingBlockSize = 968
	DefaultOverlappingBlockSize    = 1032
)

// NonOverlappingTemplateTest is the NIST Non-overlapping Template Matching
// Test. It counts non-overlapping occurrences of a template pattern within
// fixed-size blocks; after a match the scan resumes past the matched bits,
// so abutting occurrences are never double counted.
type NonOverlappingTemplateTest struct {
	base
	templates      [][]bool
	templateLength int
	blockSize      int
}

// NewNonOverlappingTemplateTest creates a non-overlapping template test.
// Non-positive parameters fall back to the defaults. The initial template
// set enumerates every pattern of the given length; Execute scans with
// the first one.
func NewNonOverlappingTemplateTest(templateLength, blockSize int) *NonOverlappingTemplateTest {
	if templateLength <= 0 {
		templateLength = DefaultTemplateLength
	}
	if blockSize <= 0 {
		blockSize = DefaultNonOverlappingBlockSize
	}
	t := &NonOverlappingTemplateTest{
		base:           newBase(),
		templateLength: templateLength,
		blockSize:      blockSize,
	}
	t.initializeTemplates()
	return t
}

// initializeTemplates enumerates all patterns of the configured length,
// least significant bit first.
func (t *NonOverlappingTemplateTest) initializeTemplates() {
	count := 1 << uint(t.templateLength)
	t.templates = make([][]bool, 0, count)
	for i := 0; i < count; i++ {
		pattern := make([]bool, t.templateLength)
		for j := 0; j < t.templateLength; j++ {
			pattern[j] = (i>>uint(j))&1 == 1
		}
		t.templates = append(t.templates, pattern)
	}
}

// SetTemplates replaces the template set. The set must be non-empty and
// all templates must share the same length.
func (t *NonOverlappingTemplateTest) SetTemplates(templates [][]bool) error {
	if len(templates) == 0 {
		return errors.New("nist: templates cannot be empty")
	}
	length := len(templates[0])
	if length == 0 {
		return errors.New("nist: templates cannot be empty")
	}
	for _, tmpl := range templates {
		if len(tmpl) != length {
			return errors.New("nist: all templates must have the same length")
		}
	}
	t.templates = templates
	t.templateLength = length
	return nil
}

// Name implements the Test interface.
func (t *NonOverlappingTemplateTest) Name() string {
	return "Non-overlapping Template Matching Test"
}

// MinimumLength implements the Test interface.
func (t *NonOverlappingTemplateTest) MinimumLength() int {
	return t.blockSize * 100
}

// Execute implements the Test interface.
func (t *NonOverlappingTemplateTest) Execute(data *bitseq.BitSequence) TestResult {
	n := data.Size()
	if n < t.MinimumLength() {
		return insufficientData(t.Name())
	}

	template := t.templates[0]
	m := t.templateLength
	numBlocks := n / t.blockSize

	counts := make([]int, numBlocks)
	for i := 0; i < numBlocks; i++ {
		start := i * t.blockSize
		for j := 0; j <= t.blockSize-m; j++ {
			match := true
			for k := 0; k < m && match; k++ {
				if data.Bit(start+j+k) != template[k] {
					match = false
				}
			}
			if match {
				counts[i]++
				// Resume past the match so occurrences never overlap.
				j += m - 1
			}
		}
	}

	twoPowM := math.Pow(2.0, float64(m))
	mu := float64(t.blockSize-m+1) / twoPowM
	sigmaSquared := float64(t.blockSize) * (1.0 / twoPowM) * (1.0 - 1.0/twoPowM)

	chiSquared := 0.0
	for _, w := range counts {
		diff := float64(w) - mu
		chiSquared += diff * diff / sigmaSquared
	}

	pValue := chiSquaredP(chiSquared, float64(numBlocks))
	return TestResult{
		Name:   t.Name(),
		PValue: pValue,
		Passed: t.passed(pValue),
		Metrics: map[string]float64{
			"template_length":            float64(m),
			"block_size":                 float64(t.blockSize),
			"num_blocks":                 float64(numBlocks),
			"expected_matches_per_block": mu,
			"chi_squared":                chiSquared,
		},
	}
}

// OverlappingTemplateTest is the NIST Overlapping Template Matching Test.
// It counts occurrences of a template within fixed-size blocks, allowing
// matches to overlap, and compares the per-block match counts against a
// Poisson-derived category distribution.
type OverlappingTemplateTest struct {
	base
	template  []bool
	blockSize int
}

// NewOverlappingTemplateTest creates an overlapping template test. A nil
// or empty template falls back to nine ones; a non-positive block size
// falls back to the default.
func NewOverlappingTemplateTest(template []bool, blockSize int) *OverlappingTemplateTest {
	if len(template) == 0 {
		template = make([]bool, DefaultTemplateLength)
		for i := range template {
			template[i] = true
		}
	}
	if blockSize <= 0 {
		blockSize = DefaultOverlappingBlockSize
	}
	return &OverlappingTemplateTest{
		base:      newBase(),
		template:  template,
		blockSize: blockSize,
	}
}

// SetTemplate replaces the template pattern. Empty templates are rejected.
func (t *OverlappingTemplateTest) SetTemplate(template []bool) error {
	if len(template) == 0 {
		return errors.New("nist: template cannot be empty")
	}
	t.template = template
	return nil
}

// Name implements the Test interface.
func (t *OverlappingTemplateTest) Name() string {
	return "Overlapping Template Matching Test"
}

// MinimumLength implements the Test interface.
func (t *OverlappingTemplateTest) MinimumLength() int {
	return t.blockSize * 100
}

// Execute implements the Test interface.
func (t *OverlappingTemplateTest) Execute(data *bitseq.BitSequence) TestResult {
	n := data.Size()
	if n < t.MinimumLength() {
		return insufficientData(t.Name())
	}

	m := len(t.template)
	numBlocks := n / t.blockSize

	lambda := float64(t.blockSize-m+1) / math.Pow(2.0, float64(m))
	eta := lambda / 2.0

	// Match-count categories 0..4 and 5+, with Poisson(eta)
	// probabilities for the bounded categories.
	const categories = 5
	pi := make([]float64, categories+1)
	pi[0] = math.Exp(-eta)
	pi[1] = eta * math.Exp(-eta)
	pi[2] = (eta * eta / 2.0) * math.Exp(-eta)
	pi[3] = (eta * eta * eta / 6.0) * math.Exp(-eta)
	pi[4] = (eta * eta * eta * eta / 24.0) * math.Exp(-eta)
	pi[5] = 1.0 - (pi[0] + pi[1] + pi[2] + pi[3] + pi[4])

	observed := make([]int, categories+1)
	for i := 0; i < numBlocks; i++ {
		start := i * t.blockSize
		matches := 0
		for j := 0; j <= t.blockSize-m; j++ {
			match := true
			for k := 0; k < m && match; k++ {
				if data.Bit(start+j+k) != t.template[k] {
					match = false
				}
			}
			if match {
				matches++
			}
		}
		if matches > categories {
			observed[categories]++
		} else {
			observed[matches]++
		}
	}

	chiSquared := 0.0
	for i := 0; i <= categories; i++ {
		expected := float64(numBlocks) * pi[i]
		diff := float64(observed[i]) - expected
		chiSquared += diff * diff / expected
	}

	pValue := chiSquaredP(chiSquared, float64(categories))
	return TestResult{
		Name:   t.Name(),
		PValue: pValue,
		Passed: t.passed(pValue),
		Metrics: map[string]float64{
			"template_length": float64(m),
			"block_size":      float64(t.blockSize),
			"num_blocks":      float64(numBlocks),
			"lambda":          lambda,
			"chi_squared":     chiSquared,
		},
	}
}
