// Package health implements the continuous health tests from NIST SP 800-90B
// Section 4.4 and the min-entropy estimators from Section 6.3. The checks run
// ahead of the full statistical battery and catch gross defects, stuck-at
// faults and heavy bias, that would otherwise waste a battery run.
package health

import "math"

// Default cutoffs from NIST SP 800-90B for a false-positive probability of
// 2^-40. The proportion defaults assume a claimed min-entropy of 0.5 bits
// per sample.
const (
	DefaultRepetitionCutoff = 40
	DefaultProportionCutoff = 605
	DefaultProportionWindow = 4096
)

// RepetitionCounter implements the Repetition Count Test from SP 800-90B
// Section 4.4.1. It tracks the longest run of consecutive identical byte
// samples and fails once the run reaches the cutoff. The zero value is not
// usable; construct with NewRepetitionCounter.
type RepetitionCounter struct {
	cutoff  int
	last    byte
	run     int
	longest int
	seeded  bool
	failed  bool
}

// NewRepetitionCounter returns a counter with the given cutoff. Non-positive
// cutoffs default to DefaultRepetitionCutoff.
func NewRepetitionCounter(cutoff int) *RepetitionCounter {
	if cutoff <= 0 {
		cutoff = DefaultRepetitionCutoff
	}
	return &RepetitionCounter{cutoff: cutoff}
}

// Feed consumes one sample and reports whether the test is still passing.
// Once failed, the counter stays failed until Reset.
func (c *RepetitionCounter) Feed(sample byte) bool {
	if !c.seeded {
		c.last = sample
		c.run = 1
		c.longest = 1
		c.seeded = true
		return !c.failed
	}

	if sample == c.last {
		c.run++
		if c.run > c.longest {
			c.longest = c.run
		}
		if c.run >= c.cutoff {
			c.failed = true
		}
	} else {
		c.last = sample
		c.run = 1
	}

	return !c.failed
}

// FeedAll consumes a block of samples and reports the final pass state.
func (c *RepetitionCounter) FeedAll(samples []byte) bool {
	ok := !c.failed
	for _, s := range samples {
		ok = c.Feed(s)
	}
	return ok
}

// LongestRun returns the longest run of identical samples observed so far.
func (c *RepetitionCounter) LongestRun() int {
	return c.longest
}

// Reset returns the counter to its initial state.
func (c *RepetitionCounter) Reset() {
	c.last = 0
	c.run = 0
	c.longest = 0
	c.seeded = false
	c.failed = false
}

// ProportionTracker implements the Adaptive Proportion Test from SP 800-90B
// Section 4.4.2. Each window of windowSize samples counts recurrences of the
// window's first sample; reaching the cutoff fails the test. Construct with
// NewProportionTracker.
type ProportionTracker struct {
	cutoff  int
	window  int
	first   byte
	matches int
	seen    int
	worst   int
	failed  bool
}

// NewProportionTracker returns a tracker with the given cutoff and window
// size. Non-positive values default to DefaultProportionCutoff and
// DefaultProportionWindow.
func NewProportionTracker(cutoff, windowSize int) *ProportionTracker {
	if cutoff <= 0 {
		cutoff = DefaultProportionCutoff
	}
	if windowSize <= 0 {
		windowSize = DefaultProportionWindow
	}
	return &ProportionTracker{cutoff: cutoff, window: windowSize}
}

// Feed consumes one sample and reports whether the test is still passing.
// Once failed, the tracker stays failed until Reset.
func (p *ProportionTracker) Feed(sample byte) bool {
	if p.seen == 0 {
		p.first = sample
		p.matches = 1
	} else if sample == p.first {
		p.matches++
	}
	p.seen++

	if p.matches > p.worst {
		p.worst = p.matches
	}
	if p.matches >= p.cutoff {
		p.failed = true
	}

	if p.seen >= p.window {
		p.seen = 0
		p.matches = 0
	}

	return !p.failed
}

// FeedAll consumes a block of samples and reports the final pass state.
func (p *ProportionTracker) FeedAll(samples []byte) bool {
	ok := !p.failed
	for _, s := range samples {
		ok = p.Feed(s)
	}
	return ok
}

// WorstCount returns the highest recurrence count seen in any window.
func (p *ProportionTracker) WorstCount() int {
	return p.worst
}

// Reset returns the tracker to its initial state.
func (p *ProportionTracker) Reset() {
	p.first = 0
	p.matches = 0
	p.seen = 0
	p.worst = 0
	p.failed = false
}

// MostCommonValueEstimate estimates min-entropy in bits per byte using the
// Most Common Value method from SP 800-90B Section 6.3.1. Empty input
// yields 0.
func MostCommonValueEstimate(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}

	var freq [256]int
	maxCount := 0
	for _, b := range data {
		freq[b]++
		if freq[b] > maxCount {
			maxCount = freq[b]
		}
	}

	pMax := float64(maxCount) / float64(len(data))
	if pMax >= 1 {
		return 0
	}
	return -math.Log2(pMax)
}

// CollisionEstimate estimates min-entropy in bits per byte using the
// Collision method from SP 800-90B Section 6.3.2, computed from the
// position of the first repeated byte value. Sequences with no collision
// report the full 8 bits. Empty input yields 0.
func CollisionEstimate(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	if len(data) == 1 {
		return 8
	}

	var seen [256]bool
	collisionAt := 0
	for i, b := range data {
		if seen[b] {
			collisionAt = i + 1
			break
		}
		seen[b] = true
	}

	if collisionAt == 0 {
		return 8
	}

	estimate := math.Log2(float64(collisionAt))
	if estimate > 8 {
		estimate = 8
	}
	if estimate < 0 {
		estimate = 0
	}
	return estimate
}

// Report holds the outcome of a health evaluation.
type Report struct {
	// MinEntropy is the conservative per-byte estimate, the minimum of
	// the MCV and collision estimators.
	MinEntropy        float64
	MCVEntropy        float64
	CollisionEntropy  float64
	RepetitionOK      bool
	LongestRepetition int
	ProportionOK      bool
	WorstProportion   int
}

// Sound reports whether both continuous health tests passed.
func (r Report) Sound() bool {
	return r.RepetitionOK && r.ProportionOK
}

// Evaluate runs the repetition count test, the adaptive proportion test and
// both min-entropy estimators over the data with default parameters.
func Evaluate(data []byte) Report {
	rct := NewRepetitionCounter(0)
	apt := NewProportionTracker(0, 0)

	rctOK := rct.FeedAll(data)
	aptOK := apt.FeedAll(data)

	mcv := MostCommonValueEstimate(data)
	collision := CollisionEstimate(data)
	conservative := mcv
	if collision < conservative {
		conservative = collision
	}

	return Report{
		MinEntropy:        conservative,
		MCVEntropy:        mcv,
		CollisionEntropy:  collision,
		RepetitionOK:      rctOK,
		LongestRepetition: rct.LongestRun(),
		ProportionOK:      aptOK,
		WorstProportion:   apt.WorstCount(),
	}
}
