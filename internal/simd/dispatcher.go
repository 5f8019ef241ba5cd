package simd

import (
	"fmt"
	"time"
)

// Kernel is a unit of work that can run at any instruction-set tier. A
// kernel must produce value-identical results at every tier it accepts;
// the tier only selects the execution strategy.
type Kernel interface {
	// Run executes the kernel at the given tier.
	Run(tier Tier) error
}

// KernelFunc adapts a plain function to the Kernel interface.
type KernelFunc func(tier Tier) error

// Run implements Kernel.
func (f KernelFunc) Run(tier Tier) error {
	return f(tier)
}

// Dispatcher routes kernels to the best tier that is both supported by the
// host CPU and compiled into the binary. The zero value is not usable; use
// NewDispatcher.
type Dispatcher struct {
	features *Features
	active   Tier
}

// NewDispatcher creates a dispatcher bound to the host CPU's detected
// capabilities.
func NewDispatcher() *Dispatcher {
	return newDispatcherWith(Detect())
}

// newDispatcherWith exists so tests can pin a capability set.
func newDispatcherWith(f *Features) *Dispatcher {
	d := &Dispatcher{features: f, active: Scalar}
	for _, t := range compiledTiers {
		if f.Supports(t) {
			d.active = t
			break
		}
	}
	return d
}

// ActiveTier returns the tier Execute will run kernels at: the widest tier
// supported by the CPU for which the binary carries a kernel, or Scalar
// when no compiled tier is supported.
func (d *Dispatcher) ActiveTier() Tier {
	return d.active
}

// Execute runs the kernel at the active tier.
func (d *Dispatcher) Execute(k Kernel) error {
	return k.Run(d.active)
}

// availableTiers returns the tiers Benchmark should exercise: every
// compiled tier the CPU supports, plus Scalar as the baseline.
func (d *Dispatcher) availableTiers() []Tier {
	tiers := []Tier{Scalar}
	for _, t := range compiledTiers {
		if d.features.Supports(t) {
			tiers = append(tiers, t)
		}
	}
	return tiers
}

// Benchmark times the kernel at every available tier, including the scalar
// baseline, running iterations repetitions per tier after a single warm-up
// run. It returns the total elapsed time per tier. iterations must be
// positive.
func (d *Dispatcher) Benchmark(k Kernel, iterations int) (map[Tier]time.Duration, error) {
	if iterations <= 0 {
		return nil, fmt.Errorf("simd: benchmark iterations must be positive, got %d", iterations)
	}

	results := make(map[Tier]time.Duration)
	for _, tier := range d.availableTiers() {
		// Warm-up run, untimed.
		if err := k.Run(tier); err != nil {
			return nil, fmt.Errorf("simd: benchmark warm-up at %s: %w", tier, err)
		}

		start := time.Now()
		for i := 0; i < iterations; i++ {
			if err := k.Run(tier); err != nil {
				return nil, fmt.Errorf("simd: benchmark at %s: %w", tier, err)
			}
		}
		results[tier] = time.Since(start)
	}
	return results, nil
}
