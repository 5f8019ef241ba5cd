//go:build arm64

package simd

// compiledTiers lists the vector tiers this binary carries kernels for on
// arm64, widest first. Scalar is implicit and always present.
var compiledTiers = []Tier{NEON}
