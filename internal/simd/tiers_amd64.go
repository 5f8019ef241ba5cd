//go:build amd64

package simd

// compiledTiers lists the vector tiers this binary carries kernels for on
// amd64, widest first. Scalar is implicit and always present.
var compiledTiers = []Tier{AVX512, AVX2, SSE2}
