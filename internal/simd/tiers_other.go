//go:build !amd64 && !arm64

package simd

// compiledTiers is empty on architectures without vector kernels; every
// dispatch runs the scalar path.
var compiledTiers []Tier
