// Package simd provides runtime CPU capability detection and kernel
// dispatch. Detection runs once per process and is cached; dispatch picks
// the widest vector tier that is both supported by the host CPU and
// compiled into the binary, falling back tier by tier down to scalar,
// which is always available.
package simd

import (
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Tier identifies an instruction-set tier a kernel can run at. Tiers are
// totally ordered by width: Scalar < SSE2 < AVX2 < AVX512 < NEON.
type Tier int

const (
	Scalar Tier = iota
	SSE2
	AVX2
	AVX512
	NEON
)

// String returns the lowercase tier name used in logs and metrics labels.
func (t Tier) String() string {
	switch t {
	case Scalar:
		return "scalar"
	case SSE2:
		return "sse2"
	case AVX2:
		return "avx2"
	case AVX512:
		return "avx512"
	case NEON:
		return "neon"
	default:
		return "unknown"
	}
}

// Features describes the SIMD capabilities detected on the host CPU.
type Features struct {
	Vendor    string
	HasSSE2   bool
	HasAVX2   bool
	HasAVX512 bool
	HasNEON   bool
}

var (
	detectOnce sync.Once
	detected   *Features
)

// Detect returns the host CPU's SIMD capabilities. Detection runs exactly
// once per process; every call returns the same shared instance, so
// repeated calls are cheap and always consistent.
func Detect() *Features {
	detectOnce.Do(func() {
		// AVX512 requires the full F+DQ+BW+VL set before any kernel
		// can rely on it.
		hasAVX512 := cpuid.CPU.Supports(cpuid.AVX512F) &&
			cpuid.CPU.Supports(cpuid.AVX512DQ) &&
			cpuid.CPU.Supports(cpuid.AVX512BW) &&
			cpuid.CPU.Supports(cpuid.AVX512VL)

		detected = &Features{
			Vendor:    cpuid.CPU.VendorString,
			HasSSE2:   cpuid.CPU.Supports(cpuid.SSE2),
			HasAVX2:   cpuid.CPU.Supports(cpuid.AVX2),
			HasAVX512: hasAVX512,
			HasNEON:   cpuid.CPU.Supports(cpuid.ASIMD),
		}
	})
	return detected
}

// HighestSupported returns the widest tier the host CPU supports. Scalar
// is returned when no vector extension is present.
func (f *Features) HighestSupported() Tier {
	switch {
	case f.HasNEON:
		return NEON
	case f.HasAVX512:
		return AVX512
	case f.HasAVX2:
		return AVX2
	case f.HasSSE2:
		return SSE2
	default:
		return Scalar
	}
}

// Supports reports whether the host CPU supports the given tier.
func (f *Features) Supports(t Tier) bool {
	switch t {
	case Scalar:
		return true
	case SSE2:
		return f.HasSSE2
	case AVX2:
		return f.HasAVX2
	case AVX512:
		return f.HasAVX512
	case NEON:
		return f.HasNEON
	default:
		return false
	}
}
