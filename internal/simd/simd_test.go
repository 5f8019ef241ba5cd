package simd

import (
	"errors"
	"testing"
)

func TestDetectReturnsSameInstance(t *testing.T) {
	t.Parallel()

	first := Detect()
	second := Detect()
	if first != second {
		t.Fatal("Detect() returned different instances across calls")
	}
	if first == nil {
		t.Fatal("Detect() returned nil")
	}
}

func TestTierString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tier Tier
		want string
	}{
		{Scalar, "scalar"},
		{SSE2, "sse2"},
		{AVX2, "avx2"},
		{AVX512, "avx512"},
		{NEON, "neon"},
		{Tier(99), "unknown"},
	}

	for _, tc := range cases {
		if got := tc.tier.String(); got != tc.want {
			t.Fatalf("Tier(%d).String() = %q, want %q", tc.tier, got, tc.want)
		}
	}
}

func TestHighestSupportedOrdering(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		features Features
		want     Tier
	}{
		{"nothing", Features{}, Scalar},
		{"sse2 only", Features{HasSSE2: true}, SSE2},
		{"avx2 implies sse2", Features{HasSSE2: true, HasAVX2: true}, AVX2},
		{"avx512 beats avx2", Features{HasSSE2: true, HasAVX2: true, HasAVX512: true}, AVX512},
		{"neon", Features{HasNEON: true}, NEON},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := tc.features.HighestSupported(); got != tc.want {
				t.Fatalf("HighestSupported() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestScalarAlwaysSupported(t *testing.T) {
	t.Parallel()

	var none Features
	if !none.Supports(Scalar) {
		t.Fatal("Scalar must be supported on every CPU")
	}
}

func TestDispatcherFallsBackToScalar(t *testing.T) {
	t.Parallel()

	// A CPU with no vector extensions dispatches everything to scalar.
	d := newDispatcherWith(&Features{})
	if got := d.ActiveTier(); got != Scalar {
		t.Fatalf("ActiveTier() = %s, want scalar", got)
	}

	var ran Tier = -1
	err := d.Execute(KernelFunc(func(tier Tier) error {
		ran = tier
		return nil
	}))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if ran != Scalar {
		t.Fatalf("kernel ran at %s, want scalar", ran)
	}
}

func TestDispatcherPicksHighestCompiledTier(t *testing.T) {
	t.Parallel()

	f := &Features{HasSSE2: true, HasAVX2: true, HasAVX512: true, HasNEON: true}
	d := newDispatcherWith(f)

	if len(compiledTiers) == 0 {
		if got := d.ActiveTier(); got != Scalar {
			t.Fatalf("ActiveTier() = %s, want scalar on architecture without vector kernels", got)
		}
		return
	}
	if got := d.ActiveTier(); got != compiledTiers[0] {
		t.Fatalf("ActiveTier() = %s, want %s", got, compiledTiers[0])
	}
}

func TestDispatcherDegradesPastUnsupportedTier(t *testing.T) {
	t.Parallel()

	// Supports only SSE2: on amd64 the AVX512 and AVX2 kernels must be
	// skipped in favor of the SSE2 one; elsewhere scalar wins.
	f := &Features{HasSSE2: true}
	d := newDispatcherWith(f)

	want := Scalar
	for _, tier := range compiledTiers {
		if f.Supports(tier) {
			want = tier
			break
		}
	}
	if got := d.ActiveTier(); got != want {
		t.Fatalf("ActiveTier() = %s, want %s", got, want)
	}
}

func TestExecutePropagatesKernelError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("kernel failure")
	d := newDispatcherWith(&Features{})
	if err := d.Execute(KernelFunc(func(Tier) error { return sentinel })); !errors.Is(err, sentinel) {
		t.Fatalf("Execute() error = %v, want %v", err, sentinel)
	}
}

func TestBenchmarkCoversScalarBaseline(t *testing.T) {
	t.Parallel()

	d := newDispatcherWith(Detect())
	runs := make(map[Tier]int)
	results, err := d.Benchmark(KernelFunc(func(tier Tier) error {
		runs[tier]++
		return nil
	}), 3)
	if err != nil {
		t.Fatalf("Benchmark() error: %v", err)
	}

	if _, ok := results[Scalar]; !ok {
		t.Fatal("Benchmark() missing scalar baseline")
	}
	// Warm-up plus three timed iterations per tier.
	for tier, n := range runs {
		if n != 4 {
			t.Fatalf("tier %s ran %d times, want 4", tier, n)
		}
	}
	if len(results) != len(runs) {
		t.Fatalf("results cover %d tiers, kernel ran at %d", len(results), len(runs))
	}
}

func TestBenchmarkRejectsNonPositiveIterations(t *testing.T) {
	t.Parallel()

	d := newDispatcherWith(&Features{})
	if _, err := d.Benchmark(KernelFunc(func(Tier) error { return nil }), 0); err == nil {
		t.Fatal("Benchmark(.., 0) did not error")
	}
}
