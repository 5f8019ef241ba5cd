// Package ca implements a cellular automaton engine used to transform bit
// sequences before statistical evaluation. The engine supports the classic
// elementary rules 30, 82, 110 and 150 over a one-dimensional wraparound
// neighborhood as well as threshold adaptations of those rules over
// two-dimensional Von Neumann and Moore grids, plus caller-supplied custom
// rules. Each generation is computed in parallel across a fixed pool of
// workers operating on disjoint index ranges.
package ca

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"entropy-ca-analyzer/internal/bitseq"
	"entropy-ca-analyzer/internal/metrics"
	"entropy-ca-analyzer/internal/monitoring"
	"entropy-ca-analyzer/internal/simd"
)

// Rule identifies an elementary cellular automaton rule by its Wolfram
// number. Only the four presets below are supported; other values are
// rejected at engine construction.
type Rule int

// Supported rule presets.
const (
	Rule30  Rule = 30
	Rule82  Rule = 82
	Rule110 Rule = 110
	Rule150 Rule = 150
)

// Name returns a human-readable description of the rule.
func (r Rule) Name() string {
	switch r {
	case Rule30:
		return "Rule 30 (Chaotic)"
	case Rule82:
		return "Rule 82 (Random-like)"
	case Rule110:
		return "Rule 110 (Universal)"
	case Rule150:
		return "Rule 150 (Linear)"
	default:
		return fmt.Sprintf("Rule %d", int(r))
	}
}

// CustomRule computes the next state of the cell at the given index from a
// read-only snapshot of the current generation. Returning an error aborts
// the whole transformation with no partial result.
type CustomRule func(current *bitseq.BitSequence, index int) (bool, error)

// Neighborhood selects how cell adjacency is interpreted.
type Neighborhood int

const (
	// OneDimensional treats the sequence as a ring of cells; each cell
	// sees its immediate left and right neighbors with wraparound.
	OneDimensional Neighborhood = iota
	// VonNeumann arranges cells in a grid; each cell sees its four
	// orthogonal neighbors. Cells beyond the grid edge are absent, never
	// wrapped.
	VonNeumann
	// Moore arranges cells in a grid; each cell sees all eight
	// surrounding neighbors. Cells beyond the grid edge are absent.
	Moore
)

// String returns the lowercase neighborhood name.
func (n Neighborhood) String() string {
	switch n {
	case OneDimensional:
		return "1d"
	case VonNeumann:
		return "von-neumann"
	case Moore:
		return "moore"
	default:
		return "unknown"
	}
}

// Engine evolves a cellular automaton over the cells of a bit sequence.
// Construct with NewEngine; the zero value is not usable.
type Engine struct {
	rule         Rule
	custom       CustomRule
	neighborhood Neighborhood
	size         int
	width        int
	height       int
	workers      int
	workersSet   bool
	reporter     monitoring.Reporter
	dispatcher   *simd.Dispatcher

	cells []bool
	next  []bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRule selects one of the preset rules. The default is Rule30.
func WithRule(r Rule) Option {
	return func(e *Engine) { e.rule = r }
}

// WithCustomRule installs a caller-supplied transition function. When set,
// the custom rule replaces the preset for every cell.
func WithCustomRule(fn CustomRule) Option {
	return func(e *Engine) { e.custom = fn }
}

// WithNeighborhood selects the adjacency model. The default is
// OneDimensional.
func WithNeighborhood(n Neighborhood) Option {
	return func(e *Engine) { e.neighborhood = n }
}

// WithWidth overrides the grid width used by the two-dimensional
// neighborhoods. Non-positive values keep the default of floor(sqrt(n)).
func WithWidth(w int) Option {
	return func(e *Engine) {
		if w > 0 {
			e.width = w
		}
	}
}

// WithWorkers sets the number of parallel workers per generation. The
// default is runtime.NumCPU(); an explicit non-positive count is rejected
// at engine construction.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
		e.workersSet = true
	}
}

// WithReporter installs a progress reporter. The default reporter
// discards all updates.
func WithReporter(r monitoring.Reporter) Option {
	return func(e *Engine) {
		if r != nil {
			e.reporter = r
		}
	}
}

// NewEngine creates an engine over a copy of the given sequence. The
// sequence must be non-empty, and the rule must be one of the supported
// presets unless a custom rule is installed.
func NewEngine(seq *bitseq.BitSequence, opts ...Option) (*Engine, error) {
	if seq == nil || seq.Size() == 0 {
		return nil, errors.New("ca: input sequence must be non-empty")
	}

	e := &Engine{
		rule:         Rule30,
		neighborhood: OneDimensional,
		size:         seq.Size(),
		workers:      runtime.NumCPU(),
		reporter:     monitoring.NopReporter{},
		dispatcher:   simd.NewDispatcher(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.custom == nil {
		switch e.rule {
		case Rule30, Rule82, Rule110, Rule150:
		default:
			return nil, fmt.Errorf("ca: unsupported rule %d", int(e.rule))
		}
	}

	if e.workersSet && e.workers <= 0 {
		return nil, fmt.Errorf("ca: worker count must be positive, got %d", e.workers)
	}

	if e.width <= 0 {
		e.width = int(math.Sqrt(float64(e.size)))
		if e.width < 1 {
			e.width = 1
		}
	}
	if e.width > e.size {
		e.width = e.size
	}
	e.height = (e.size + e.width - 1) / e.width

	if e.workers > e.size {
		e.workers = e.size
	}

	e.cells = make([]bool, e.size)
	e.next = make([]bool, e.size)
	for i := 0; i < e.size; i++ {
		e.cells[i] = seq.Bit(i)
	}
	return e, nil
}

// RuleName returns a description of the active rule for logs and reports.
func (e *Engine) RuleName() string {
	if e.custom != nil {
		return "Custom rule"
	}
	return e.rule.Name()
}

// ActiveTier reports the instruction-set tier cell updates dispatch to.
func (e *Engine) ActiveTier() simd.Tier {
	return e.dispatcher.ActiveTier()
}

// Process evolves the automaton for the given number of generations and
// returns the resulting sequence. Zero iterations returns the input
// unchanged. A custom rule error aborts immediately with no result.
func (e *Engine) Process(iterations int) (*bitseq.BitSequence, error) {
	if iterations < 0 {
		return nil, fmt.Errorf("ca: iterations must be non-negative, got %d", iterations)
	}

	e.reporter.Report("cellular automaton", 0, iterations)
	for iter := 0; iter < iterations; iter++ {
		if err := e.step(); err != nil {
			// Preset rules cannot fail; a step error always comes from
			// an installed custom rule.
			if e.custom != nil {
				metrics.RecordCACustomRuleFailure()
			}
			return nil, err
		}
		e.reporter.Report("cellular automaton", iter+1, iterations)
	}
	return e.snapshot(), nil
}

// ProcessBytes is a convenience wrapper returning the packed bytes of the
// transformed sequence.
func (e *Engine) ProcessBytes(iterations int) ([]byte, error) {
	seq, err := e.Process(iterations)
	if err != nil {
		return nil, err
	}
	return seq.Bytes(), nil
}

// step computes one generation into the back buffer and swaps. The current
// buffer is read-only while workers run; the swap happens only after every
// worker has joined, so a failed generation never becomes visible.
func (e *Engine) step() error {
	var snap *bitseq.BitSequence
	if e.custom != nil {
		snap = e.snapshot()
	}

	var group errgroup.Group
	chunk := e.size / e.workers
	for w := 0; w < e.workers; w++ {
		start := w * chunk
		end := start + chunk
		if w == e.workers-1 {
			end = e.size
		}
		group.Go(func() error {
			return e.dispatcher.Execute(simd.KernelFunc(func(simd.Tier) error {
				return e.updateRange(start, end, snap)
			}))
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	e.cells, e.next = e.next, e.cells
	return nil
}

// updateRange computes next states for cells in [start, end).
func (e *Engine) updateRange(start, end int, snap *bitseq.BitSequence) error {
	for i := start; i < end; i++ {
		if e.custom != nil {
			v, err := e.custom(snap, i)
			if err != nil {
				return fmt.Errorf("ca: custom rule at cell %d: %w", i, err)
			}
			e.next[i] = v
			continue
		}
		e.next[i] = e.presetNext(i)
	}
	return nil
}

// presetNext evaluates the preset rule for the cell at index i against the
// current generation.
func (e *Engine) presetNext(i int) bool {
	if e.neighborhood == OneDimensional {
		n := e.size
		pattern := 0
		if e.cells[(i-1+n)%n] {
			pattern |= 4
		}
		if e.cells[i] {
			pattern |= 2
		}
		if e.cells[(i+1)%n] {
			pattern |= 1
		}
		return int(e.rule)&(1<<uint(pattern)) != 0
	}

	alive := e.cells[i]
	neighbors := e.liveNeighbors(i)
	if e.neighborhood == VonNeumann {
		switch e.rule {
		case Rule30:
			return (alive && neighbors < 2) || (!alive && neighbors >= 2)
		case Rule82:
			return (alive && neighbors < 3) || (!alive && neighbors == 2)
		case Rule110:
			return (alive && neighbors != 4) || (!alive && neighbors >= 1)
		default: // Rule150
			return neighbors%2 != 0
		}
	}
	// Moore
	switch e.rule {
	case Rule30:
		return neighbors == 3 || (alive && neighbors == 2)
	case Rule82:
		return (!alive && neighbors == 3) || (alive && (neighbors == 2 || neighbors == 3))
	case Rule110:
		return (alive && neighbors < 4) || (!alive && (neighbors == 3 || neighbors == 6))
	default: // Rule150
		return neighbors%2 != 0
	}
}

// neighborOffsets indexed by neighborhood; only the 2D models use these.
var (
	vonNeumannOffsets = [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	mooreOffsets      = [][2]int{
		{-1, -1}, {-1, 0}, {-1, 1},
		{0, -1}, {0, 1},
		{1, -1}, {1, 0}, {1, 1},
	}
)

// liveNeighbors counts live cells adjacent to index i on the grid. Cells
// outside the grid, including slots past the end of a partial final row,
// are absent.
func (e *Engine) liveNeighbors(i int) int {
	offsets := vonNeumannOffsets
	if e.neighborhood == Moore {
		offsets = mooreOffsets
	}

	row := i / e.width
	col := i % e.width
	count := 0
	for _, off := range offsets {
		r := row + off[0]
		c := col + off[1]
		if r < 0 || r >= e.height || c < 0 || c >= e.width {
			continue
		}
		j := r*e.width + c
		if j >= e.size {
			continue
		}
		if e.cells[j] {
			count++
		}
	}
	return count
}

// snapshot packs the current generation into a BitSequence.
func (e *Engine) snapshot() *bitseq.BitSequence {
	seq := bitseq.New(e.size)
	for i, alive := range e.cells {
		if alive {
			seq.SetBit(i, true)
		}
	}
	return seq
}
