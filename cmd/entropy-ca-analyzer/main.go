package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"time"

	"entropy-ca-analyzer/internal/bitseq"
	"entropy-ca-analyzer/internal/ca"
	analyzerconfig "entropy-ca-analyzer/internal/config"
	"entropy-ca-analyzer/internal/generator"
	"entropy-ca-analyzer/internal/health"
	"entropy-ca-analyzer/internal/metrics"
	"entropy-ca-analyzer/internal/monitoring"
	"entropy-ca-analyzer/internal/nist"
	"entropy-ca-analyzer/internal/simd"

	"github.com/joho/godotenv"
)

var (
	loadConfigFunc       = loadConfig
	loadSequenceFunc     = loadSequence
	newMetricsServerFunc = func(addr string) metricsServer {
		return metrics.NewServer(addr)
	}
	analyzerConfigLoadFunc = analyzerconfig.Load
	readFileFunc           = os.ReadFile
	logFatalfFunc          = log.Fatalf
)

type metricsServer interface {
	Start() error
	Shutdown(context.Context) error
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if err := godotenv.Overload(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("dotenv: %v", err)
	}

	fs := flag.NewFlagSet("entropy-ca-analyzer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inputPath := fs.String("input", "", "binary file to analyze (mutually exclusive with -generate)")
	generateBits := fs.Int("generate", 0, "number of bits to generate with the built-in generator (0 uses GENERATOR_BITS)")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stdout, "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.Usage()
			return 0
		}
		_, _ = fmt.Fprintf(stderr, "parse flags: %v\n", err)
		return 2
	}

	if fs.NArg() > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		return 2
	}

	if *inputPath != "" && *generateBits > 0 {
		_, _ = fmt.Fprintln(stderr, "-input and -generate are mutually exclusive")
		fs.Usage()
		return 2
	}

	config, err := loadConfigFunc()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	if config.Metrics.Enabled {
		metricsServer := newMetricsServerFunc(config.Metrics.Bind)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logFatalfFunc("metrics: failed to start server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Metrics.ShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("metrics: shutdown error: %v", err)
			}
		}()
	}

	metrics.SetDispatchTier(simd.Detect().HighestSupported().String())

	sequence, err := loadSequenceFunc(config, *inputPath, *generateBits)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	healthReport := health.Evaluate(sequence.Bytes())
	printHealth(stdout, healthReport)

	if config.CA.Enabled {
		sequence, err = applyAutomaton(config, sequence)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
	}

	suite, err := buildSuite(config)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	startTime := time.Now()
	results := suite.RunTests(sequence)
	duration := time.Since(startTime)

	summary := nist.Summarize(results)
	metrics.RecordAnalysis(sequence.Size(), duration, summary.PassRate)
	for _, result := range results {
		metrics.RecordTestResult(result.Name, result.PValue, result.Passed)
	}

	printResults(stdout, sequence.Size(), suite.Alpha(), results, summary)

	if !healthReport.Sound() || summary.Passed < summary.Total {
		return 1
	}
	return 0
}

// loadConfig loads the analyzer configuration from environment variables and
// the optional .env file.
func loadConfig() (analyzerconfig.Config, error) {
	config, err := analyzerConfigLoadFunc()
	if err != nil {
		return config, fmt.Errorf("config: %w", err)
	}

	log.Printf("environment: %s", config.Environment)
	return config, nil
}

// loadSequence obtains the bit sequence under analysis, either from a binary
// input file or from the deterministic generator. The -generate flag takes
// precedence over the configured generator length.
func loadSequence(config analyzerconfig.Config, inputPath string, generateBits int) (*bitseq.BitSequence, error) {
	if inputPath != "" {
		data, err := readFileFunc(inputPath)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("read input: %s is empty", inputPath)
		}
		log.Printf("input: loaded %d bytes from %s", len(data), inputPath)
		return bitseq.FromBytes(data), nil
	}

	bits := generateBits
	if bits <= 0 {
		bits = config.Generator.Bits
	}

	gen := generator.New()
	if config.Generator.Seed != "" {
		if err := gen.SetSeed(config.Generator.Seed); err != nil {
			return nil, err
		}
	}

	sequence, err := gen.Generate(bits)
	if err != nil {
		return nil, err
	}

	metrics.RecordGeneratedBits(bits)
	log.Printf("generator: produced %d bits", bits)
	return sequence, nil
}

// applyAutomaton runs the configured cellular automaton over the sequence
// and returns the evolved generation.
func applyAutomaton(config analyzerconfig.Config, sequence *bitseq.BitSequence) (*bitseq.BitSequence, error) {
	neighborhood, err := parseNeighborhood(config.CA.Neighborhood)
	if err != nil {
		return nil, err
	}

	var reporter monitoring.Reporter = monitoring.NopReporter{}
	if config.IsDevelopment() {
		reporter = monitoring.LogReporter{}
	}

	opts := []ca.Option{
		ca.WithRule(ca.Rule(config.CA.Rule)),
		ca.WithNeighborhood(neighborhood),
		ca.WithWidth(config.CA.Width),
		ca.WithReporter(reporter),
	}
	// An unset worker count keeps the engine's CPU-count default; the
	// config layer rejects explicit non-positive overrides.
	if config.CA.Workers > 0 {
		opts = append(opts, ca.WithWorkers(config.CA.Workers))
	}

	engine, err := ca.NewEngine(sequence, opts...)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	evolved, err := engine.Process(config.CA.Iterations)
	duration := time.Since(startTime)
	if err != nil {
		return nil, err
	}

	metrics.RecordCAProcess(config.CA.Iterations, sequence.Size(), duration)
	metrics.SetDispatchTier(engine.ActiveTier().String())
	log.Printf("ca: %s evolved %d generation(s) over %d cells (%s, tier=%s)",
		engine.RuleName(), config.CA.Iterations, sequence.Size(),
		neighborhood, engine.ActiveTier())

	return evolved, nil
}

// parseNeighborhood maps a configuration string to the corresponding
// ca.Neighborhood. The config layer validates the value, so unknown strings
// only occur when a caller bypasses validation.
func parseNeighborhood(name string) (ca.Neighborhood, error) {
	switch name {
	case "1d":
		return ca.OneDimensional, nil
	case "von-neumann":
		return ca.VonNeumann, nil
	case "moore":
		return ca.Moore, nil
	default:
		return ca.OneDimensional, fmt.Errorf("ca: unknown neighborhood %q", name)
	}
}

// buildSuite assembles the full test battery with the configured block size,
// template length and significance level.
func buildSuite(config analyzerconfig.Config) (*nist.Suite, error) {
	suite := nist.NewSuite()
	suite.AddTest(nist.NewFrequencyTest())
	suite.AddTest(nist.NewBlockFrequencyTest(config.Analysis.BlockSize))
	suite.AddTest(nist.NewRunsTest())
	suite.AddTest(nist.NewLongestRunTest())
	suite.AddTest(nist.NewDFTTest())
	suite.AddTest(nist.NewNonOverlappingTemplateTest(config.Analysis.TemplateLength, nist.DefaultNonOverlappingBlockSize))
	suite.AddTest(nist.NewOverlappingTemplateTest(nil, nist.DefaultOverlappingBlockSize))

	if err := suite.SetAlpha(config.Analysis.Alpha); err != nil {
		return nil, err
	}
	return suite, nil
}

// printHealth writes the continuous health test outcome and the conservative
// min-entropy estimate for the raw input.
func printHealth(w io.Writer, report health.Report) {
	verdict := func(ok bool) string {
		if ok {
			return "ok"
		}
		return "FAIL"
	}
	_, _ = fmt.Fprintf(w, "Health: min-entropy=%.3f bits/byte, repetition=%s (longest run %d), proportion=%s (worst count %d)\n",
		report.MinEntropy,
		verdict(report.RepetitionOK), report.LongestRepetition,
		verdict(report.ProportionOK), report.WorstProportion)
}

// printResults writes one line per test plus an aggregate summary.
func printResults(w io.Writer, bits int, alpha float64, results []nist.TestResult, summary nist.Summary) {
	_, _ = fmt.Fprintf(w, "Analyzed %d bits (alpha=%.4g)\n\n", bits, alpha)

	for _, result := range results {
		verdict := "FAIL"
		if result.Passed {
			verdict = "PASS"
		}
		_, _ = fmt.Fprintf(w, "  %-44s p=%.6f  %s\n", result.Name, result.PValue, verdict)
	}

	_, _ = fmt.Fprintf(w, "\nPassed %d/%d (%.1f%%), mean p=%.6f, median p=%.6f\n",
		summary.Passed, summary.Total, summary.PassRate*100,
		summary.MeanPValue, summary.MedianPValue)
}
