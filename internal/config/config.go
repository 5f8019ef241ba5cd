// Package config provides configuration management for the entropy-ca-analyzer
// application. Configuration is loaded from environment variables with sensible
// defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment constants define the application runtime environments.
const (
	EnvironmentDevelopment = "dev"
	EnvironmentProduction  = "prod"

	defaultAlpha           = 0.01
	defaultBlockSize       = 128
	defaultTemplateLength  = 9
	minTemplateLength      = 2
	maxTemplateLength      = 16
	defaultCARule          = 30
	defaultCANeighborhood  = "1d"
	defaultCAIterations    = 1
	defaultGeneratorBits   = 100000
	defaultMetricsBind     = "127.0.0.1:8000"
	defaultShutdownTimeout = 5 * time.Second
)

// Analysis contains statistical test battery configuration.
type Analysis struct {
	Alpha          float64 `json:"alpha"`           // Significance level for all tests, exclusive range (0, 1)
	BlockSize      int     `json:"block_size"`      // Block size for the block frequency test
	TemplateLength int     `json:"template_length"` // Template length for the template matching tests (2-16)
}

// CA contains cellular automaton preprocessing configuration.
type CA struct {
	Enabled      bool   `json:"enabled"`      // Run the automaton over the input before testing
	Rule         int    `json:"rule"`         // Automaton rule number (30, 82, 110, 150)
	Neighborhood string `json:"neighborhood"` // Neighborhood topology: "1d", "von-neumann", "moore"
	Iterations   int    `json:"iterations"`   // Number of generations to evolve
	Width        int    `json:"width"`        // Grid width for 2D neighborhoods (0 = auto)
	Workers      int    `json:"workers"`      // Worker goroutines per generation (0 = NumCPU)
}

// Generator contains built-in sequence generator configuration.
type Generator struct {
	Seed string `json:"seed"` // Hex seed for the SHA-1 generator (empty = built-in default)
	Bits int    `json:"bits"` // Default number of bits to generate
}

// Metrics contains Prometheus metrics server configuration.
type Metrics struct {
	Enabled         bool          `json:"enabled"`          // Enable metrics server
	Bind            string        `json:"bind"`             // Bind address for metrics server (e.g., "127.0.0.1:8000")
	ShutdownTimeout time.Duration `json:"shutdown_timeout"` // Grace period for metrics server shutdown
}

// Config holds the complete application configuration.
type Config struct {
	Analysis    Analysis  `json:"analysis"`    // Statistical test configuration
	CA          CA        `json:"ca"`          // Cellular automaton configuration
	Generator   Generator `json:"generator"`   // Sequence generator configuration
	Metrics     Metrics   `json:"metrics"`     // Metrics server configuration
	Environment string    `json:"environment"` // Runtime environment ("dev" or "prod")
}

// Load reads configuration from environment variables and returns a validated Config.
// It applies defaults first, then overrides with environment variables.
// Returns an error if the required configuration is missing or invalid.
func Load() (Config, error) {
	// Initialize with safe defaults
	configuration := Config{
		Analysis: Analysis{
			Alpha:          defaultAlpha,
			BlockSize:      defaultBlockSize,
			TemplateLength: defaultTemplateLength,
		},
		CA: CA{
			Enabled:      false, // Input passes through untouched by default
			Rule:         defaultCARule,
			Neighborhood: defaultCANeighborhood,
			Iterations:   defaultCAIterations,
			Width:        0, // Auto-derived square grid
			Workers:      0, // NumCPU
		},
		Generator: Generator{
			Seed: "", // Generator falls back to its built-in default seed
			Bits: defaultGeneratorBits,
		},
		Metrics: Metrics{
			Enabled:         false,
			Bind:            defaultMetricsBind, // Default to localhost only
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Environment: EnvironmentDevelopment, // Default to development
	}

	// Apply environment variable overrides
	if err := applyAnalysisEnvVars(&configuration); err != nil {
		return configuration, err
	}
	if err := applyCAEnvVars(&configuration); err != nil {
		return configuration, err
	}
	if err := applyGeneratorEnvVars(&configuration); err != nil {
		return configuration, err
	}
	if err := applyMetricsEnvVars(&configuration); err != nil {
		return configuration, err
	}
	if err := applyEnvironmentEnvVars(&configuration); err != nil {
		return configuration, err
	}

	// Validate final configuration
	if err := validate(&configuration); err != nil {
		return configuration, err
	}

	return configuration, nil
}

// applyAnalysisEnvVars reads test battery environment variables.
// ANALYZER_ALPHA must parse as a float; range checking happens in validate so
// a bad significance level is always a hard error, never silently clamped.
// ANALYZER_TEMPLATE_LENGTH outside [2, 16] is clamped with a warning log.
func applyAnalysisEnvVars(configuration *Config) error {
	if v := os.Getenv("ANALYZER_ALPHA"); v != "" {
		cleaned := cleanEnvValue(v)
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return fmt.Errorf("config: ANALYZER_ALPHA must be a number, got %q", v)
		}
		configuration.Analysis.Alpha = parsed
	}

	configuration.Analysis.BlockSize = ParsePositiveEnvInt("ANALYZER_BLOCK_SIZE", configuration.Analysis.BlockSize)

	length := ParsePositiveEnvInt("ANALYZER_TEMPLATE_LENGTH", configuration.Analysis.TemplateLength)
	if length < minTemplateLength {
		log.Printf("config: ANALYZER_TEMPLATE_LENGTH (%d) below minimum (%d), clamping to min", length, minTemplateLength)
		length = minTemplateLength
	} else if length > maxTemplateLength {
		log.Printf("config: ANALYZER_TEMPLATE_LENGTH (%d) above maximum (%d), clamping to max", length, maxTemplateLength)
		length = maxTemplateLength
	}
	configuration.Analysis.TemplateLength = length

	return nil
}

// applyCAEnvVars reads cellular automaton environment variables.
// CA_RULE must be a number; the supported rule set is checked in validate.
func applyCAEnvVars(configuration *Config) error {
	configuration.CA.Enabled = ParseBoolEnv("CA_ENABLED", configuration.CA.Enabled)

	if v := os.Getenv("CA_RULE"); v != "" {
		cleaned := cleanEnvValue(v)
		rule, err := strconv.Atoi(cleaned)
		if err != nil {
			return fmt.Errorf("config: CA_RULE must be a number, got %q", v)
		}
		configuration.CA.Rule = rule
	}

	if v := os.Getenv("CA_NEIGHBORHOOD"); v != "" {
		configuration.CA.Neighborhood = strings.ToLower(cleanEnvValue(v))
	}

	configuration.CA.Iterations = ParsePositiveEnvInt("CA_ITERATIONS", configuration.CA.Iterations)
	configuration.CA.Width = ParsePositiveEnvInt("CA_WIDTH", configuration.CA.Width)

	// An explicit worker override must be usable as given. A zero or
	// negative count is rejected rather than silently replaced with the
	// CPU-count default.
	if v := os.Getenv("CA_WORKERS"); v != "" {
		workers, err := strconv.Atoi(cleanEnvValue(v))
		if err != nil {
			return fmt.Errorf("config: CA_WORKERS must be a number, got %q", v)
		}
		if workers <= 0 {
			return fmt.Errorf("config: CA_WORKERS must be positive, got %d", workers)
		}
		configuration.CA.Workers = workers
	}

	return nil
}

// applyGeneratorEnvVars reads generator environment variables.
// GENERATOR_SEED_FILE, when set, takes precedence over GENERATOR_SEED so the
// seed can be kept out of the process environment.
func applyGeneratorEnvVars(configuration *Config) error {
	if v := os.Getenv("GENERATOR_SEED"); v != "" {
		configuration.Generator.Seed = cleanEnvValue(v)
	}

	if seedFile := os.Getenv("GENERATOR_SEED_FILE"); seedFile != "" {
		seedBytes, err := readSecretFile(seedFile)
		if err != nil {
			return fmt.Errorf("config: failed to read GENERATOR_SEED_FILE: %w", err)
		}
		configuration.Generator.Seed = strings.TrimSpace(string(seedBytes))
	}

	configuration.Generator.Bits = ParsePositiveEnvInt("GENERATOR_BITS", configuration.Generator.Bits)

	return nil
}

// applyMetricsEnvVars reads Prometheus metrics server environment variables.
func applyMetricsEnvVars(configuration *Config) error {
	configuration.Metrics.Enabled = ParseBoolEnv("METRICS_ENABLED", configuration.Metrics.Enabled)
	configuration.Metrics.Bind = GetEnvDefault("METRICS_BIND", configuration.Metrics.Bind)
	configuration.Metrics.ShutdownTimeout = ParseDurationEnv("METRICS_SHUTDOWN_TIMEOUT", configuration.Metrics.ShutdownTimeout)

	return nil
}

// applyEnvironmentEnvVars normalizes ENVIRONMENT into "dev" or "prod".
// Valid inputs are "dev"/"development" and "prod"/"production"; other values error out.
func applyEnvironmentEnvVars(configuration *Config) error {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		env := strings.ToLower(strings.TrimSpace(v))

		// Normalize environment values
		switch env {
		case "dev", "development":
			configuration.Environment = EnvironmentDevelopment
		case "prod", "production":
			configuration.Environment = EnvironmentProduction
		default:
			return errors.New("config: ENVIRONMENT must be 'dev' or 'prod'")
		}
	}

	return nil
}

// validate checks that required configuration fields are present and valid.
// Returns an error if any validation fails.
func validate(configuration *Config) error {
	// Significance level must lie strictly between 0 and 1. A value outside
	// that range would make every test trivially pass or fail, so it is
	// rejected rather than clamped.
	if configuration.Analysis.Alpha <= 0 || configuration.Analysis.Alpha >= 1 {
		return fmt.Errorf("config: ANALYZER_ALPHA must be in (0, 1), got %g", configuration.Analysis.Alpha)
	}

	switch configuration.CA.Rule {
	case 30, 82, 110, 150:
	default:
		return fmt.Errorf("config: CA_RULE must be one of 30, 82, 110, 150, got %d", configuration.CA.Rule)
	}

	switch configuration.CA.Neighborhood {
	case "1d", "von-neumann", "moore":
	default:
		return fmt.Errorf("config: CA_NEIGHBORHOOD must be '1d', 'von-neumann', or 'moore', got %q", configuration.CA.Neighborhood)
	}

	// Environment validation
	if configuration.Environment != EnvironmentDevelopment && configuration.Environment != EnvironmentProduction {
		return errors.New("config: environment must be 'dev' or 'prod'")
	}

	if configuration.Metrics.Enabled && configuration.Metrics.Bind == "" {
		return errors.New("config: METRICS_BIND is required when METRICS_ENABLED=true")
	}

	return nil
}

// IsProduction returns true if the application is running in production mode.
func (cfg *Config) IsProduction() bool {
	return cfg.Environment == EnvironmentProduction
}

// IsDevelopment returns true if the application is running in development mode.
func (cfg *Config) IsDevelopment() bool {
	return cfg.Environment == EnvironmentDevelopment
}

// String returns a human-readable representation of the configuration.
func (cfg *Config) String() string {
	return "Config{" +
		"Environment=" + cfg.Environment +
		", Analysis.Alpha=" + strconv.FormatFloat(cfg.Analysis.Alpha, 'g', -1, 64) +
		", CA.Enabled=" + strconv.FormatBool(cfg.CA.Enabled) +
		", CA.Rule=" + strconv.Itoa(cfg.CA.Rule) +
		"}"
}

func readSecretFile(path string) ([]byte, error) {
	absPath, err := sanitizeAbsolutePath(path)
	if err != nil {
		return nil, err
	}
	return readFileWithinRoot(absPath)
}

func sanitizeAbsolutePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("config: empty file path")
	}
	clean := filepath.Clean(path)
	abs, err := filepath.Abs(clean)
	if err != nil {
		return "", fmt.Errorf("config: resolve path %q: %w", path, err)
	}
	return abs, nil
}

func readFileWithinRoot(absPath string) ([]byte, error) {
	dir := filepath.Dir(absPath)
	base := filepath.Base(absPath)
	f, err := os.OpenInRoot(dir, base)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("error closing file: %v", err)
		}
	}()
	return io.ReadAll(f)
}

// cleanEnvValue removes inline comments and trims whitespace from environment variable values.
// This handles systemd EnvironmentFile format where inline comments are included in the value.
// Example: "127.0.0.1:8000 # bind address" becomes "127.0.0.1:8000"
func cleanEnvValue(value string) string {
	cleaned := strings.TrimSpace(value)
	// Strip inline comments after the value
	if idx := strings.Index(cleaned, "#"); idx >= 0 {
		cleaned = strings.TrimSpace(cleaned[:idx])
	}
	return cleaned
}

// GetEnvDefault retrieves an environment variable or returns a fallback value.
// Empty or whitespace-only values are treated as unset.
// Inline comments (e.g., "value # comment") are stripped.
func GetEnvDefault(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		cleaned := cleanEnvValue(value)
		if cleaned != "" {
			return cleaned
		}
	}
	return fallback
}

// ParsePositiveEnvInt reads an integer environment variable with validation.
// Returns the fallback if the variable is unset, invalid, or non-positive.
// Invalid or non-positive values are logged before falling back.
// Inline comments (e.g., "512 # comment") are stripped.
func ParsePositiveEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	cleaned := cleanEnvValue(value)
	if cleaned == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(cleaned)
	if err != nil {
		log.Printf("config: %s invalid (%q), using fallback %d", key, value, fallback)
		return fallback
	}
	if parsed <= 0 {
		log.Printf("config: %s non-positive (%d), using fallback %d", key, parsed, fallback)
		return fallback
	}
	return parsed
}

// ParseDurationEnv reads a duration environment variable with validation.
// Values must include a unit suffix (e.g., "500ms", "30s", "5m").
// Returns the fallback if the variable is unset, invalid, or negative.
// Inline comments (e.g., "5s # comment") are stripped.
func ParseDurationEnv(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	cleaned := cleanEnvValue(value)
	if cleaned == "" {
		return fallback
	}
	hasUnit := false
	for i := 0; i < len(cleaned); i++ {
		ch := cleaned[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') {
			hasUnit = true
			break
		}
	}
	if !hasUnit {
		log.Printf("config: %s missing duration unit (%q), using fallback %s", key, value, fallback)
		return fallback
	}
	parsed, err := time.ParseDuration(cleaned)
	if err != nil {
		log.Printf("config: %s invalid (%q), using fallback %s", key, value, fallback)
		return fallback
	}
	if parsed < 0 {
		log.Printf("config: %s negative (%s), using fallback %s", key, parsed, fallback)
		return fallback
	}
	return parsed
}

// ParseBoolEnv interprets typical boolean environment values (true/false, 1/0, yes/no).
// Inline comments (e.g., "true # enable feature") are stripped.
func ParseBoolEnv(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	cleaned := cleanEnvValue(value)
	if cleaned == "" {
		return fallback
	}
	trimmed := strings.ToLower(cleaned)
	switch trimmed {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		log.Printf("config: %s has unrecognised boolean value %q, using fallback %v", key, value, fallback)
		return fallback
	}
}
