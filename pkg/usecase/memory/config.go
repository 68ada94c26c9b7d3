package memory

import (
	"context"
	"os"

	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"gopkg.in/yaml.v3"
)

// Documented fallback values for each tunable. An invalid or missing
// tunable is replaced by its default with a logged warning; configuration
// problems are never fatal.
const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.2
	DefaultRecentLimit         = 10
	DefaultCandidateWindow     = 100
)

// Config holds the retrieval tunables. It is constructed once at startup
// (from CLI flags or a YAML file), normalized, and passed into the
// UseCase; nothing reads configuration ad hoc mid-request.
type Config struct {
	// TopK is the maximum number of similar turns returned by context
	// retrieval. Valid range: [1, 100].
	TopK int `yaml:"top_k"`

	// SimilarityThreshold discards candidates scoring below it.
	// Valid range: [-1, 1].
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// RecentLimit is the recency retention window. Must be > 0.
	RecentLimit int `yaml:"recent_limit"`

	// CandidateWindow bounds how many recent turns are scored during
	// context retrieval instead of scanning full history. Must be > 0.
	CandidateWindow int `yaml:"candidate_window"`
}

// DefaultConfig returns a Config with every tunable at its documented
// default.
func DefaultConfig() Config {
	return Config{
		TopK:                DefaultTopK,
		SimilarityThreshold: DefaultSimilarityThreshold,
		RecentLimit:         DefaultRecentLimit,
		CandidateWindow:     DefaultCandidateWindow,
	}
}

// LoadConfig reads tunables from a YAML file. Keys absent from the file
// keep their defaults. An unreadable or malformed file falls back to the
// defaults entirely, with a warning.
func LoadConfig(ctx context.Context, path string) Config {
	logger := logging.From(ctx)

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read memory config file, using defaults", "path", path, "error", err)
		return cfg
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Warn("failed to parse memory config file, using defaults", "path", path, "error", err)
		return DefaultConfig()
	}

	return cfg
}

// Normalize validates every tunable, replacing out-of-range or missing
// values with their defaults and logging a warning for each substitution.
func (c Config) Normalize(ctx context.Context) Config {
	logger := logging.From(ctx)

	if c.TopK < 1 || c.TopK > 100 {
		logger.Warn("top_k out of range [1, 100], falling back to default",
			"value", c.TopK, "default", DefaultTopK)
		c.TopK = DefaultTopK
	}

	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		logger.Warn("similarity_threshold out of range [-1, 1], falling back to default",
			"value", c.SimilarityThreshold, "default", DefaultSimilarityThreshold)
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}

	if c.RecentLimit <= 0 {
		logger.Warn("recent_limit must be positive, falling back to default",
			"value", c.RecentLimit, "default", DefaultRecentLimit)
		c.RecentLimit = DefaultRecentLimit
	}

	if c.CandidateWindow <= 0 {
		logger.Warn("candidate_window must be positive, falling back to default",
			"value", c.CandidateWindow, "default", DefaultCandidateWindow)
		c.CandidateWindow = DefaultCandidateWindow
	}

	return c
}
