package docex

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config gathers every tunable: chunk carving, the merge confidence curve,
// and orchestration limits. All values have working defaults; a TOML file
// only needs to name what it changes.
type Config struct {
	Chunking   ChunkingConfig    `toml:"chunking"`
	Confidence ConfidenceWeights `toml:"confidence"`
	Extraction ExtractionConfig  `toml:"extraction"`
}

// ChunkingConfig mirrors SplitOptions in the config file.
type ChunkingConfig struct {
	TargetSize int `toml:"target_size"`
	Overlap    int `toml:"overlap"`
	MaxChunks  int `toml:"max_chunks"`
}

// Duration is a time.Duration that unmarshals from TOML strings such as
// "90s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std converts back to time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ExtractionConfig bounds the orchestrator's work.
type ExtractionConfig struct {
	MaxConcurrency int      `toml:"max_concurrency"` // concurrent field workers
	FieldTimeout   Duration `toml:"field_timeout"`   // per-field wall clock bound
	MaxRetries     int      `toml:"max_retries"`     // per unit of work
	RetryBackoff   Duration `toml:"retry_backoff"`   // initial backoff, doubles per attempt
	TopK           int      `toml:"top_k"`           // similarity search hits per field
}

// DefaultConfig returns the tuning used when no config file is supplied.
func DefaultConfig() Config {
	return Config{
		Chunking: ChunkingConfig{
			TargetSize: DefaultChunkSize,
			Overlap:    DefaultChunkOverlap,
			MaxChunks:  DefaultMaxChunks,
		},
		Confidence: DefaultConfidenceWeights(),
		Extraction: ExtractionConfig{
			MaxConcurrency: 4,
			FieldTimeout:   Duration(2 * time.Minute),
			MaxRetries:     2,
			RetryBackoff:   Duration(time.Second),
			TopK:           4,
		},
	}
}

// SplitOptions converts the chunking section into Split's option struct.
func (c ChunkingConfig) SplitOptions() SplitOptions {
	return SplitOptions{
		TargetSize: c.TargetSize,
		Overlap:    c.Overlap,
		MaxChunks:  c.MaxChunks,
	}
}

// LoadConfig reads a TOML config file, layering it over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot work.
func (c Config) Validate() error {
	if c.Chunking.TargetSize < 0 || c.Chunking.Overlap < 0 || c.Chunking.MaxChunks < 0 {
		return fmt.Errorf("config: chunking values must not be negative")
	}
	if c.Chunking.TargetSize > 0 && c.Chunking.Overlap >= c.Chunking.TargetSize {
		return fmt.Errorf("config: overlap %d must be smaller than target size %d",
			c.Chunking.Overlap, c.Chunking.TargetSize)
	}
	if c.Extraction.MaxConcurrency < 0 || c.Extraction.MaxRetries < 0 {
		return fmt.Errorf("config: extraction limits must not be negative")
	}
	if c.Confidence.Floor > c.Confidence.Ceiling {
		return fmt.Errorf("config: confidence floor %v above ceiling %v",
			c.Confidence.Floor, c.Confidence.Ceiling)
	}
	return nil
}
