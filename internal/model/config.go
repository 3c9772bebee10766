package model

import "time"

// Config holds the complete warrantex configuration
type Config struct {
	Combine      CombineConfig   `yaml:"combine"`
	Segment      SegmentConfig   `yaml:"segment"`
	Extract      ExtractConfig   `yaml:"extract"`
	LLM          LLMConfig       `yaml:"llm"`
	Cache        CacheConfig     `yaml:"cache"`
	RateLimiting RateLimitConfig `yaml:"rate_limiting"`
}

// CombineConfig controls the corpus combiner
type CombineConfig struct {
	// InputDir is the directory scanned for *.jsonl chunk files
	InputDir string `yaml:"input_dir"`

	// OutputFile receives the merged, (volume, page)-sorted corpus
	OutputFile string `yaml:"output_file"`
}

// SegmentConfig controls the block segmenter.
// The default patterns are tuned to the RG 60 warrant log series; they are
// policy, not constants - retargeting another series means changing these.
type SegmentConfig struct {
	// IDLinePattern matches a line that opens with an ID-like token.
	// Such a line may also be a date; name lookahead disambiguates.
	IDLinePattern string `yaml:"id_line_pattern"`

	// NameLinePattern matches a capitalized name followed by a comma
	NameLinePattern string `yaml:"name_line_pattern"`

	// IDExtractPattern pulls ID-like substrings out of block lines
	IDExtractPattern string `yaml:"id_extract_pattern"`

	// Lookahead is how many following lines may separate an ID line
	// from the name line that labels it
	Lookahead int `yaml:"lookahead"`

	// OutputFile receives the JSON array of all blocks
	OutputFile string `yaml:"output_file"`

	// PreviewBlocks and PreviewChars bound the console preview
	PreviewBlocks int `yaml:"preview_blocks"`
	PreviewChars  int `yaml:"preview_chars"`
}

// ExtractConfig controls the batch orchestrator
type ExtractConfig struct {
	// BatchSize is how many source records go into one model call.
	// 1 selects single-unit mode (no index markers in the prompt).
	BatchSize int `yaml:"batch_size"`

	// OutputFile is the CSV sink
	OutputFile string `yaml:"output_file"`

	// CheckpointFile holds the next unprocessed input line offset
	CheckpointFile string `yaml:"checkpoint_file"`

	// LogFile is the append-only human-readable batch log
	LogFile string `yaml:"log_file"`
}

// LLMConfig holds extraction backend configuration
type LLMConfig struct {
	// Provider name: "openai" (cloud) or "ollama" (local)
	Provider string `yaml:"provider"`

	// Model name (provider-specific)
	Model string `yaml:"model"`

	// APIKey for the cloud provider
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL for custom endpoints (e.g. Ollama)
	BaseURL string `yaml:"base_url,omitempty"`

	// Timeout for API requests, seconds
	Timeout int `yaml:"timeout"`

	// MaxTokens for response generation
	MaxTokens int `yaml:"max_tokens"`

	// Temperature for generation; extraction wants it low
	Temperature float32 `yaml:"temperature"`
}

// CacheConfig controls the extraction response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Dir       string        `yaml:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl"`
}

// RateLimitConfig throttles calls to the extraction backend
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Combine: CombineConfig{
			InputDir:   "data/json",
			OutputFile: "data/combined.jsonl",
		},
		Segment: SegmentConfig{
			IDLinePattern:    `^\s*\d{1,4}-\d*`,
			NameLinePattern:  `^[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*,`,
			IDExtractPattern: `\b\d{1,4}-\d*\b`,
			Lookahead:        2,
			OutputFile:       "segmented_people.json",
			PreviewBlocks:    20,
			PreviewChars:     500,
		},
		Extract: ExtractConfig{
			BatchSize:      10,
			OutputFile:     "warrant_results.csv",
			CheckpointFile: "warrant_results.checkpoint",
			LogFile:        "warrant_results.log",
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "",
			Timeout:     60,
			MaxTokens:   4096,
			Temperature: 0,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".warrantex-cache",
			MemoryTTL: 1 * time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 1,
			BurstSize:         2,
		},
	}
}
