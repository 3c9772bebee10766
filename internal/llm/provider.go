package llm

import (
	"context"

	"github.com/archivelab/warrantex/internal/model"
)

// Provider defines the interface for structured-output extraction backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate submits a prompt constrained by a JSON schema and returns the
	// raw JSON document the model produced. The document is NOT trusted: the
	// caller validates it against the same schema before use.
	Generate(ctx context.Context, req GenerateRequest) ([]byte, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest contains the input for one structured-output call
type GenerateRequest struct {
	// Prompt is the user prompt carrying the OCR text
	Prompt string

	// System is the system instruction (researcher persona)
	System string

	// Schema is the JSON schema the response must conform to. It may contain
	// $defs/$ref; providers whose backend lacks native reference support are
	// responsible for flattening before transmission.
	Schema map[string]any

	// Model overrides the configured model for this call (optional)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// Config holds extraction backend configuration
type Config struct {
	// Provider name: "openai" or "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for the cloud provider
	APIKey string

	// BaseURL for custom endpoints (e.g. Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for generation; extraction wants it at or near zero
	Temperature float32
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		Timeout:     60,
		MaxTokens:   4096,
		Temperature: 0,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:    mc.Provider,
		Model:       mc.Model,
		APIKey:      mc.APIKey,
		BaseURL:     mc.BaseURL,
		Timeout:     mc.Timeout,
		MaxTokens:   mc.MaxTokens,
		Temperature: mc.Temperature,
	}
}
