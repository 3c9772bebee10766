package llm

import (
	"fmt"
	"strings"
)

// NewProvider creates a new extraction backend based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return nil, fmt.Errorf("no extraction provider configured (supported: openai, ollama)")

	default:
		return nil, fmt.Errorf("unknown extraction provider: %s (supported: openai, ollama)", config.Provider)
	}
}
