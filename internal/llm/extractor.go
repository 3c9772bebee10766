package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/archivelab/warrantex/internal/cache"
	"github.com/archivelab/warrantex/internal/model"
)

// maxAttempts bounds the retry loop; the final failure is returned to the
// caller rather than swallowed.
const maxAttempts = 6

// Extractor turns raw OCR text into typed PersonRecords through a Provider.
// Transport, parse and schema-validation failures are all retried with
// exponential backoff (2^attempt seconds); exhaustion re-raises the last
// error. A response that validates but contains zero people is a valid
// empty result.
type Extractor struct {
	provider Provider
	config   Config
	cache    cache.Cache   // nil disables response caching
	limiter  *rate.Limiter // nil disables client-side throttling
	attempts int
	sleep    func(time.Duration)
}

// NewExtractor creates an extractor over the given backend
func NewExtractor(provider Provider, config Config, c cache.Cache, limiter *rate.Limiter) *Extractor {
	return &Extractor{
		provider: provider,
		config:   config,
		cache:    c,
		limiter:  limiter,
		attempts: maxAttempts,
		sleep:    time.Sleep,
	}
}

// Provider returns the underlying backend
func (e *Extractor) Provider() Provider {
	return e.provider
}

// ExtractSingle submits one text unit. The response schema carries no block
// index; the caller owns the unit-to-source association.
func (e *Extractor) ExtractSingle(ctx context.Context, text string) (*model.ExtractionResponse, error) {
	return e.extract(ctx, BuildSinglePrompt(text), ExtractionSchema(false))
}

// ExtractBatch submits N indexed text units in one prompt. Every returned
// person carries a text_block_index naming the unit it was found in.
func (e *Extractor) ExtractBatch(ctx context.Context, texts []string) (*model.ExtractionResponse, error) {
	return e.extract(ctx, BuildBatchPrompt(texts), ExtractionSchema(true))
}

func (e *Extractor) extract(ctx context.Context, prompt string, schema map[string]any) (*model.ExtractionResponse, error) {
	key := cache.Key(e.provider.Name(), e.config.Model, prompt)
	if e.cache != nil {
		if raw, ok := e.cache.Get(key); ok {
			if resp, err := model.ParseExtractionResponse(raw); err == nil {
				return resp, nil
			}
			// Corrupt entry: drop it and go to the backend.
			_ = e.cache.Delete(key)
		}
	}

	req := GenerateRequest{
		Prompt:    prompt,
		System:    SystemPrompt,
		Schema:    schema,
		Model:     e.config.Model,
		MaxTokens: e.config.MaxTokens,
	}

	for attempt := 0; ; attempt++ {
		raw, err := e.attemptOnce(ctx, req, schema)
		if err == nil {
			if e.cache != nil {
				_ = e.cache.Set(key, raw, 0)
			}
			return model.ParseExtractionResponse(raw)
		}

		if attempt >= e.attempts-1 {
			return nil, err
		}
		e.sleep(time.Duration(1<<attempt) * time.Second)
	}
}

// attemptOnce performs one rate-limited call and validates the response
// before it is trusted
func (e *Extractor) attemptOnce(ctx context.Context, req GenerateRequest, schema map[string]any) ([]byte, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	raw, err := e.provider.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := ValidateAgainstSchema(schema, raw); err != nil {
		return nil, err
	}

	return raw, nil
}
