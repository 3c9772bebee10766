package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/archivelab/warrantex/internal/cache"
	"github.com/archivelab/warrantex/internal/llm"
	"github.com/archivelab/warrantex/internal/model"
	"github.com/archivelab/warrantex/internal/pipeline"
)

var (
	extractOutput     string
	extractCheckpoint string
	extractLog        string
	extractBatchSize  int
	llmProvider       string
	llmModel          string
	llmBaseURL        string
	llmTimeout        int
	llmMaxTokens      int
	noCache           bool
	cacheDir          string
	requestsPerSec    float64
	burstSize         int
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <input.jsonl>",
	Short: "Run checkpointed batch extraction over a JSONL corpus",
	Long: `Extract buffers source records into fixed-size batches, submits each
batch to a structured-output model, reconciles every returned person to its
source page by block index, and appends CSV rows. The checkpoint advances
only after the rows and batch log entry are durably flushed, so a crash or
restart resumes from the last completed batch; at worst the final batch is
duplicated, never lost.

With --batch-size 1 each record is submitted alone (no index markers).

Credentials: the openai provider reads OPENAI_API_KEY; ollama reads
OLLAMA_BASE_URL when set. A .env file in the working directory is honored.

Example:
  warrantex extract data/combined.jsonl
  warrantex extract data/combined.jsonl --provider ollama --model gemma3:4b
  warrantex extract data/combined.jsonl --batch-size 20 --output results.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	defaults := model.DefaultConfig()
	extractCmd.Flags().StringVar(&extractOutput, "output", defaults.Extract.OutputFile, "CSV output path")
	extractCmd.Flags().StringVar(&extractCheckpoint, "checkpoint", defaults.Extract.CheckpointFile, "checkpoint file path")
	extractCmd.Flags().StringVar(&extractLog, "log", defaults.Extract.LogFile, "batch log file path")
	extractCmd.Flags().IntVar(&extractBatchSize, "batch-size", defaults.Extract.BatchSize, "records per model call (1 = single-unit mode)")

	extractCmd.Flags().StringVar(&llmProvider, "provider", defaults.LLM.Provider, "extraction provider (openai, ollama)")
	extractCmd.Flags().StringVar(&llmModel, "model", defaults.LLM.Model, "model name (provider-specific)")
	extractCmd.Flags().StringVar(&llmBaseURL, "base-url", "", "custom endpoint base URL")
	extractCmd.Flags().IntVar(&llmTimeout, "timeout", defaults.LLM.Timeout, "per-request timeout in seconds")
	extractCmd.Flags().IntVar(&llmMaxTokens, "max-tokens", defaults.LLM.MaxTokens, "max response tokens")

	extractCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the extraction response cache")
	extractCmd.Flags().StringVar(&cacheDir, "cache-dir", defaults.Cache.Dir, "response cache directory")
	extractCmd.Flags().Float64Var(&requestsPerSec, "rps", defaults.RateLimiting.RequestsPerSecond, "max extraction requests per second")
	extractCmd.Flags().IntVar(&burstSize, "burst", defaults.RateLimiting.BurstSize, "rate limiter burst size")
}

func runExtract(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input file %s: %w", inputPath, err)
	}

	llmCfg := llm.Config{
		Provider:  llmProvider,
		Model:     llmModel,
		BaseURL:   llmBaseURL,
		Timeout:   llmTimeout,
		MaxTokens: llmMaxTokens,
	}

	// Credentials are a precondition: fail before any output is touched.
	switch llmProvider {
	case "openai":
		llmCfg.APIKey = os.Getenv("OPENAI_API_KEY")
		if llmCfg.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && llmCfg.BaseURL == "" {
			llmCfg.BaseURL = baseURL
		}
	}

	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		return err
	}

	defaults := model.DefaultConfig()
	var responseCache cache.Cache
	if !noCache {
		responseCache = cache.NewLayeredCache(defaults.Cache.MemoryTTL, cacheDir, defaults.Cache.DiskTTL)
	}

	limiter := rate.NewLimiter(rate.Limit(requestsPerSec), burstSize)
	extractor := llm.NewExtractor(provider, llmCfg, responseCache, limiter)

	extractCfg := model.ExtractConfig{
		BatchSize:      extractBatchSize,
		OutputFile:     extractOutput,
		CheckpointFile: extractCheckpoint,
		LogFile:        extractLog,
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Input:      %s\n", inputPath)
		fmt.Fprintf(os.Stderr, "Output:     %s\n", extractOutput)
		fmt.Fprintf(os.Stderr, "Provider:   %s/%s\n", llmProvider, llmModel)
		fmt.Fprintf(os.Stderr, "Batch size: %d\n", extractBatchSize)
	}

	orch := pipeline.NewOrchestrator(extractor, extractCfg)
	stats, err := orch.Run(context.Background(), inputPath)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n✓ %d batch(es), %d record(s) written to %s\n",
		stats.Batches, stats.RecordsWritten, extractOutput)
	if stats.LinesSkipped > 0 {
		fmt.Fprintf(os.Stderr, "  %d unparsable line(s) skipped\n", stats.LinesSkipped)
	}
	if stats.RecordsDropped > 0 {
		fmt.Fprintf(os.Stderr, "  %d record(s) dropped (invalid block index)\n", stats.RecordsDropped)
	}
	return nil
}
