package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/archivelab/warrantex/internal/corpus"
	"github.com/archivelab/warrantex/internal/model"
)

var (
	combineInputDir string
	combineOutput   string
)

// combineCmd represents the combine command
var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Merge per-chunk OCR JSONL files into one ordered corpus",
	Long: `Combine reads every *.jsonl file in the input directory, tags each
record with its originating file name, and writes one merged stream ordered
by a (volume, page) key derived from the Source-File metadata string.

Records without a page_<N> token sort ahead of numbered pages within their
volume; ties keep original read order. A record with unparsable JSON aborts
the run - a broken chunk file should be fixed, not silently dropped.

Example:
  warrantex combine --input-dir data/json --output data/combined.jsonl`,
	Args: cobra.NoArgs,
	RunE: runCombine,
}

func init() {
	rootCmd.AddCommand(combineCmd)

	defaults := model.DefaultConfig()
	combineCmd.Flags().StringVar(&combineInputDir, "input-dir", defaults.Combine.InputDir, "directory of *.jsonl chunk files")
	combineCmd.Flags().StringVar(&combineOutput, "output", defaults.Combine.OutputFile, "merged corpus output path")
}

func runCombine(cmd *cobra.Command, args []string) error {
	if verbose {
		fmt.Fprintf(os.Stderr, "Combining: %s -> %s\n", combineInputDir, combineOutput)
	}

	count, err := corpus.NewCombiner().Combine(combineInputDir, combineOutput)
	if err != nil {
		return fmt.Errorf("combine failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Wrote %d records to %s\n", count, combineOutput)
	return nil
}
