package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/archivelab/warrantex/internal/model"
	"github.com/archivelab/warrantex/internal/segment"
)

var (
	segmentOutput    string
	segmentPreview   int
	segmentIDLine    string
	segmentNameLine  string
	segmentIDExtract string
)

// segmentCmd represents the segment command
var segmentCmd = &cobra.Command{
	Use:   "segment <input.jsonl>",
	Short: "Split OCR page text into candidate per-person blocks",
	Long: `Segment scans each page's text for person boundaries: a line opening
with an ID-like token followed within two lines by a capitalized name line.
Leading unattributed text is absorbed into the block that follows; blocks
with no detected name are reported for manual review but still emitted.

The default patterns are tuned to the RG 60 warrant log series and are
overridable for other document series.

Example:
  warrantex segment data/combined.jsonl
  warrantex segment data/combined.jsonl --output blocks.json --preview 5`,
	Args: cobra.ExactArgs(1),
	RunE: runSegment,
}

func init() {
	rootCmd.AddCommand(segmentCmd)

	defaults := model.DefaultConfig()
	segmentCmd.Flags().StringVar(&segmentOutput, "output", defaults.Segment.OutputFile, "output path for the JSON array of blocks")
	segmentCmd.Flags().IntVar(&segmentPreview, "preview", defaults.Segment.PreviewBlocks, "number of blocks to preview on the console")
	segmentCmd.Flags().StringVar(&segmentIDLine, "id-pattern", defaults.Segment.IDLinePattern, "regexp matching an ID-like line start")
	segmentCmd.Flags().StringVar(&segmentNameLine, "name-pattern", defaults.Segment.NameLinePattern, "regexp matching a name line")
	segmentCmd.Flags().StringVar(&segmentIDExtract, "id-extract-pattern", defaults.Segment.IDExtractPattern, "regexp extracting ID-like substrings")
}

func runSegment(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	cfg := model.DefaultConfig().Segment
	cfg.IDLinePattern = segmentIDLine
	cfg.NameLinePattern = segmentNameLine
	cfg.IDExtractPattern = segmentIDExtract
	cfg.OutputFile = segmentOutput
	cfg.PreviewBlocks = segmentPreview

	seg, err := segment.New(cfg)
	if err != nil {
		return err
	}

	blocks, err := seg.SegmentFile(inputPath)
	if err != nil {
		return fmt.Errorf("segment failed: %w", err)
	}

	fmt.Printf("\nExtracted %d person blocks\n\n", len(blocks))

	// Console preview of the first N blocks.
	for i, block := range blocks {
		if i >= cfg.PreviewBlocks {
			break
		}
		fmt.Println(strings.Repeat("=", 60))
		fmt.Printf("Person index: %d\n", block.PersonIndex)
		fmt.Printf("ID candidates: %v\n", block.IDCandidates)
		fmt.Printf("Name candidates: %v\n", block.NameCandidates)
		fmt.Println("TEXT PREVIEW:")
		fmt.Printf("%s ...\n\n", truncatePreview(block.RawText, cfg.PreviewChars))
	}

	// Blocks without a detected name need manual review.
	fmt.Println("\nBlocks missing names:")
	for _, block := range blocks {
		if len(block.NameCandidates) == 0 {
			fmt.Printf("⚠️ Person %d | IDs: %v\n", block.PersonIndex, block.IDCandidates)
		}
	}

	data, err := json.MarshalIndent(blocks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal blocks: %w", err)
	}
	if err := os.WriteFile(cfg.OutputFile, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", cfg.OutputFile, err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Wrote %d blocks to %s\n", len(blocks), cfg.OutputFile)
	}
	return nil
}

// truncatePreview cuts s to at most max bytes without splitting a rune;
// OCR text is routinely non-ASCII
func truncatePreview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
