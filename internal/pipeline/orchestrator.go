// Package pipeline drives resumable batched extraction over a JSONL stream.
package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/archivelab/warrantex/internal/model"
)

// maxLineBytes bounds a single JSONL line; OCR pages can run long.
const maxLineBytes = 16 * 1024 * 1024

// Extractor is the capability the orchestrator needs from the extraction
// client: submit text, or a batch of indexed texts, and get typed records back
type Extractor interface {
	ExtractSingle(ctx context.Context, text string) (*model.ExtractionResponse, error)
	ExtractBatch(ctx context.Context, texts []string) (*model.ExtractionResponse, error)
}

// RunStats summarizes one orchestrator run
type RunStats struct {
	LinesConsumed  int // input lines read past the checkpoint
	LinesSkipped   int // unparsable lines logged and skipped
	Batches        int
	RecordsWritten int
	RecordsDropped int // invalid text_block_index
}

// Orchestrator buffers source records into fixed-size batches, dispatches
// them to the extraction client, reconciles results by block index, and
// persists CSV rows, a batch log entry and the checkpoint in that order.
// A crash between dispatch and checkpoint costs at most one duplicated
// batch of output rows on resume, never a gap.
type Orchestrator struct {
	extractor Extractor
	cfg       model.ExtractConfig
	stderr    io.Writer
}

// NewOrchestrator creates an orchestrator with the given extraction client
func NewOrchestrator(extractor Extractor, cfg model.ExtractConfig) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	return &Orchestrator{
		extractor: extractor,
		cfg:       cfg,
		stderr:    os.Stderr,
	}
}

// SetStderr redirects progress and warning output (used by tests)
func (o *Orchestrator) SetStderr(w io.Writer) {
	o.stderr = w
}

// Run processes the input stream from the current checkpoint to exhaustion.
// Retry exhaustion inside the extraction client is fatal for the run: the
// checkpoint still names the failed batch, so a rerun picks it back up.
func (o *Orchestrator) Run(ctx context.Context, inputPath string) (*RunStats, error) {
	checkpoint, err := ReadCheckpoint(o.cfg.CheckpointFile)
	if err != nil {
		return nil, err
	}

	resume := false
	if checkpoint > 0 {
		if _, err := os.Stat(o.cfg.OutputFile); err == nil {
			resume = true
		}
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("input file %s: %w", inputPath, err)
	}
	defer func() { _ = in.Close() }()

	sink, err := OpenCSVSink(o.cfg.OutputFile, resume)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sink.Close() }()

	logFlags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if resume {
		logFlags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	logFile, err := os.OpenFile(o.cfg.LogFile, logFlags, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	if resume {
		fmt.Fprintf(o.stderr, "Resuming from checkpoint offset %d\n", checkpoint)
	}

	stats := &RunStats{}
	var batch []model.SourceRecord
	offset := 0

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		// Already-processed lines cost one read, nothing more.
		if offset < checkpoint {
			offset++
			continue
		}

		line := append([]byte(nil), scanner.Bytes()...)
		lineOffset := offset
		offset++
		stats.LinesConsumed++

		if len(line) == 0 || isBlank(line) {
			continue
		}

		var rec model.SourceRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			stats.LinesSkipped++
			fmt.Fprintf(o.stderr, "Skipping invalid JSON on line %d: %v\n", lineOffset+1, err)
			continue
		}
		rec.Raw = line
		rec.Offset = lineOffset

		batch = append(batch, rec)
		if len(batch) >= o.cfg.BatchSize {
			if err := o.processBatch(ctx, batch, sink, logFile, stats); err != nil {
				return stats, err
			}
			batch = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}

	// Trailing partial batch goes through the same dispatch path.
	if len(batch) > 0 {
		if err := o.processBatch(ctx, batch, sink, logFile, stats); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// processBatch runs Dispatch -> Reconcile -> Persist for one batch. The
// checkpoint moves only after the rows and the log entry have hit disk.
func (o *Orchestrator) processBatch(ctx context.Context, batch []model.SourceRecord, sink *CSVSink, logFile *os.File, stats *RunStats) error {
	first := batch[0].Offset
	last := batch[len(batch)-1].Offset
	fmt.Fprintf(o.stderr, "Processing batch (lines %d to %d)...\n", first+1, last+1)

	resp, err := o.dispatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("extract batch (lines %d to %d): %w", first+1, last+1, err)
	}
	stats.Batches++

	results := o.reconcile(batch, resp, stats)

	for _, res := range results {
		if err := sink.Write(res); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	if err := sink.Flush(); err != nil {
		return err
	}

	if err := o.logBatch(logFile, first, last, results); err != nil {
		return err
	}

	stats.RecordsWritten += len(results)
	return WriteCheckpoint(o.cfg.CheckpointFile, last+1)
}

// dispatch calls the extraction client in single-unit or batched mode
func (o *Orchestrator) dispatch(ctx context.Context, batch []model.SourceRecord) (*model.ExtractionResponse, error) {
	if o.cfg.BatchSize == 1 {
		// Single-unit mode: no index markers; the lone unit is index 0.
		return o.extractor.ExtractSingle(ctx, batch[0].Text)
	}

	texts := make([]string, len(batch))
	for i, rec := range batch {
		texts[i] = rec.Text
	}
	return o.extractor.ExtractBatch(ctx, texts)
}

// reconcile attaches source metadata to each returned person via its block
// index. An index outside [0, len(batch)) is a hallucinated link: the record
// is dropped with a warning, never written with guessed provenance.
func (o *Orchestrator) reconcile(batch []model.SourceRecord, resp *model.ExtractionResponse, stats *RunStats) []ResultRecord {
	results := make([]ResultRecord, 0, len(resp.People))
	for _, person := range resp.People {
		idx := person.TextBlockIndex
		if idx < 0 || idx >= len(batch) {
			stats.RecordsDropped++
			fmt.Fprintf(o.stderr, "Warning: model returned invalid block index %d for %q, dropping record\n", idx, person.Name)
			continue
		}

		if person.FinalStatus == "" {
			person.FinalStatus = model.UnknownStatus
		}

		src := batch[idx]
		fmt.Fprintf(o.stderr, "  > Found: %s (block %d -> %s)\n", person.Name, idx, src.SourceID())
		results = append(results, ResultRecord{
			Person:     person,
			SourceFile: src.SourceID(),
			RawJSON:    string(src.Raw),
		})
	}
	return results
}

// logBatch appends a human-readable summary of what this batch produced
func (o *Orchestrator) logBatch(logFile *os.File, first, last int, results []ResultRecord) error {
	var b []byte
	b = fmt.Appendf(b, "[%s] batch lines %d-%d: %d record(s)\n",
		time.Now().Format(time.RFC3339), first+1, last+1, len(results))
	for _, res := range results {
		id := res.Person.ID
		if id == "" {
			id = "no id"
		}
		b = fmt.Appendf(b, "  %s (%s) <- %s\n", res.Person.Name, id, res.SourceFile)
	}

	if _, err := logFile.Write(b); err != nil {
		return fmt.Errorf("write log entry: %w", err)
	}
	if err := logFile.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}
	return nil
}

func isBlank(line []byte) bool {
	for _, c := range line {
		if c != ' ' && c != '\t' && c != '\r' {
			return false
		}
	}
	return true
}
