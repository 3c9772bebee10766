package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/archivelab/warrantex/internal/model"
)

// fakeExtractor records what it was asked to extract and answers from a
// scripted function
type fakeExtractor struct {
	batches [][]string
	singles []string
	respond func(texts []string) (*model.ExtractionResponse, error)
}

func (f *fakeExtractor) ExtractSingle(ctx context.Context, text string) (*model.ExtractionResponse, error) {
	f.singles = append(f.singles, text)
	return f.respond([]string{text})
}

func (f *fakeExtractor) ExtractBatch(ctx context.Context, texts []string) (*model.ExtractionResponse, error) {
	f.batches = append(f.batches, texts)
	return f.respond(texts)
}

// onePersonPerText answers with one person per text unit, indexed in order
func onePersonPerText(texts []string) (*model.ExtractionResponse, error) {
	resp := &model.ExtractionResponse{}
	for i := range texts {
		resp.People = append(resp.People, model.PersonRecord{
			TextBlockIndex: i,
			ID:             fmt.Sprintf("100-%d", i),
			Name:           fmt.Sprintf("Person %d", i),
			Events:         []model.CaseEvent{{Date: "7-29-18", Action: "Warrant issued"}},
		})
	}
	return resp, nil
}

type testEnv struct {
	input      string
	output     string
	checkpoint string
	log        string
}

func newTestEnv(t *testing.T, inputLines ...string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		input:      filepath.Join(dir, "input.jsonl"),
		output:     filepath.Join(dir, "out.csv"),
		checkpoint: filepath.Join(dir, "out.checkpoint"),
		log:        filepath.Join(dir, "out.log"),
	}
	if err := os.WriteFile(env.input, []byte(strings.Join(inputLines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return env
}

func (env testEnv) cfg(batchSize int) model.ExtractConfig {
	return model.ExtractConfig{
		BatchSize:      batchSize,
		OutputFile:     env.output,
		CheckpointFile: env.checkpoint,
		LogFile:        env.log,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer func() { _ = f.Close() }()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

func sourceLine(volume string, page int) string {
	return fmt.Sprintf(`{"text":"100-1\nJohn Smith, Ger\n","metadata":{"Source-File":"%s_page_%d"}}`, volume, page)
}

func TestOrchestrator_ProcessesBatchesAndPartialRemainder(t *testing.T) {
	env := newTestEnv(t,
		sourceLine("vol1", 1),
		sourceLine("vol1", 2),
		sourceLine("vol1", 3),
	)
	fake := &fakeExtractor{respond: onePersonPerText}

	o := NewOrchestrator(fake, env.cfg(2))
	o.SetStderr(io.Discard)

	stats, err := o.Run(context.Background(), env.input)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(fake.batches) != 2 {
		t.Fatalf("Expected 2 dispatches (full + remainder), got %d", len(fake.batches))
	}
	if len(fake.batches[0]) != 2 || len(fake.batches[1]) != 1 {
		t.Errorf("Expected batch sizes 2 and 1, got %d and %d", len(fake.batches[0]), len(fake.batches[1]))
	}
	if stats.Batches != 2 || stats.RecordsWritten != 3 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	rows := readCSV(t, env.output)
	if len(rows) != 4 {
		t.Fatalf("Expected header + 3 rows, got %d rows", len(rows))
	}
	if rows[0][0] != "id" || rows[0][7] != "source_file" {
		t.Errorf("Unexpected header: %v", rows[0])
	}

	// Source metadata attached per block index, not guessed.
	wantSources := []string{"vol1_page_1", "vol1_page_2", "vol1_page_3"}
	for i, want := range wantSources {
		if rows[i+1][7] != want {
			t.Errorf("Row %d: expected source %s, got %s", i+1, want, rows[i+1][7])
		}
	}

	offset, err := ReadCheckpoint(env.checkpoint)
	if err != nil {
		t.Fatalf("ReadCheckpoint failed: %v", err)
	}
	if offset != 3 {
		t.Errorf("Expected checkpoint 3, got %d", offset)
	}

	logData, err := os.ReadFile(env.log)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(logData), "Person 0 (100-0)") {
		t.Errorf("Log should list processed names/ids, got:\n%s", logData)
	}
}

func TestOrchestrator_ResumeSkipsProcessedLines(t *testing.T) {
	env := newTestEnv(t,
		sourceLine("vol1", 1),
		sourceLine("vol1", 2),
	)
	// Simulate a previous run that completed the first line.
	if err := WriteCheckpoint(env.checkpoint, 1); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}
	if err := os.WriteFile(env.output, []byte("id,name\nold-row,Old Person\n"), 0644); err != nil {
		t.Fatalf("seed output: %v", err)
	}

	fake := &fakeExtractor{respond: onePersonPerText}
	o := NewOrchestrator(fake, env.cfg(5))
	o.SetStderr(io.Discard)

	if _, err := o.Run(context.Background(), env.input); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(fake.batches) != 1 {
		t.Fatalf("Expected 1 dispatch, got %d", len(fake.batches))
	}
	for _, texts := range fake.batches {
		for _, text := range texts {
			if strings.Contains(text, "page_0") {
				t.Error("Record below checkpoint was dispatched")
			}
		}
	}
	if len(fake.batches[0]) != 1 {
		t.Errorf("Expected only the second line dispatched, got %d texts", len(fake.batches[0]))
	}

	// Resumed runs append; the pre-existing row survives and no second
	// header is written.
	data, err := os.ReadFile(env.output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.HasPrefix(string(data), "id,name\nold-row,Old Person\n") {
		t.Errorf("Resume should append to existing output, got:\n%s", data)
	}
	if strings.Count(string(data), "id,name") != 1 {
		t.Errorf("Header should appear exactly once, got:\n%s", data)
	}
}

func TestOrchestrator_OutOfRangeIndexDropped(t *testing.T) {
	env := newTestEnv(t, sourceLine("vol1", 1), sourceLine("vol1", 2))
	fake := &fakeExtractor{respond: func(texts []string) (*model.ExtractionResponse, error) {
		return &model.ExtractionResponse{People: []model.PersonRecord{
			{TextBlockIndex: 0, Name: "Kept Person"},
			{TextBlockIndex: len(texts), Name: "Hallucinated Index"}, // == batch length
			{TextBlockIndex: -1, Name: "Negative Index"},
		}}, nil
	}}

	o := NewOrchestrator(fake, env.cfg(2))
	o.SetStderr(io.Discard)

	stats, err := o.Run(context.Background(), env.input)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.RecordsDropped != 2 {
		t.Errorf("Expected 2 dropped records, got %d", stats.RecordsDropped)
	}
	if stats.RecordsWritten != 1 {
		t.Errorf("Expected 1 written record, got %d", stats.RecordsWritten)
	}

	rows := readCSV(t, env.output)
	for _, row := range rows[1:] {
		if row[1] == "Hallucinated Index" || row[1] == "Negative Index" {
			t.Errorf("Dropped record appeared in output: %v", row)
		}
	}
}

func TestOrchestrator_SingleElementBatchAttachesItsMetadata(t *testing.T) {
	env := newTestEnv(t, sourceLine("vol7", 42))
	fake := &fakeExtractor{respond: func(texts []string) (*model.ExtractionResponse, error) {
		return &model.ExtractionResponse{People: []model.PersonRecord{
			{TextBlockIndex: 0, Name: "Only Person"},
		}}, nil
	}}

	o := NewOrchestrator(fake, env.cfg(10))
	o.SetStderr(io.Discard)

	if _, err := o.Run(context.Background(), env.input); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rows := readCSV(t, env.output)
	if len(rows) != 2 {
		t.Fatalf("Expected header + 1 row, got %d", len(rows))
	}
	if rows[1][7] != "vol7_page_42" {
		t.Errorf("Expected source vol7_page_42, got %s", rows[1][7])
	}
	// Audit column carries the original line verbatim.
	if !strings.Contains(rows[1][9], `"Source-File":"vol7_page_42"`) {
		t.Errorf("Audit column should carry raw source JSON, got %s", rows[1][9])
	}
	if rows[1][5] != "Unknown" {
		t.Errorf("Expected Unknown final status default, got %q", rows[1][5])
	}
}

func TestOrchestrator_BlankLineOccupiesAnOffset(t *testing.T) {
	env := newTestEnv(t,
		sourceLine("vol1", 1),
		"",
		sourceLine("vol1", 2),
	)
	fake := &fakeExtractor{respond: onePersonPerText}

	o := NewOrchestrator(fake, env.cfg(10))
	o.SetStderr(io.Discard)

	stats, err := o.Run(context.Background(), env.input)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(fake.batches) != 1 || len(fake.batches[0]) != 2 {
		t.Fatalf("Expected one batch of 2 records, got %+v", fake.batches)
	}
	if stats.LinesConsumed != 3 {
		t.Errorf("Blank lines count as consumed offsets: expected 3, got %d", stats.LinesConsumed)
	}
	if stats.LinesSkipped != 0 {
		t.Errorf("Blank lines are not parse failures: expected 0 skipped, got %d", stats.LinesSkipped)
	}

	// The blank line keeps its line offset; the checkpoint covers it.
	offset, _ := ReadCheckpoint(env.checkpoint)
	if offset != 3 {
		t.Errorf("Expected checkpoint 3, got %d", offset)
	}
}

func TestOrchestrator_InvalidJSONLineSkipped(t *testing.T) {
	env := newTestEnv(t,
		sourceLine("vol1", 1),
		`{this is not json`,
		sourceLine("vol1", 2),
	)
	fake := &fakeExtractor{respond: onePersonPerText}

	o := NewOrchestrator(fake, env.cfg(10))
	o.SetStderr(io.Discard)

	stats, err := o.Run(context.Background(), env.input)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.LinesSkipped != 1 {
		t.Errorf("Expected 1 skipped line, got %d", stats.LinesSkipped)
	}
	if len(fake.batches) != 1 || len(fake.batches[0]) != 2 {
		t.Fatalf("Expected one batch of 2 parsable records, got %+v", fake.batches)
	}

	// The bad line still occupies its offset: checkpoint covers all 3 lines.
	offset, _ := ReadCheckpoint(env.checkpoint)
	if offset != 3 {
		t.Errorf("Expected checkpoint 3, got %d", offset)
	}
}

func TestOrchestrator_ExtractionFailureIsFatal(t *testing.T) {
	env := newTestEnv(t, sourceLine("vol1", 1))
	boom := errors.New("retries exhausted")
	fake := &fakeExtractor{respond: func([]string) (*model.ExtractionResponse, error) {
		return nil, boom
	}}

	o := NewOrchestrator(fake, env.cfg(1))
	o.SetStderr(io.Discard)

	_, err := o.Run(context.Background(), env.input)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected extraction error to be fatal, got %v", err)
	}

	// Checkpoint must still name the failed batch for the rerun.
	offset, _ := ReadCheckpoint(env.checkpoint)
	if offset != 0 {
		t.Errorf("Checkpoint moved past a failed batch: %d", offset)
	}
}

func TestOrchestrator_BatchSizeOneUsesSingleMode(t *testing.T) {
	env := newTestEnv(t, sourceLine("vol1", 1), sourceLine("vol1", 2))
	fake := &fakeExtractor{respond: func(texts []string) (*model.ExtractionResponse, error) {
		return &model.ExtractionResponse{People: []model.PersonRecord{{Name: "Solo"}}}, nil
	}}

	o := NewOrchestrator(fake, env.cfg(1))
	o.SetStderr(io.Discard)

	stats, err := o.Run(context.Background(), env.input)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(fake.singles) != 2 {
		t.Errorf("Expected 2 single-unit calls, got %d", len(fake.singles))
	}
	if len(fake.batches) != 0 {
		t.Errorf("Expected no batched calls in single mode, got %d", len(fake.batches))
	}
	if stats.RecordsWritten != 2 {
		t.Errorf("Expected 2 records written, got %d", stats.RecordsWritten)
	}
}
