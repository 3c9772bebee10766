package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/archivelab/warrantex/internal/model"
)

// csvHeader is the fixed output column set. raw_json_input carries the
// original source line verbatim for audit; text_block_index is the transient
// batch-position tag and means nothing across batches.
var csvHeader = []string{
	"id", "name", "alias", "location", "nationality",
	"final_status", "final_status_date", "source_file",
	"chronology", "raw_json_input", "text_block_index",
}

// ResultRecord is one reconciled extraction result: a PersonRecord with the
// source metadata the orchestrator attached deterministically
type ResultRecord struct {
	Person     model.PersonRecord
	SourceFile string
	RawJSON    string
}

// CSVSink writes reconciled records as CSV rows
type CSVSink struct {
	f *os.File
	w *csv.Writer
}

// OpenCSVSink opens the output file. A resumed run appends to existing
// output; a fresh run truncates and writes the header exactly once.
func OpenCSVSink(path string, resume bool) (*CSVSink, error) {
	if resume {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open output for append: %w", err)
		}
		return &CSVSink{f: f, w: csv.NewWriter(f)}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	sink := &CSVSink{f: f, w: csv.NewWriter(f)}
	if err := sink.w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return sink, nil
}

// Write appends one record as a CSV row
func (s *CSVSink) Write(rec ResultRecord) error {
	p := rec.Person
	row := []string{
		p.ID,
		p.Name,
		p.Alias,
		p.Location,
		p.Nationality,
		p.FinalStatus,
		p.FinalStatusDate,
		rec.SourceFile,
		FlattenEvents(p.Events),
		rec.RawJSON,
		strconv.Itoa(p.TextBlockIndex),
	}
	return s.w.Write(row)
}

// Flush pushes buffered rows to durable storage
func (s *CSVSink) Flush() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sync output: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file
func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}

// FlattenEvents renders a chronology as "date: action | date: action" in
// original order, with explicit placeholders for missing fields
func FlattenEvents(events []model.CaseEvent) string {
	parts := make([]string, 0, len(events))
	for _, e := range events {
		date := e.Date
		if date == "" {
			date = "No Date"
		}
		action := e.Action
		if action == "" {
			action = "No Action"
		}
		parts = append(parts, date+": "+action)
	}
	return strings.Join(parts, " | ")
}
