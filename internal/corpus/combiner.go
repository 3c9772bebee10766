// Package corpus merges per-chunk OCR JSONL files into one ordered corpus.
package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// noPage orders records without a page_<N> token ahead of numbered pages
// within the same volume.
const noPage = -1

// maxLineBytes bounds a single JSONL line; OCR pages can run long.
const maxLineBytes = 16 * 1024 * 1024

// Combiner merges a directory of JSONL chunk files into one stream ordered
// by a (volume, page) key derived from each record's Source-File metadata
type Combiner struct {
	pageRE *regexp.Regexp
}

// NewCombiner creates a combiner with the standard page_<N> key derivation
func NewCombiner() *Combiner {
	return &Combiner{
		pageRE: regexp.MustCompile(`(?i)page_(\d+)`),
	}
}

type taggedRecord struct {
	data   map[string]any
	volume string
	page   int
}

// Combine reads every *.jsonl file under inputDir, tags each record with its
// originating file name, sorts by (volume, page), and writes the merged
// newline-delimited stream to outputFile. It returns the record count.
//
// A record with unparsable JSON aborts the whole run: a broken chunk file is
// a precondition violation, not something to paper over with a partial corpus.
func (c *Combiner) Combine(inputDir, outputFile string) (int, error) {
	info, err := os.Stat(inputDir)
	if err != nil {
		return 0, fmt.Errorf("input directory %s: %w", inputDir, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("input path %s is not a directory", inputDir)
	}

	paths, err := filepath.Glob(filepath.Join(inputDir, "*.jsonl"))
	if err != nil {
		return 0, fmt.Errorf("glob input dir: %w", err)
	}
	sort.Strings(paths)

	var records []taggedRecord
	for _, path := range paths {
		recs, err := c.readFile(path)
		if err != nil {
			return 0, err
		}
		records = append(records, recs...)
	}

	// Stable: ties keep original read order.
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].volume != records[j].volume {
			return records[i].volume < records[j].volume
		}
		return records[i].page < records[j].page
	})

	out, err := os.Create(outputFile)
	if err != nil {
		return 0, fmt.Errorf("create output file: %w", err)
	}
	defer func() { _ = out.Close() }()

	w := bufio.NewWriter(out)
	for _, rec := range records {
		line, err := json.Marshal(rec.data)
		if err != nil {
			return 0, fmt.Errorf("marshal record: %w", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return 0, fmt.Errorf("write output: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("flush output: %w", err)
	}

	return len(records), nil
}

// readFile reads all records from one JSONL chunk file
func (c *Combiner) readFile(path string) ([]taggedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var records []taggedRecord

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var data map[string]any
		if err := json.Unmarshal([]byte(line), &data); err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", path, lineNo, err)
		}

		// Keep the original chunk file name on the record.
		data["source_file"] = filepath.Base(path)

		volume, page := c.sortKey(data)
		records = append(records, taggedRecord{data: data, volume: volume, page: page})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	return records, nil
}

// sortKey derives the (volume, page) ordering key from the record's
// Source-File metadata string: the numeric page_<N> suffix is the secondary
// key and the string with that token removed is the volume-level group.
func (c *Combiner) sortKey(data map[string]any) (string, int) {
	sf := ""
	if meta, ok := data["metadata"].(map[string]any); ok {
		if v, ok := meta["Source-File"].(string); ok {
			sf = v
		}
	}

	page := noPage
	if m := c.pageRE.FindStringSubmatch(sf); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			page = n
		}
	}

	volume := strings.TrimSpace(c.pageRE.ReplaceAllString(sf, ""))
	return volume, page
}
