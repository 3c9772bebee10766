// Package segment splits raw OCR page text into candidate per-person blocks.
//
// Warrant log pages carry no reliable structural markers, so block boundaries
// are detected heuristically: a line that opens with an ID-like token starts a
// new person only when a capitalized name line appears within a short
// lookahead window. One line of OCR noise between an ID and its name is
// tolerated.
package segment

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/archivelab/warrantex/internal/model"
)

// maxLineBytes bounds a single JSONL line; OCR pages can run long.
const maxLineBytes = 16 * 1024 * 1024

// Segmenter splits page text into PersonBlocks using configurable
// line-pattern policy
type Segmenter struct {
	idLine    *regexp.Regexp
	nameLine  *regexp.Regexp
	idExtract *regexp.Regexp
	lookahead int
}

// New compiles the segmentation patterns from config
func New(cfg model.SegmentConfig) (*Segmenter, error) {
	idLine, err := regexp.Compile(cfg.IDLinePattern)
	if err != nil {
		return nil, fmt.Errorf("compile id line pattern: %w", err)
	}
	nameLine, err := regexp.Compile(cfg.NameLinePattern)
	if err != nil {
		return nil, fmt.Errorf("compile name line pattern: %w", err)
	}
	idExtract, err := regexp.Compile(cfg.IDExtractPattern)
	if err != nil {
		return nil, fmt.Errorf("compile id extract pattern: %w", err)
	}

	lookahead := cfg.Lookahead
	if lookahead <= 0 {
		lookahead = 2
	}

	return &Segmenter{
		idLine:    idLine,
		nameLine:  nameLine,
		idExtract: idExtract,
		lookahead: lookahead,
	}, nil
}

// SegmentPage splits one page's text into blocks. pageIndex tags each block
// with its originating page; startIndex is the person index assigned to the
// first emitted block, so indices stay sequential across pages.
//
// Detection is boundary-only: a page whose first content line is not itself a
// person start still accumulates into the first block, so leading
// unattributed text is absorbed into whichever block follows.
func (s *Segmenter) SegmentPage(pageIndex, startIndex int, text string) []model.PersonBlock {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, strings.TrimRight(l, " \t\r"))
	}

	var blocks []model.PersonBlock
	var current []string
	next := startIndex

	for i, line := range lines {
		if s.looksLikePersonStart(lines, i) && len(current) > 0 {
			blocks = append(blocks, s.finalize(next, pageIndex, current))
			next++
			current = nil
		}
		current = append(current, line)
	}

	// Flush the last person on the page.
	if len(current) > 0 {
		blocks = append(blocks, s.finalize(next, pageIndex, current))
	}

	return blocks
}

// looksLikePersonStart reports whether a person starts at line idx: the line
// looks like an ID and a name line appears within the lookahead window.
// ID-like lines can also be dates; requiring a nearby name disambiguates.
func (s *Segmenter) looksLikePersonStart(lines []string, idx int) bool {
	if !s.idLine.MatchString(lines[idx]) {
		return false
	}

	end := idx + 1 + s.lookahead
	if end > len(lines) {
		end = len(lines)
	}
	for _, la := range lines[idx+1 : end] {
		if s.nameLine.MatchString(strings.TrimSpace(la)) {
			return true
		}
	}

	return false
}

// finalize builds a PersonBlock from accumulated lines
func (s *Segmenter) finalize(personIndex, pageIndex int, lines []string) model.PersonBlock {
	return model.PersonBlock{
		PersonIndex:    personIndex,
		PageIndex:      pageIndex,
		RawText:        strings.Join(lines, "\n"),
		IDCandidates:   s.extractIDs(lines),
		NameCandidates: s.extractNames(lines),
	}
}

// extractIDs collects every ID-like substring found anywhere in the block
func (s *Segmenter) extractIDs(lines []string) []string {
	seen := make(map[string]bool)
	ids := []string{}
	for _, l := range lines {
		for _, id := range s.idExtract.FindAllString(l, -1) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// extractNames collects the text before the first comma on every name line
func (s *Segmenter) extractNames(lines []string) []string {
	seen := make(map[string]bool)
	names := []string{}
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if !s.nameLine.MatchString(trimmed) {
			continue
		}
		name := strings.TrimSpace(strings.SplitN(trimmed, ",", 2)[0])
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// SegmentFile reads a JSONL file of page records and segments every page,
// assigning sequential person indices across the whole file
func (s *Segmenter) SegmentFile(path string) ([]model.PersonBlock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	blocks := []model.PersonBlock{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	pageIndex := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			pageIndex++
			continue
		}

		var record model.SourceRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", path, pageIndex+1, err)
		}

		blocks = append(blocks, s.SegmentPage(pageIndex, len(blocks), record.Text)...)
		pageIndex++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	return blocks, nil
}
