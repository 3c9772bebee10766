package corpus

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeJSONL(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func readOutput(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer func() { _ = f.Close() }()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("parse output line: %v", err)
		}
		records = append(records, rec)
	}
	return records
}

func sourceFileOf(rec map[string]any) string {
	meta, _ := rec["metadata"].(map[string]any)
	sf, _ := meta["Source-File"].(string)
	return sf
}

func TestCombine_SortsByVolumeAndPage(t *testing.T) {
	dir := t.TempDir()
	writeJSONL(t, dir, "chunk_b.jsonl",
		`{"text":"p12","metadata":{"Source-File":"vol1_page_12"}}`,
		`{"text":"p3","metadata":{"Source-File":"vol1_page_3"}}`,
	)
	writeJSONL(t, dir, "chunk_a.jsonl",
		`{"text":"v2","metadata":{"Source-File":"vol2_page_1"}}`,
		`{"text":"cover","metadata":{"Source-File":"vol1_cover"}}`,
	)

	out := filepath.Join(dir, "combined.jsonl")
	count, err := NewCombiner().Combine(dir, out)
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	if count != 4 {
		t.Errorf("Expected 4 records, got %d", count)
	}

	records := readOutput(t, out)
	if len(records) != 4 {
		t.Fatalf("Expected 4 output records, got %d", len(records))
	}

	got := make([]string, len(records))
	for i, rec := range records {
		got[i] = sourceFileOf(rec)
	}
	// vol1_cover has no page token: it groups under volume "vol1_cover",
	// which sorts between vol1_ (page-stripped) and vol2_.
	want := []string{"vol1_page_3", "vol1_page_12", "vol1_cover", "vol2_page_1"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s (order %v)", i, want[i], got[i], got)
		}
	}
}

func TestCombine_TagsSourceFile(t *testing.T) {
	dir := t.TempDir()
	writeJSONL(t, dir, "chunk_01.jsonl",
		`{"text":"a","metadata":{"Source-File":"vol1_page_1"}}`,
	)

	out := filepath.Join(dir, "combined.jsonl")
	if _, err := NewCombiner().Combine(dir, out); err != nil {
		t.Fatalf("Combine failed: %v", err)
	}

	records := readOutput(t, out)
	if records[0]["source_file"] != "chunk_01.jsonl" {
		t.Errorf("Expected source_file chunk_01.jsonl, got %v", records[0]["source_file"])
	}
}

func TestCombine_NoPageSortsBeforeNumbered(t *testing.T) {
	dir := t.TempDir()
	writeJSONL(t, dir, "chunk.jsonl",
		`{"text":"a","metadata":{"Source-File":"vol1 page_2"}}`,
		`{"text":"b","metadata":{"Source-File":"vol1"}}`,
	)

	out := filepath.Join(dir, "combined.jsonl")
	if _, err := NewCombiner().Combine(dir, out); err != nil {
		t.Fatalf("Combine failed: %v", err)
	}

	records := readOutput(t, out)
	// Both share volume key "vol1"; the record without a page token takes
	// the sentinel and sorts first.
	if sourceFileOf(records[0]) != "vol1" {
		t.Errorf("Expected no-page record first, got %s", sourceFileOf(records[0]))
	}
}

func TestCombine_StableAmongEqualKeys(t *testing.T) {
	dir := t.TempDir()
	writeJSONL(t, dir, "chunk.jsonl",
		`{"text":"first","metadata":{"Source-File":"vol1_page_5"}}`,
		`{"text":"second","metadata":{"Source-File":"vol1_page_5"}}`,
		`{"text":"third","metadata":{"Source-File":"vol1_page_5"}}`,
	)

	out := filepath.Join(dir, "combined.jsonl")
	if _, err := NewCombiner().Combine(dir, out); err != nil {
		t.Fatalf("Combine failed: %v", err)
	}

	records := readOutput(t, out)
	want := []string{"first", "second", "third"}
	for i, rec := range records {
		if rec["text"] != want[i] {
			t.Errorf("Position %d: expected text %s, got %v", i, want[i], rec["text"])
		}
	}
}

func TestCombine_InvalidJSONAborts(t *testing.T) {
	dir := t.TempDir()
	writeJSONL(t, dir, "chunk.jsonl",
		`{"text":"ok","metadata":{"Source-File":"vol1_page_1"}}`,
		`{not json`,
	)

	out := filepath.Join(dir, "combined.jsonl")
	if _, err := NewCombiner().Combine(dir, out); err == nil {
		t.Fatal("Expected error for unparsable record, got nil")
	}
}

func TestCombine_MissingInputDir(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "combined.jsonl")
	if _, err := NewCombiner().Combine(filepath.Join(dir, "nope"), out); err == nil {
		t.Fatal("Expected error for missing input directory, got nil")
	}
}

func TestCombine_OrdersPagesWithinVolume(t *testing.T) {
	// End-to-end ordering check from the corpus scenario: page 3 before
	// page 4 under the same volume key.
	dir := t.TempDir()
	writeJSONL(t, dir, "chunk.jsonl",
		`{"text":"100-1\nJohn Smith, Ger\n","metadata":{"Source-File":"vol1_page_4"}}`,
		`{"text":"100-1\nJohn Smith, Ger\n","metadata":{"Source-File":"vol1_page_3"}}`,
	)

	out := filepath.Join(dir, "combined.jsonl")
	if _, err := NewCombiner().Combine(dir, out); err != nil {
		t.Fatalf("Combine failed: %v", err)
	}

	records := readOutput(t, out)
	if sourceFileOf(records[0]) != "vol1_page_3" || sourceFileOf(records[1]) != "vol1_page_4" {
		t.Errorf("Expected page 3 before page 4, got %s then %s",
			sourceFileOf(records[0]), sourceFileOf(records[1]))
	}
}
