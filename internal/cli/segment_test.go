package cli

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncatePreview_ShortTextUntouched(t *testing.T) {
	if got := truncatePreview("100-1\nSmith, Ger", 500); got != "100-1\nSmith, Ger" {
		t.Errorf("Short text should pass through, got %q", got)
	}
}

func TestTruncatePreview_DoesNotSplitRunes(t *testing.T) {
	// OCR output of the ledgers carries accented names; a byte-level cut in
	// the middle of one must back off to the previous rune boundary.
	text := "Müller, Ger" // ü spans bytes 1-2
	got := truncatePreview(text, 2)
	if got != "M" {
		t.Errorf("Expected cut before the split rune, got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Errorf("Truncated preview is not valid UTF-8: %q", got)
	}
}

func TestTruncatePreview_CutsOnExactBoundary(t *testing.T) {
	text := strings.Repeat("a", 10)
	if got := truncatePreview(text, 4); got != "aaaa" {
		t.Errorf("Expected 4-byte cut, got %q", got)
	}
}
