package model

import "encoding/json"

// SourceRecord is one OCR page/chunk read from an input JSONL stream
type SourceRecord struct {
	Text       string         `json:"text"`                  // Raw OCR text of the page
	Metadata   map[string]any `json:"metadata"`              // Must contain a "Source-File" entry for provenance
	SourceFile string         `json:"source_file,omitempty"` // Originating JSONL file name

	// Raw is the original input line, kept verbatim for the audit column.
	// Offset is the 0-based line offset within the input stream.
	Raw    []byte `json:"-"`
	Offset int    `json:"-"`
}

// SourceID returns the Source-File metadata string, or "Unknown" when absent
func (r *SourceRecord) SourceID() string {
	if v, ok := r.Metadata["Source-File"].(string); ok && v != "" {
		return v
	}
	return "Unknown"
}

// PersonBlock is a contiguous span of page text hypothesized to describe one individual
type PersonBlock struct {
	PersonIndex    int      `json:"person_index"`    // Sequential index across the input
	PageIndex      int      `json:"page_index"`      // Line offset of the originating page record
	RawText        string   `json:"raw_text"`        // The block's lines joined with newlines
	IDCandidates   []string `json:"id_candidates"`   // Deduplicated, sorted ID-like substrings
	NameCandidates []string `json:"name_candidates"` // Deduplicated, sorted name prefixes (text before first comma)
}

// CaseEvent is one chronological entry in a person's case history
type CaseEvent struct {
	Date   string `json:"date,omitempty"` // Free-form date (e.g. 7-29-18); years run 1917-1921
	Action string `json:"action"`         // Summary of the event, e.g. "Warrant issued"
}

// UnknownStatus is the sentinel final disposition when the logs record none
const UnknownStatus = "Unknown"

// PersonRecord is one individual extracted from the warrant logs
type PersonRecord struct {
	// TextBlockIndex is the 0-based position of the source text unit within
	// one batch. It only has meaning for the duration of that batch and is
	// used to re-attach source metadata after the model call returns.
	TextBlockIndex  int         `json:"text_block_index"`
	ID              string      `json:"id,omitempty"`                // Case identifier, typically ###-#### or ####
	Name            string      `json:"name"`                        // Full name
	Alias           string      `json:"alias,omitempty"`             // Alias or other names if mentioned
	Location        string      `json:"location,omitempty"`          // City and state (e.g. St. Louis, Mo.)
	Nationality     string      `json:"nationality,omitempty"`       // Clerk shorthand: Ger, Austrian, gen, ...
	FinalStatus     string      `json:"final_status,omitempty"`      // Final disposition: Paroled, Released, To War, ...
	FinalStatusDate string      `json:"final_status_date,omitempty"` // Date the final status was reached
	Events          []CaseEvent `json:"events"`                      // Chronological list of all events
}

// ExtractionResponse is the typed document the extraction backend returns
type ExtractionResponse struct {
	People []PersonRecord `json:"people"`
}

// ParseExtractionResponse unmarshals a raw model response and applies the
// Unknown-status default to records with no recorded disposition
func ParseExtractionResponse(data []byte) (*ExtractionResponse, error) {
	var resp ExtractionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	for i := range resp.People {
		if resp.People[i].FinalStatus == "" {
			resp.People[i].FinalStatus = UnknownStatus
		}
	}
	return &resp, nil
}
