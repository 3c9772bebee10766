package llm

import (
	"fmt"
	"sort"
	"strings"
)

// SystemPrompt is the researcher persona sent with every extraction call
const SystemPrompt = "You are a specialized historical researcher extracting " +
	"structured records from WWI-era warrant log books."

// ExtractionSchema returns the JSON schema (draft 2020-12 subset) that
// constrains extraction responses. Shared definitions live under $defs with
// $ref pointers, the way the schema is declared; backends adapt it before
// transmission (FlattenSchema for endpoints without reference support,
// StrictSchema for endpoints with strict-mode requirements). Local response
// validation always uses this base form, which every adapted variant's output
// also satisfies.
//
// batched adds the required text_block_index field that lets the model link
// each person back to the indexed text block it was found in.
func ExtractionSchema(batched bool) map[string]any {
	eventProps := map[string]any{
		"date": map[string]any{
			"type":        []string{"string", "null"},
			"description": "The date of the event (e.g., 7-29-18). Years are 1917-1921.",
		},
		"action": map[string]any{
			"type":        "string",
			"description": "Summary of the event, e.g., Warrant issued, Recommendation sent",
		},
	}

	personProps := map[string]any{
		"id": map[string]any{
			"type":        []string{"string", "null"},
			"description": "Identifier of the individual, typically format ###-#### or ####",
		},
		"name": map[string]any{
			"type":        "string",
			"description": "Full name of the individual",
		},
		"alias": map[string]any{
			"type":        []string{"string", "null"},
			"description": "Alias or other names if mentioned",
		},
		"location": map[string]any{
			"type":        []string{"string", "null"},
			"description": "City and State mentioned (e.g., St. Louis, Mo.)",
		},
		"nationality": map[string]any{
			"type":        []string{"string", "null"},
			"description": "Nationality if listed (e.g., Ger, Austrian, gen)",
		},
		"final_status": map[string]any{
			"type":        []string{"string", "null"},
			"description": "Final disposition: e.g., Paroled, Insane, Released, To War",
		},
		"final_status_date": map[string]any{
			"type":        []string{"string", "null"},
			"description": "The date the final status was reached",
		},
		"events": map[string]any{
			"type":        "array",
			"items":       map[string]any{"$ref": "#/$defs/CaseEvent"},
			"description": "Chronological list of all events for this person",
		},
	}
	personRequired := []string{"name", "events"}

	if batched {
		personProps["text_block_index"] = map[string]any{
			"type":        "integer",
			"description": "The index number (0, 1, 2...) of the text block where this individual was found.",
		}
		personRequired = []string{"text_block_index", "name", "events"}
	}

	return map[string]any{
		"$defs": map[string]any{
			"CaseEvent": map[string]any{
				"type":                 "object",
				"properties":           eventProps,
				"required":             []string{"action"},
				"additionalProperties": false,
			},
			"PersonRecord": map[string]any{
				"type":                 "object",
				"properties":           personProps,
				"required":             personRequired,
				"additionalProperties": false,
			},
		},
		"type": "object",
		"properties": map[string]any{
			"people": map[string]any{
				"type":  "array",
				"items": map[string]any{"$ref": "#/$defs/PersonRecord"},
			},
		},
		"required":             []string{"people"},
		"additionalProperties": false,
	}
}

// FlattenSchema resolves every $ref in a schema against its $defs and strips
// the $defs block, producing a self-contained schema for backends that do not
// support references. The input schema is not modified.
func FlattenSchema(schema map[string]any) map[string]any {
	defs, _ := schema["$defs"].(map[string]any)

	var resolve func(v any) any
	resolve = func(v any) any {
		switch t := v.(type) {
		case map[string]any:
			if ref, ok := t["$ref"].(string); ok {
				name := ref[strings.LastIndex(ref, "/")+1:]
				if def, ok := defs[name]; ok {
					return resolve(def)
				}
				return t
			}
			out := make(map[string]any, len(t))
			for k, val := range t {
				out[k] = resolve(val)
			}
			return out
		case []any:
			out := make([]any, len(t))
			for i, val := range t {
				out[i] = resolve(val)
			}
			return out
		default:
			return v
		}
	}

	flat := resolve(schema).(map[string]any)
	delete(flat, "$defs")
	return flat
}

// StrictSchema returns a copy of the schema adapted to strict structured
// output: every object's required list is widened to all of its declared
// properties. Optionality stays expressed through ["<type>", "null"] unions,
// so the strict variant only adds keys a conforming response carries as null.
// The input schema is not modified.
func StrictSchema(schema map[string]any) map[string]any {
	var widen func(v any) any
	widen = func(v any) any {
		switch t := v.(type) {
		case map[string]any:
			out := make(map[string]any, len(t))
			for k, val := range t {
				out[k] = widen(val)
			}
			if props, ok := out["properties"].(map[string]any); ok {
				required := make([]string, 0, len(props))
				for name := range props {
					required = append(required, name)
				}
				sort.Strings(required)
				out["required"] = required
			}
			return out
		case []any:
			out := make([]any, len(t))
			for i, val := range t {
				out[i] = widen(val)
			}
			return out
		default:
			return v
		}
	}

	return widen(schema).(map[string]any)
}

// BuildSinglePrompt constructs the prompt for one text unit
func BuildSinglePrompt(text string) string {
	return "Extract the primary individuals and their legal chronology from these warrant logs. " +
		"Include dates for all events. Ignore administrative staff or officials unless " +
		"they are the subject of the warrant.\n\n" +
		"LOG TEXT:\n" + text
}

// BuildBatchPrompt constructs one prompt from N indexed text units. Each unit
// is demarcated by an explicit index marker; the model is instructed to tag
// every returned person with the index of the block it was found in.
func BuildBatchPrompt(texts []string) string {
	var combined strings.Builder
	for idx, text := range texts {
		fmt.Fprintf(&combined, "\n--- TEXT BLOCK %d ---\n%s\n", idx, text)
	}

	return "Extract every individual from the following batch of warrant log text blocks. " +
		"Tag each person with the text_block_index of the block they were found in. " +
		"Pay attention to case IDs (###-####) and clerk shorthand for nationalities. " +
		"Nationalities are listed after the name on the same line and are abbreviated " +
		"where gen, Ger, ger, per, mean German, and Austrian might be Aus, aus, or aust.\n" +
		"BATCH DATA:\n" + combined.String()
}
