package graph

import (
	"context"
	"fmt"
	"strings"
)

// maxLLMChars bounds how much chunk text is sent to the LLM extractor
// (spec.md section 4.5: "up to ~4000 characters").
const maxLLMChars = 4000

// TripleGenerator is the narrow interface the LLM extractor depends on;
// production wiring supplies a concrete client from internal/summarize.
type TripleGenerator interface {
	GenerateTriples(ctx context.Context, prompt string) (string, error)
}

const llmExtractionPrompt = `Extract up to %d factual relationships from the text below as triples.
Use one line per triple, either:
  Subject | Predicate | Object
  Subject | SubjectType | Predicate | Object | ObjectType
Only output triple lines, nothing else.

TEXT:
%s`

// ExtractLLMTriples asks gen to extract triples from text, truncated to
// maxLLMChars, and parses its line-oriented response. It degrades to an
// empty slice (never an error) when gen is unavailable or unauthorized, per
// spec.md section 4.5.
func ExtractLLMTriples(ctx context.Context, gen TripleGenerator, text string, chunkID string, maxTriples int) []Triple {
	if gen == nil {
		return nil
	}
	if len(text) > maxLLMChars {
		text = text[:maxLLMChars]
	}

	resp, err := gen.GenerateTriples(ctx, fmt.Sprintf(llmExtractionPrompt, maxTriples, text))
	if err != nil {
		return nil
	}
	return parseTripleLines(resp, chunkID)
}

// parseTripleLines parses "S | P | O" and "S | ST | P | O | OT" lines,
// ignoring malformed ones (spec.md section 4.5).
func parseTripleLines(resp string, chunkID string) []Triple {
	var triples []Triple
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		switch len(parts) {
		case 3:
			if parts[0] == "" || parts[1] == "" || parts[2] == "" {
				continue
			}
			triples = append(triples, Triple{
				Subject: parts[0], Predicate: parts[1], Object: parts[2],
				SourceChunkID: chunkID,
			})
		case 5:
			if parts[0] == "" || parts[2] == "" || parts[3] == "" {
				continue
			}
			triples = append(triples, Triple{
				Subject: parts[0], SubjectType: parts[1],
				Predicate: parts[2],
				Object:    parts[3], ObjectType: parts[4],
				SourceChunkID: chunkID,
			})
		default:
			continue
		}
	}
	return triples
}
