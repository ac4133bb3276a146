package graph

import (
	"regexp"
	"strings"
)

const maxQueryEntities = 10

var (
	camelCaseRe = regexp.MustCompile(`\b[a-z]+(?:[A-Z][a-z0-9]*)+\b`)
	allCapsRe   = regexp.MustCompile(`\b[A-Z][A-Z0-9_]{2,}\b`)
	capitalRe   = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*\b`)
	snakeCaseRe = regexp.MustCompile(`\b[a-z][a-z0-9]*(?:_[a-z0-9]+)+\b`)
	wordRe      = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)
)

var queryStopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"what": {}, "does": {}, "how": {}, "where": {}, "when": {}, "which": {},
	"from": {}, "into": {}, "about": {}, "have": {}, "are": {}, "was": {},
	"can": {}, "not": {}, "all": {}, "use": {}, "uses": {}, "used": {},
}

// ExtractCandidateEntities applies the heuristics of spec.md section 4.5 to
// a natural-language query: CamelCase, ALL_CAPS (len>2), Capitalized,
// snake_case, and significant lowercase words, stop-word filtered, capped
// at 10 distinct candidates in first-seen order.
func ExtractCandidateEntities(query string) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(matches []string) {
		for _, m := range matches {
			if len(out) >= maxQueryEntities {
				return
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}

	add(camelCaseRe.FindAllString(query, -1))
	add(allCapsRe.FindAllString(query, -1))
	add(capitalRe.FindAllString(query, -1))
	add(snakeCaseRe.FindAllString(query, -1))

	if len(out) < maxQueryEntities {
		var words []string
		for _, w := range wordRe.FindAllString(query, -1) {
			lower := strings.ToLower(w)
			if _, stop := queryStopWords[lower]; stop {
				continue
			}
			words = append(words, w)
		}
		add(words)
	}

	if len(out) > maxQueryEntities {
		out = out[:maxQueryEntities]
	}
	return out
}

// Query runs the graph-mode retrieval of spec.md section 4.5: for each
// candidate entity, substring-match (case-insensitive) against every
// triple's subject/object, keep at most topK per entity, and dedupe the
// overall result set by source chunk id (falling back to the formatted
// relationship path).
func Query(store Store, query string, topK int) []Match {
	entities := ExtractCandidateEntities(query)
	if len(entities) == 0 {
		return nil
	}
	triples := store.GetTriplets()

	seen := make(map[string]struct{})
	var matches []Match

	for _, entity := range entities {
		lowerEntity := strings.ToLower(entity)
		count := 0
		for _, t := range triples {
			if count >= topK {
				break
			}
			if !strings.Contains(strings.ToLower(t.Subject), lowerEntity) &&
				!strings.Contains(strings.ToLower(t.Object), lowerEntity) {
				continue
			}

			dedupeKey := t.SourceChunkID
			if dedupeKey == "" {
				dedupeKey = t.FormattedPath()
			}
			if _, exists := seen[dedupeKey]; exists {
				continue
			}
			seen[dedupeKey] = struct{}{}

			matches = append(matches, Match{
				Entity:           entity,
				Subject:          t.Subject,
				Predicate:        t.Predicate,
				Object:           t.Object,
				SourceChunkID:    t.SourceChunkID,
				RelationshipPath: t.FormattedPath(),
				GraphScore:       1.0,
			})
			count++
		}
	}
	return matches
}
