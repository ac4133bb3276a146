// Package graph implements the triple store and extractors of spec.md
// section 4.5: code-metadata and (optional) LLM-based extraction, JSON
// persistence, and substring-based entity lookup at query time.
package graph

import "time"

// Triple is a single (subject, predicate, object) relationship, optionally
// typed and always traceable back to the chunk it was extracted from.
type Triple struct {
	Subject         string
	SubjectType     string
	Predicate       string
	Object          string
	ObjectType      string
	SourceChunkID   string
}

// FormattedPath renders the triple as "Subject —predicate→ Object", the
// fallback dedup key when SourceChunkID is empty.
func (t Triple) FormattedPath() string {
	return t.Subject + " —" + t.Predicate + "→ " + t.Object
}

// Metadata is the sidecar persisted alongside the triple store: counts and
// freshness, matching original_source's graph_store.py metadata file.
type Metadata struct {
	TripleCount int       `json:"triple_count"`
	LastUpdated time.Time `json:"last_updated"`
	StoreType   string    `json:"store_type"`
}

// Match is a single graph-mode query hit (spec.md section 4.5).
type Match struct {
	Entity           string
	Subject          string
	Predicate        string
	Object           string
	SourceChunkID    string
	RelationshipPath string
	GraphScore       float64
}
