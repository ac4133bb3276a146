// Package query implements the fusion pipeline of spec.md section 4.8: five
// retrieval modes (vector, bm25, graph, hybrid, multi) over a store.Backend,
// with the graph store and embedder as optional collaborators.
package query

import "github.com/agent-brain/brain/internal/store"

// Mode selects which retriever(s) a request uses.
type Mode string

const (
	ModeVector Mode = "vector"
	ModeBM25   Mode = "bm25"
	ModeGraph  Mode = "graph"
	ModeHybrid Mode = "hybrid"
	ModeMulti  Mode = "multi"
)

// Default request parameters, per spec.md section 6's request body table.
const (
	DefaultTopK               = 5
	DefaultSimilarityThreshold = 0.7
	DefaultAlpha              = 0.5
	MaxTopK                   = 50
)

// Request is one query, after validation/defaulting by the caller (the HTTP
// layer owns bounds-checking of TopK/Alpha/query length).
type Request struct {
	Query               string
	Mode                Mode
	TopK                int
	SimilarityThreshold float64
	Alpha               float64
	SourceTypes         []store.SourceType
	Languages           []string
	FilePaths           []string // glob patterns matched against a result's file_path metadata
}

// Result is one fused/retrieved chunk, carrying whichever mode-specific
// fields were populated. RelatedEntities and RelationshipPath are only set
// for graph-sourced results (direct graph mode, or merged in during multi).
type Result struct {
	ChunkID         string
	Text            string
	Metadata        map[string]any
	Score           float64
	VectorScore     float64
	BM25Score       float64
	GraphScore      float64
	RelatedEntities []string
	RelationshipPath string
}

// Response is the full answer to one query request.
type Response struct {
	Results     []Result
	Mode        Mode
	QueryTimeMS int64
}
