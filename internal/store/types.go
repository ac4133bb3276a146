// Package store defines the storage backend abstraction (spec.md section 4.3)
// and its two concrete implementations: an embedded columnar/vector backend
// and a relational backend with a vector extension. Both honor the same
// Backend interface and produce semantically identical, normalized results.
package store

import (
	"context"
	"time"
)

// SourceType distinguishes prose chunks from code chunks.
type SourceType string

const (
	SourceTypeDoc  SourceType = "doc"
	SourceTypeCode SourceType = "code"
)

// Chunk is a contiguous piece of one source document, the atomic unit of
// retrieval (spec.md section 3).
type Chunk struct {
	ID         string // "chunk_" + hex16(md5(source + "_" + index))
	Text       string
	TokenCount int
	SourceType SourceType
	Language   string
	Metadata   map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EmbeddingFingerprint is the (provider, model, dimensions) triple that must
// match between a persisted index and the currently configured provider.
type EmbeddingFingerprint struct {
	Provider   string
	Model      string
	Dimensions int
}

// Equal reports whether two fingerprints describe the same embedding space.
func (f EmbeddingFingerprint) Equal(o EmbeddingFingerprint) bool {
	return f.Provider == o.Provider && f.Model == o.Model && f.Dimensions == o.Dimensions
}

// SearchResult is the backend-agnostic result shape. Score is always
// normalized to [0,1] with higher meaning more relevant, regardless of the
// backend's native distance metric.
type SearchResult struct {
	ChunkID  string
	Text     string
	Metadata map[string]any
	Score    float64
}

// Filter narrows vector_search/keyword_search/get_count. Where is a
// JSON-containment style filter: every key in Where must equal the
// corresponding value in a chunk's metadata. SourceTypes/Languages narrow
// keyword_search, per spec.md section 4.3's operation table.
type Filter struct {
	Where       map[string]any
	SourceTypes []SourceType
	Languages   []string
}

// Backend is the capability set every storage backend must implement
// (spec.md section 4.3). Dispatch on Backend happens once, at lifecycle
// wiring time, never per call site (spec.md section 9).
type Backend interface {
	// Initialize creates tables/collections/indexes; idempotent. Validates
	// the embedding fingerprint against what's already stored, if any.
	Initialize(ctx context.Context, fp EmbeddingFingerprint) error

	// Upsert replaces existing ids and inserts new ones. ids, embeddings,
	// texts and metadatas are parallel arrays of equal length.
	Upsert(ctx context.Context, ids []string, embeddings [][]float32, texts []string, metadatas []map[string]any) (int, error)

	// VectorSearch returns results with score >= threshold, ordered
	// descending by score.
	VectorSearch(ctx context.Context, queryVec []float32, topK int, threshold float64, filter Filter) ([]SearchResult, error)

	// KeywordSearch returns results scored by BM25/tsvector rank, normalized
	// per-query by dividing by the maximum raw score in the result set.
	KeywordSearch(ctx context.Context, queryText string, topK int, filter Filter) ([]SearchResult, error)

	// GetCount returns the number of chunks matching filter (or all chunks
	// when filter.Where is empty).
	GetCount(ctx context.Context, filter Filter) (int, error)

	// GetByID returns the chunk's text and metadata, or ok=false if absent.
	GetByID(ctx context.Context, id string) (text string, metadata map[string]any, ok bool, err error)

	// Reset drops all data and re-creates an empty schema.
	Reset(ctx context.Context) error

	// GetEmbeddingMetadata returns the stored fingerprint, or ok=false if
	// none has been established yet.
	GetEmbeddingMetadata(ctx context.Context) (fp EmbeddingFingerprint, ok bool, err error)

	// SetEmbeddingMetadata establishes the fingerprint for this index.
	SetEmbeddingMetadata(ctx context.Context, fp EmbeddingFingerprint) error

	// Close releases resources held by the backend.
	Close() error

	// Name identifies the backend for error tagging ("columnar", "relational").
	Name() string
}

// ValidateEmbeddingCompatibility is the synchronous fingerprint check of
// spec.md's operation table. It is a free function (not a Backend method)
// because it must be callable before a backend is asked to do any I/O, at
// startup, with the stored fingerprint already in hand.
func ValidateEmbeddingCompatibility(configured EmbeddingFingerprint, stored EmbeddingFingerprint, storedOK bool) error {
	if !storedOK {
		return nil
	}
	if configured.Dimensions != stored.Dimensions {
		return dimensionMismatch(configured, stored)
	}
	return nil
}
