package store

import "strconv"

// VectorStoreConfig configures the low-level HNSW vector index wrapped by
// the columnar backend. This is internal plumbing, distinct from the
// public Backend/Filter contract above: a columnar.go Backend owns one
// HNSWStore per project and never exposes VectorStoreConfig to callers.
type VectorStoreConfig struct {
	Dimensions int
	Metric     string // "cos" or "l2"
	M          int    // HNSW graph degree
	EfSearch   int    // HNSW search beam width
}

// DefaultVectorStoreConfig returns the recommended HNSW parameters for the
// given embedding dimensionality.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}

// VectorResult is the raw result shape returned by HNSWStore.Search, before
// the columnar backend maps it onto the public SearchResult type.
type VectorResult struct {
	ID       string
	Distance float32
	Score    float32
}

// ErrDimensionMismatch reports a vector whose length doesn't match the
// index's configured dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return "vector dimension mismatch: expected " + strconv.Itoa(e.Expected) + ", got " + strconv.Itoa(e.Got)
}
