package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-brain/brain/internal/graph"
	"github.com/agent-brain/brain/internal/store"
)

// fakeEmbedder returns a fixed vector regardless of input text, enough to
// exercise the query service without a real embedding provider.
type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dims)
	for i := range v {
		v[i] = 0.1
	}
	return v, nil
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = f.Embed(ctx, texts[i])
	}
	return out, nil
}
func (f *fakeEmbedder) Dimensions() int                 { return f.dims }
func (f *fakeEmbedder) ModelName() string               { return "fake" }
func (f *fakeEmbedder) Available(ctx context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                    { return nil }
func (f *fakeEmbedder) SetBatchIndex(idx int)           {}
func (f *fakeEmbedder) SetFinalBatch(isFinal bool)      {}

// fakeBackend is an in-memory store.Backend stand-in with scripted search
// results, letting each mode be tested without a real columnar/relational
// backend.
type fakeBackend struct {
	chunks      map[string]store.SearchResult
	vectorHits  []store.SearchResult
	keywordHits []store.SearchResult
	count       int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{chunks: make(map[string]store.SearchResult)}
}

func (b *fakeBackend) Initialize(ctx context.Context, fp store.EmbeddingFingerprint) error { return nil }
func (b *fakeBackend) Upsert(ctx context.Context, ids []string, embeddings [][]float32, texts []string, metadatas []map[string]any) (int, error) {
	return 0, nil
}
func (b *fakeBackend) VectorSearch(ctx context.Context, queryVec []float32, topK int, threshold float64, filter store.Filter) ([]store.SearchResult, error) {
	hits := b.vectorHits
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}
func (b *fakeBackend) KeywordSearch(ctx context.Context, queryText string, topK int, filter store.Filter) ([]store.SearchResult, error) {
	hits := b.keywordHits
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}
func (b *fakeBackend) GetCount(ctx context.Context, filter store.Filter) (int, error) { return b.count, nil }
func (b *fakeBackend) GetByID(ctx context.Context, id string) (string, map[string]any, bool, error) {
	c, ok := b.chunks[id]
	return c.Text, c.Metadata, ok, nil
}
func (b *fakeBackend) Reset(ctx context.Context) error { return nil }
func (b *fakeBackend) GetEmbeddingMetadata(ctx context.Context) (store.EmbeddingFingerprint, bool, error) {
	return store.EmbeddingFingerprint{}, false, nil
}
func (b *fakeBackend) SetEmbeddingMetadata(ctx context.Context, fp store.EmbeddingFingerprint) error {
	return nil
}
func (b *fakeBackend) Close() error  { return nil }
func (b *fakeBackend) Name() string  { return "fake" }

func TestService_VectorModeReturnsBackendHits(t *testing.T) {
	b := newFakeBackend()
	b.vectorHits = []store.SearchResult{{ChunkID: "c1", Text: "hello", Score: 0.9}}
	b.count = 10
	s := New(b, &fakeEmbedder{dims: 4}, nil, false)

	resp, err := s.Query(context.Background(), Request{Query: "hello", Mode: ModeVector, TopK: 5})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "c1", resp.Results[0].ChunkID)
	assert.Equal(t, 0.9, resp.Results[0].VectorScore)
}

func TestService_BM25ModeReturnsBackendHits(t *testing.T) {
	b := newFakeBackend()
	b.keywordHits = []store.SearchResult{{ChunkID: "c2", Text: "world", Score: 0.5}}
	s := New(b, &fakeEmbedder{dims: 4}, nil, false)

	resp, err := s.Query(context.Background(), Request{Query: "world", Mode: ModeBM25})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 0.5, resp.Results[0].BM25Score)
}

func TestService_GraphModeDisabledReturnsValidationError(t *testing.T) {
	b := newFakeBackend()
	s := New(b, &fakeEmbedder{dims: 4}, nil, false)

	_, err := s.Query(context.Background(), Request{Query: "x", Mode: ModeGraph})
	require.Error(t, err)
}

func TestService_GraphModeFallsBackToVectorWhenNoMatches(t *testing.T) {
	b := newFakeBackend()
	b.vectorHits = []store.SearchResult{{ChunkID: "c1", Text: "fallback", Score: 0.8}}
	gs, err := graph.NewSimpleStore(t.TempDir())
	require.NoError(t, err)
	s := New(b, &fakeEmbedder{dims: 4}, gs, true)

	resp, err := s.Query(context.Background(), Request{Query: "nonexistent entity", Mode: ModeGraph})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "c1", resp.Results[0].ChunkID)
}

func TestService_GraphModeResolvesChunkFromBackend(t *testing.T) {
	b := newFakeBackend()
	b.chunks["chunk_1"] = store.SearchResult{Text: "Widget contains Gadget", Metadata: map[string]any{"file_path": "a.go"}}
	gs, err := graph.NewSimpleStore(t.TempDir())
	require.NoError(t, err)
	gs.AddTriplet(graph.Triple{Subject: "Widget", Predicate: "contains", Object: "Gadget", SourceChunkID: "chunk_1"})
	s := New(b, &fakeEmbedder{dims: 4}, gs, true)

	resp, err := s.Query(context.Background(), Request{Query: "Widget", Mode: ModeGraph, TopK: 5})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "chunk_1", resp.Results[0].ChunkID)
	assert.Equal(t, 1.0, resp.Results[0].GraphScore)
}

func TestService_HybridModeCombinesVectorAndBM25(t *testing.T) {
	b := newFakeBackend()
	b.count = 10
	b.vectorHits = []store.SearchResult{
		{ChunkID: "c1", Text: "a", Score: 1.0},
		{ChunkID: "c2", Text: "b", Score: 0.5},
	}
	b.keywordHits = []store.SearchResult{
		{ChunkID: "c2", Text: "b", Score: 1.0},
	}
	s := New(b, &fakeEmbedder{dims: 4}, nil, false)

	resp, err := s.Query(context.Background(), Request{Query: "q", Mode: ModeHybrid, TopK: 5, Alpha: 0.5})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	// c2 appears in both lists, so it should outrank c1 (vector-only).
	assert.Equal(t, "c2", resp.Results[0].ChunkID)
}

func TestService_MultiModeFusesAllEnabledLists(t *testing.T) {
	b := newFakeBackend()
	b.count = 10
	b.vectorHits = []store.SearchResult{{ChunkID: "c1", Text: "a", Score: 0.9}}
	b.keywordHits = []store.SearchResult{{ChunkID: "c1", Text: "a", Score: 0.8}}
	s := New(b, &fakeEmbedder{dims: 4}, nil, false)

	resp, err := s.Query(context.Background(), Request{Query: "q", Mode: ModeMulti, TopK: 5})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "c1", resp.Results[0].ChunkID)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 0.0001)
}

func TestService_FilePathsFilterExcludesNonMatching(t *testing.T) {
	b := newFakeBackend()
	b.vectorHits = []store.SearchResult{
		{ChunkID: "c1", Text: "a", Score: 0.9, Metadata: map[string]any{"file_path": "src/main.go"}},
		{ChunkID: "c2", Text: "b", Score: 0.8, Metadata: map[string]any{"file_path": "docs/readme.md"}},
	}
	s := New(b, &fakeEmbedder{dims: 4}, nil, false)

	resp, err := s.Query(context.Background(), Request{Query: "q", Mode: ModeVector, TopK: 5, FilePaths: []string{"src/**"}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "c1", resp.Results[0].ChunkID)
}

func TestService_DefaultsAppliedWhenModeAndTopKOmitted(t *testing.T) {
	b := newFakeBackend()
	b.vectorHits = []store.SearchResult{{ChunkID: "c1", Score: 0.5}}
	b.keywordHits = []store.SearchResult{{ChunkID: "c1", Score: 0.5}}
	s := New(b, &fakeEmbedder{dims: 4}, nil, false)

	resp, err := s.Query(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, ModeHybrid, resp.Mode)
}
