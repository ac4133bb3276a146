package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// These tests exercise RelationalBackend against a live Postgres+pgvector
// instance. They're skipped unless AGENT_BRAIN_TEST_POSTGRES_DSN is set,
// since no embedded Postgres is available in this tree.
func testPostgresDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("AGENT_BRAIN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AGENT_BRAIN_TEST_POSTGRES_DSN not set, skipping relational backend tests")
	}
	return dsn
}

func TestRelationalBackend_UpsertAndSearch(t *testing.T) {
	dsn := testPostgresDSN(t)
	ctx := context.Background()

	b, err := NewRelationalBackend(ctx, dsn)
	require.NoError(t, err)
	defer b.Close()

	fp := EmbeddingFingerprint{Provider: "static", Model: "test", Dimensions: 4}
	require.NoError(t, b.Initialize(ctx, fp))
	require.NoError(t, b.Reset(ctx))

	n, err := b.Upsert(ctx,
		[]string{"chunk_a"}, [][]float32{{1, 0, 0, 0}}, []string{"hello world"},
		[]map[string]any{{"source_type": "doc", "file_path": "a.md"}})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	results, err := b.VectorSearch(ctx, []float32{1, 0, 0, 0}, 5, 0, Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "chunk_a", results[0].ChunkID)

	kw, err := b.KeywordSearch(ctx, "hello", 5, Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, kw)
}
