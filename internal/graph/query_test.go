package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCandidateEntities_Heuristics(t *testing.T) {
	entities := ExtractCandidateEntities("How does getUserById relate to USER_TABLE and MyClass or job_worker?")

	assert.Contains(t, entities, "getUserById")
	assert.Contains(t, entities, "USER_TABLE")
	assert.Contains(t, entities, "MyClass")
	assert.Contains(t, entities, "job_worker")
	assert.NotContains(t, entities, "does")
	assert.NotContains(t, entities, "how")
}

func TestExtractCandidateEntities_CapsAtTen(t *testing.T) {
	entities := ExtractCandidateEntities("AAA BBB CCC DDD EEE FFF GGG HHH III JJJ KKK LLL")
	assert.LessOrEqual(t, len(entities), 10)
}

func TestQuery_DedupesBySourceChunk(t *testing.T) {
	s, err := NewSimpleStore(t.TempDir())
	require.NoError(t, err)

	s.AddTriplet(Triple{Subject: "JobWorker", Predicate: "calls", Object: "process", SourceChunkID: "c1"})
	s.AddTriplet(Triple{Subject: "process", Predicate: "calls", Object: "JobWorker", SourceChunkID: "c1"})

	matches := Query(s, "How does JobWorker process jobs?", 10)
	require.Len(t, matches, 1)
	assert.Equal(t, 1.0, matches[0].GraphScore)
}

func TestQuery_NoCandidatesReturnsNil(t *testing.T) {
	s, err := NewSimpleStore(t.TempDir())
	require.NoError(t, err)
	matches := Query(s, "the and for", 10)
	assert.Empty(t, matches)
}

func TestQuery_RespectsTopKPerEntity(t *testing.T) {
	s, err := NewSimpleStore(t.TempDir())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		s.AddTriplet(Triple{Subject: "Worker", Predicate: "calls", Object: "target", SourceChunkID: string(rune('a' + i))})
	}
	matches := Query(s, "Worker", 2)
	assert.Len(t, matches, 2)
}
