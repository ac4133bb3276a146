package graph

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimpleStore_AddTripletDedupesBySourceChunk(t *testing.T) {
	s, err := NewSimpleStore(t.TempDir())
	require.NoError(t, err)

	t1 := Triple{Subject: "Foo", Predicate: "imports", Object: "bar", SourceChunkID: "chunk_1"}
	require.True(t, s.AddTriplet(t1))
	require.False(t, s.AddTriplet(t1))
	require.Len(t, s.GetTriplets(), 1)
}

func TestSimpleStore_PersistAndReload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "graph")
	s, err := NewSimpleStore(dir)
	require.NoError(t, err)

	s.AddTriplet(Triple{Subject: "A", Predicate: "contains", Object: "B", SourceChunkID: "c1"})
	require.NoError(t, s.Persist())

	reloaded, err := NewSimpleStore(dir)
	require.NoError(t, err)
	require.Len(t, reloaded.GetTriplets(), 1)
	require.Equal(t, "A", reloaded.GetTriplets()[0].Subject)
}

func TestSimpleStore_Clear(t *testing.T) {
	s, err := NewSimpleStore(t.TempDir())
	require.NoError(t, err)
	s.AddTriplet(Triple{Subject: "A", Predicate: "p", Object: "B"})
	require.NoError(t, s.Clear())
	require.Empty(t, s.GetTriplets())
}

func TestSimpleStore_CyclicTriplesDoNotError(t *testing.T) {
	s, err := NewSimpleStore(t.TempDir())
	require.NoError(t, err)
	require.True(t, s.AddTriplet(Triple{Subject: "A", Predicate: "calls", Object: "B"}))
	require.True(t, s.AddTriplet(Triple{Subject: "B", Predicate: "calls", Object: "A"}))
	require.Len(t, s.GetTriplets(), 2)
}
