package graph

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	dgraph "github.com/dominikbraun/graph"
)

// Store is the triple-store interface of spec.md section 4.5:
// add_triplet/persist/clear/get_triplets.
type Store interface {
	AddTriplet(t Triple) bool
	Persist() error
	Clear() error
	GetTriplets() []Triple
}

const (
	tripleFile   = "graph_store.json"
	metadataFile = "graph_metadata.json"
)

// SimpleStore is the default in-memory triple store, persisted as a single
// JSON file plus a metadata sidecar. Grounded on original_source's
// SimplePropertyGraphStore (storage/graph_store.py).
type SimpleStore struct {
	mu       sync.RWMutex
	dir      string
	triples  []Triple
	seen     map[string]struct{}
	graphRef dgraph.Graph[string, string] // adjacency view; traversal-only, never the source of truth
}

// NewSimpleStore creates (or opens) a triple store rooted at dir.
func NewSimpleStore(dir string) (*SimpleStore, error) {
	s := &SimpleStore{
		dir:  dir,
		seen: make(map[string]struct{}),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	s.rebuildGraphRef()
	return s, nil
}

func dedupeKey(t Triple) string {
	if t.SourceChunkID != "" {
		return t.SourceChunkID + "|" + t.FormattedPath()
	}
	return t.FormattedPath()
}

// AddTriplet inserts a triple if not already present (deduped by source
// chunk + formatted path, falling back to the path alone). Returns whether
// it was newly added.
func (s *SimpleStore) AddTriplet(t Triple) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupeKey(t)
	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	s.triples = append(s.triples, t)

	// Best-effort adjacency tracking for the higher-performance substitute;
	// a missing vertex is added lazily, an edge error never fails the add.
	_ = s.graphRef.AddVertex(t.Subject)
	_ = s.graphRef.AddVertex(t.Object)
	_ = s.graphRef.AddEdge(t.Subject, t.Object)

	return true
}

// GetTriplets returns all triples currently held.
func (s *SimpleStore) GetTriplets() []Triple {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Triple, len(s.triples))
	copy(out, s.triples)
	return out
}

// Clear empties the store in memory (does not touch disk until Persist).
func (s *SimpleStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triples = nil
	s.seen = make(map[string]struct{})
	s.rebuildGraphRefLocked()
	return nil
}

// Persist writes the triple set and metadata sidecar to disk.
func (s *SimpleStore) Persist() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	data, err := json.Marshal(s.triples)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.dir, tripleFile), data, 0o644); err != nil {
		return err
	}

	meta := Metadata{TripleCount: len(s.triples), LastUpdated: time.Now().UTC(), StoreType: "simple"}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, metadataFile), metaData, 0o644)
}

func (s *SimpleStore) load() error {
	path := filepath.Join(s.dir, tripleFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var triples []Triple
	if err := json.Unmarshal(data, &triples); err != nil {
		return err
	}
	s.triples = triples
	s.seen = make(map[string]struct{}, len(triples))
	for _, t := range triples {
		s.seen[dedupeKey(t)] = struct{}{}
	}
	return nil
}

func (s *SimpleStore) rebuildGraphRef() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildGraphRefLocked()
}

// rebuildGraphRefLocked models the "higher performance embedded graph
// database" substitute of spec.md section 4.5 behind the same Store
// interface. The adjacency view is a plain directed graph; an edge that
// dominikbraun/graph rejects (a repeated subject/object pair, for instance)
// is logged as a warning and left out, and the rebuild never errors.
func (s *SimpleStore) rebuildGraphRefLocked() {
	g := dgraph.New(func(s string) string { return s }, dgraph.Directed())
	for _, t := range s.triples {
		_ = g.AddVertex(t.Subject)
		_ = g.AddVertex(t.Object)
		if err := g.AddEdge(t.Subject, t.Object); err != nil {
			slog.Warn("graph store: adjacency edge rejected, continuing without it",
				slog.String("subject", t.Subject), slog.String("object", t.Object),
				slog.String("error", err.Error()))
		}
	}
	s.graphRef = g
}

var _ Store = (*SimpleStore)(nil)
