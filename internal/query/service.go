package query

import (
	"context"
	"fmt"
	"time"

	"github.com/agent-brain/brain/internal/embed"
	"github.com/agent-brain/brain/internal/errorsx"
	"github.com/agent-brain/brain/internal/graph"
	"github.com/agent-brain/brain/internal/store"
)

// Service orchestrates the five retrieval modes of spec.md section 4.8
// over a single store.Backend, an embedder for query vectors, and an
// optional graph store. GraphStore may be nil when graph mode is disabled
// by configuration; EnableGraph gates graph and multi-with-graph behavior
// independently of whether a store happens to be wired, matching the
// teacher's "settings can disable a wired feature" pattern.
type Service struct {
	Backend     store.Backend
	Embedder    embed.Embedder
	GraphStore  graph.Store
	EnableGraph bool
}

// New builds a query Service.
func New(backend store.Backend, embedder embed.Embedder, graphStore graph.Store, enableGraph bool) *Service {
	return &Service{Backend: backend, Embedder: embedder, GraphStore: graphStore, EnableGraph: enableGraph}
}

func withDefaults(req Request) Request {
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}
	if req.TopK > MaxTopK {
		req.TopK = MaxTopK
	}
	if req.Mode == "" {
		req.Mode = ModeHybrid
	}
	return req
}

func (s *Service) storeFilter(req Request) store.Filter {
	return store.Filter{SourceTypes: req.SourceTypes, Languages: req.Languages}
}

// Query dispatches to the requested mode and applies post-retrieval filters.
func (s *Service) Query(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	req = withDefaults(req)

	if req.Mode == ModeGraph && !s.EnableGraph {
		return Response{}, errorsx.Validation("graph mode requested but enable_graph is false")
	}

	var (
		results []Result
		err     error
	)

	switch req.Mode {
	case ModeVector:
		results, err = s.vectorSearch(ctx, req)
	case ModeBM25:
		results, err = s.bm25Search(ctx, req)
	case ModeGraph:
		results, err = s.graphSearch(ctx, req)
	case ModeHybrid:
		results, err = s.hybridSearch(ctx, req)
	case ModeMulti:
		results, err = s.multiSearch(ctx, req)
	default:
		return Response{}, errorsx.Validation(fmt.Sprintf("unknown query mode %q", req.Mode))
	}
	if err != nil {
		return Response{}, err
	}

	results = applyFilePathFilter(results, req.FilePaths)

	return Response{
		Results:     results,
		Mode:        req.Mode,
		QueryTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

func (s *Service) embedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, errorsx.Wrap(errorsx.KindProvider, err)
	}
	return vec, nil
}

func (s *Service) vectorSearch(ctx context.Context, req Request) ([]Result, error) {
	vec, err := s.embedQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	hits, err := s.Backend.VectorSearch(ctx, vec, req.TopK, req.SimilarityThreshold, s.storeFilter(req))
	if err != nil {
		return nil, errorsx.Storage(s.Backend.Name(), "vector search", err)
	}
	return toResults(hits, true), nil
}

func (s *Service) bm25Search(ctx context.Context, req Request) ([]Result, error) {
	hits, err := s.Backend.KeywordSearch(ctx, req.Query, req.TopK, s.storeFilter(req))
	if err != nil {
		return nil, errorsx.Storage(s.Backend.Name(), "keyword search", err)
	}
	return toResults(hits, false), nil
}

// graphSearch queries the triple store for candidate entities, then
// resolves each match's source chunk from the backend. Per spec.md section
// 4.8, an empty graph result set falls back to vector search.
func (s *Service) graphSearch(ctx context.Context, req Request) ([]Result, error) {
	if s.GraphStore == nil {
		return s.vectorSearch(ctx, req)
	}
	matches := graph.Query(s.GraphStore, req.Query, req.TopK)
	if len(matches) == 0 {
		return s.vectorSearch(ctx, req)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.SourceChunkID == "" {
			continue
		}
		text, metadata, ok, err := s.Backend.GetByID(ctx, m.SourceChunkID)
		if err != nil {
			return nil, errorsx.Storage(s.Backend.Name(), "get chunk by id for graph match", err)
		}
		if !ok {
			continue
		}
		results = append(results, Result{
			ChunkID:          m.SourceChunkID,
			Text:             text,
			Metadata:         metadata,
			Score:            m.GraphScore,
			GraphScore:       m.GraphScore,
			RelatedEntities:  []string{m.Subject, m.Object},
			RelationshipPath: m.RelationshipPath,
		})
	}
	if len(results) > req.TopK {
		results = results[:req.TopK]
	}
	return results, nil
}

// hybridSearch runs vector and BM25 with min(top_k, corpus_size) and
// combines with the alpha-weighted per-list-max normalization of spec.md
// section 4.8.
func (s *Service) hybridSearch(ctx context.Context, req Request) ([]Result, error) {
	limit, err := s.effectiveTopK(ctx, req)
	if err != nil {
		return nil, err
	}

	vecReq := req
	vecReq.TopK = limit
	vec, err := s.vectorSearch(ctx, vecReq)
	if err != nil {
		return nil, err
	}

	bm25Req := req
	bm25Req.TopK = limit
	bm25, err := s.bm25Search(ctx, bm25Req)
	if err != nil {
		return nil, err
	}

	alpha := req.Alpha
	if alpha == 0 {
		alpha = DefaultAlpha
	}
	return hybridFuse(vec, bm25, alpha, req.TopK), nil
}

// multiSearch combines vector, BM25, and (when enabled) graph results with
// Reciprocal Rank Fusion.
func (s *Service) multiSearch(ctx context.Context, req Request) ([]Result, error) {
	limit, err := s.effectiveTopK(ctx, req)
	if err != nil {
		return nil, err
	}

	subReq := req
	subReq.TopK = limit

	vec, err := s.vectorSearch(ctx, subReq)
	if err != nil {
		return nil, err
	}
	bm25, err := s.bm25Search(ctx, subReq)
	if err != nil {
		return nil, err
	}

	lists := []weightedList{
		{weight: 1.0, items: vec},
		{weight: 1.0, items: bm25},
	}

	if s.EnableGraph && s.GraphStore != nil {
		matches := graph.Query(s.GraphStore, req.Query, limit)
		if len(matches) > 0 {
			graphResults := make([]Result, 0, len(matches))
			for _, m := range matches {
				if m.SourceChunkID == "" {
					continue
				}
				text, metadata, ok, err := s.Backend.GetByID(ctx, m.SourceChunkID)
				if err != nil {
					return nil, errorsx.Storage(s.Backend.Name(), "get chunk by id for graph match", err)
				}
				if !ok {
					continue
				}
				graphResults = append(graphResults, Result{
					ChunkID:          m.SourceChunkID,
					Text:             text,
					Metadata:         metadata,
					GraphScore:       m.GraphScore,
					RelatedEntities:  []string{m.Subject, m.Object},
					RelationshipPath: m.RelationshipPath,
				})
			}
			lists = append(lists, weightedList{weight: 1.0, items: graphResults})
		}
	}

	return multiFuse(DefaultRRFConstant, req.TopK, lists...), nil
}

// effectiveTopK mirrors spec.md section 4.8's "min(top_k, corpus_size)" for
// the hybrid/multi modes' sub-retrievals.
func (s *Service) effectiveTopK(ctx context.Context, req Request) (int, error) {
	count, err := s.Backend.GetCount(ctx, s.storeFilter(req))
	if err != nil {
		return 0, errorsx.Storage(s.Backend.Name(), "get count", err)
	}
	if count < req.TopK {
		if count == 0 {
			return req.TopK, nil
		}
		return count, nil
	}
	return req.TopK, nil
}

func toResults(hits []store.SearchResult, fromVector bool) []Result {
	out := make([]Result, len(hits))
	for i, h := range hits {
		r := Result{ChunkID: h.ChunkID, Text: h.Text, Metadata: h.Metadata, Score: h.Score}
		if fromVector {
			r.VectorScore = h.Score
		} else {
			r.BM25Score = h.Score
		}
		out[i] = r
	}
	return out
}
