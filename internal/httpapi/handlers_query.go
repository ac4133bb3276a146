package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/agent-brain/brain/internal/errorsx"
	"github.com/agent-brain/brain/internal/query"
	"github.com/agent-brain/brain/internal/store"
)

// Query-request body bounds, per spec.md section 6.
const (
	minQueryLen  = 1
	maxQueryLen  = 1000
	minTopK      = 1
	maxTopK      = 50
	defaultTopK  = 5
)

// queryRequestBody is the POST /query/ body.
type queryRequestBody struct {
	Query               string   `json:"query"`
	Mode                string   `json:"mode"`
	TopK                int      `json:"top_k"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	Alpha               *float64 `json:"alpha"`
	SourceTypes         []string `json:"source_types"`
	Languages           []string `json:"languages"`
	FilePaths           []string `json:"file_paths"`
}

func (b *queryRequestBody) applyDefaults(similarityThreshold, alpha float64) {
	if b.Mode == "" {
		b.Mode = string(query.ModeHybrid)
	}
	if b.TopK == 0 {
		b.TopK = defaultTopK
	}
	if b.SimilarityThreshold == nil {
		b.SimilarityThreshold = &similarityThreshold
	}
	if b.Alpha == nil {
		b.Alpha = &alpha
	}
}

func (b queryRequestBody) validate() error {
	if len(b.Query) < minQueryLen || len(b.Query) > maxQueryLen {
		return errorsx.Validation("query must be between 1 and 1000 characters")
	}
	if b.TopK < minTopK || b.TopK > maxTopK {
		return errorsx.Validation("top_k must be between 1 and 50")
	}
	if *b.SimilarityThreshold < 0 || *b.SimilarityThreshold > 1 {
		return errorsx.Validation("similarity_threshold must be between 0 and 1")
	}
	if *b.Alpha < 0 || *b.Alpha > 1 {
		return errorsx.Validation("alpha must be between 0 and 1")
	}
	switch query.Mode(b.Mode) {
	case query.ModeVector, query.ModeBM25, query.ModeGraph, query.ModeHybrid, query.ModeMulti:
	default:
		return errorsx.Validation("mode must be one of vector/bm25/graph/hybrid/multi")
	}
	return nil
}

func (b queryRequestBody) toRequest() query.Request {
	sourceTypes := make([]store.SourceType, len(b.SourceTypes))
	for i, t := range b.SourceTypes {
		sourceTypes[i] = store.SourceType(t)
	}
	return query.Request{
		Query:               b.Query,
		Mode:                query.Mode(b.Mode),
		TopK:                b.TopK,
		SimilarityThreshold: *b.SimilarityThreshold,
		Alpha:               *b.Alpha,
		SourceTypes:         sourceTypes,
		Languages:           b.Languages,
		FilePaths:           b.FilePaths,
	}
}

// resultDTO is one result entry of the JSON response.
type resultDTO struct {
	ChunkID          string         `json:"chunk_id"`
	Text             string         `json:"text"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Score            float64        `json:"score"`
	VectorScore      float64        `json:"vector_score,omitempty"`
	BM25Score        float64        `json:"bm25_score,omitempty"`
	GraphScore       float64        `json:"graph_score,omitempty"`
	RelatedEntities  []string       `json:"related_entities,omitempty"`
	RelationshipPath string         `json:"relationship_path,omitempty"`
}

type queryResponseBody struct {
	Results     []resultDTO `json:"results"`
	Mode        string      `json:"mode"`
	QueryTimeMS int64       `json:"query_time_ms"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body queryRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	body.applyDefaults(s.app.Config.Query.SimilarityThreshold, s.app.Config.Query.Alpha)
	if err := body.validate(); err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.app.Query.Query(r.Context(), body.toRequest())
	if err != nil {
		writeError(w, err)
		return
	}

	out := queryResponseBody{Mode: string(resp.Mode), QueryTimeMS: resp.QueryTimeMS}
	for _, res := range resp.Results {
		out.Results = append(out.Results, resultDTO{
			ChunkID:          res.ChunkID,
			Text:             res.Text,
			Metadata:         res.Metadata,
			Score:            res.Score,
			VectorScore:      res.VectorScore,
			BM25Score:        res.BM25Score,
			GraphScore:       res.GraphScore,
			RelatedEntities:  res.RelatedEntities,
			RelationshipPath: res.RelationshipPath,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
