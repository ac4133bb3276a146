package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/agent-brain/brain/internal/embed"
	"github.com/agent-brain/brain/internal/store"
)

// healthResponse is the overall status of GET /health/.
type healthResponse struct {
	Status string `json:"status"` // healthy | indexing | degraded | unhealthy
}

// handleHealth reports overall health without touching storage; the
// embedder's Available check may contact the provider (Ollama and MLX do
// an HTTP round trip). A running worker means "indexing", an unreachable
// embedder means "degraded", otherwise "healthy". It never returns
// "unhealthy" itself — that status is reserved for a process that can't
// even serve this endpoint, which a caller observes as a connection
// failure rather than a response body.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if s.app.Worker.IsRunning() && s.app.Worker.CurrentJob() != nil {
		status = "indexing"
	} else if !s.app.Embedder.Available(r.Context()) {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: status})
}

// healthStatusResponse is the detailed counters of GET /health/status.
type healthStatusResponse struct {
	TotalDocuments        int      `json:"total_documents"`
	TotalChunks           int      `json:"total_chunks"`
	QueuePending          int      `json:"queue_pending"`
	QueueRunning          int      `json:"queue_running"`
	CurrentJobID          string   `json:"current_job_id,omitempty"`
	CurrentJobElapsedMS   int64    `json:"current_job_elapsed_ms,omitempty"`
	IndexedFolders        []string `json:"indexed_folders"`
	GraphEnabled          bool     `json:"graph_enabled"`
	GraphTripletCount     int      `json:"graph_triplet_count,omitempty"`
}

// handleHealthStatus reports queue/storage/graph counters. Like
// handleHealth, it never blocks: GetCount and QueueStats are in-memory or
// single-statement lookups, and the indexed-folder list is derived from
// already-loaded queue records rather than a filesystem walk.
func (s *Server) handleHealthStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalChunks, err := s.app.Backend.GetCount(ctx, store.Filter{})
	if err != nil {
		writeError(w, err)
		return
	}

	stats := s.app.Jobs.Stats()

	resp := healthStatusResponse{
		TotalDocuments: totalChunks, // one chunk-producing document maps to >=1 chunk; exact document counts aren't tracked separately
		TotalChunks:    totalChunks,
		QueuePending:   stats.Pending,
		QueueRunning:   stats.Running,
		IndexedFolders: s.indexedFolders(),
		GraphEnabled:   s.app.Config.Graph.Enabled,
	}
	if stats.CurrentJobID != "" {
		resp.CurrentJobID = stats.CurrentJobID
		resp.CurrentJobElapsedMS = stats.CurrentJobRunningTimeMS
	}
	if s.app.GraphStore != nil {
		resp.GraphTripletCount = len(s.app.GraphStore.GetTriplets())
	}

	writeJSON(w, http.StatusOK, resp)
}

// indexedFolders returns the distinct folder paths of every job that has
// ever completed successfully, in first-seen order.
func (s *Server) indexedFolders() []string {
	records := s.app.Jobs.List(1000, 0)
	seen := make(map[string]struct{}, len(records.Jobs))
	var folders []string
	for _, rec := range records.Jobs {
		if rec.Status != "done" {
			continue
		}
		if _, ok := seen[rec.FolderPath]; ok {
			continue
		}
		seen[rec.FolderPath] = struct{}{}
		folders = append(folders, rec.FolderPath)
	}
	return folders
}

// providerStatus describes one configured provider's health.
type providerStatus struct {
	Name        string `json:"name"`
	Configured  bool   `json:"configured"`
	Healthy     bool   `json:"healthy"`
	Model       string `json:"model,omitempty"`
	Error       string `json:"error,omitempty"`
}

type healthProvidersResponse struct {
	Embedding     providerStatus `json:"embedding"`
	Summarization providerStatus `json:"summarization"`
}

// handleHealthProviders pings each configured provider with a short
// timeout so an unreachable provider can't hang the health check.
func (s *Server) handleHealthProviders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	probe := embed.ProbeProvider(ctx, "embedding", s.app.Embedder)
	embedding := providerStatus{
		Name:       "embedding",
		Configured: s.app.Config.Embedding.Provider != "",
		Model:      probe.Model,
		Healthy:    probe.Healthy,
		Error:      probe.Error,
	}

	summarization := providerStatus{
		Name:       "summarization",
		Configured: s.app.Config.Summarization.Provider != "",
		Model:      s.app.Summarizer.ModelName(),
	}
	summarization.Healthy = s.app.Summarizer.Available(ctx)
	if !summarization.Healthy {
		summarization.Error = "provider unreachable"
	}

	writeJSON(w, http.StatusOK, healthProvidersResponse{Embedding: embedding, Summarization: summarization})
}
