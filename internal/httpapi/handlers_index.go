package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/agent-brain/brain/internal/errorsx"
	"github.com/agent-brain/brain/internal/jobservice"
)

// Index-request body bounds, per spec.md section 6.
const (
	minChunkSize    = 128
	maxChunkSize    = 2048
	defaultChunkSize = 512
	minChunkOverlap = 0
	maxChunkOverlap = 200
	defaultOverlap  = 50
)

// indexRequestBody is the POST /index/ and /index/add body.
type indexRequestBody struct {
	FolderPath         string   `json:"folder_path"`
	ChunkSize          int      `json:"chunk_size"`
	ChunkOverlap       int      `json:"chunk_overlap"`
	Recursive          *bool    `json:"recursive"`
	IncludeCode        bool     `json:"include_code"`
	SupportedLanguages []string `json:"supported_languages"`
	CodeChunkStrategy  string   `json:"code_chunk_strategy"`
	IncludePatterns    []string `json:"include_patterns"`
	ExcludePatterns    []string `json:"exclude_patterns"`
	GenerateSummaries  bool     `json:"generate_summaries"`
}

func (b *indexRequestBody) applyDefaults() {
	if b.ChunkSize == 0 {
		b.ChunkSize = defaultChunkSize
	}
	if b.ChunkOverlap == 0 {
		b.ChunkOverlap = defaultOverlap
	}
	if b.Recursive == nil {
		t := true
		b.Recursive = &t
	}
	if b.CodeChunkStrategy == "" {
		b.CodeChunkStrategy = "text_based"
	}
}

func (b indexRequestBody) validate() error {
	if b.FolderPath == "" {
		return errorsx.Validation("folder_path is required")
	}
	if b.ChunkSize < minChunkSize || b.ChunkSize > maxChunkSize {
		return errorsx.Validation("chunk_size must be between 128 and 2048")
	}
	if b.ChunkOverlap < minChunkOverlap || b.ChunkOverlap > maxChunkOverlap {
		return errorsx.Validation("chunk_overlap must be between 0 and 200")
	}
	if b.CodeChunkStrategy != "ast_aware" && b.CodeChunkStrategy != "text_based" {
		return errorsx.Validation("code_chunk_strategy must be ast_aware or text_based")
	}
	return nil
}

func (b indexRequestBody) toEnqueueRequest() jobservice.EnqueueRequest {
	return jobservice.EnqueueRequest{
		FolderPath:         b.FolderPath,
		IncludeCode:        b.IncludeCode,
		ChunkSize:          b.ChunkSize,
		ChunkOverlap:       b.ChunkOverlap,
		Recursive:          *b.Recursive,
		GenerateSummaries:  b.GenerateSummaries,
		SupportedLanguages: b.SupportedLanguages,
		IncludePatterns:    b.IncludePatterns,
		ExcludePatterns:    b.ExcludePatterns,
	}
}

// enqueueResponse is the JSON body of a successful (or deduplicated)
// POST /index/ or /index/add.
type enqueueResponse struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	QueuePosition int    `json:"queue_position"`
	QueueLength   int    `json:"queue_length"`
	Message       string `json:"message,omitempty"`
	DedupeHit     bool   `json:"dedupe_hit,omitempty"`
}

func (s *Server) handleIndexCreate(w http.ResponseWriter, r *http.Request) {
	s.handleEnqueue(w, r, "index")
}

func (s *Server) handleIndexAdd(w http.ResponseWriter, r *http.Request) {
	s.handleEnqueue(w, r, "add")
}

// handleEnqueue decodes and validates the body, enforces the 429
// backpressure check (not jobservice's responsibility, per its own doc
// comment), then enqueues. force/allow_external are read from query
// params since they modify enqueue behavior rather than describing the
// job itself.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request, operation string) {
	var body indexRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	body.applyDefaults()
	if err := body.validate(); err != nil {
		writeError(w, err)
		return
	}

	stats := s.app.Jobs.Stats()
	maxQueue := s.app.Config.Queue.MaxQueueSize
	if maxQueue > 0 && stats.Pending+stats.Running >= maxQueue {
		writeError(w, errorsx.Capacity("job queue is full, retry later"))
		return
	}

	force := r.URL.Query().Get("force") == "true"
	allowExternal := r.URL.Query().Get("allow_external") == "true"

	result, err := s.app.Jobs.Enqueue(body.toEnqueueRequest(), operation, force, allowExternal)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusAccepted
	writeJSON(w, status, enqueueResponse{
		JobID:         result.JobID,
		Status:        string(result.Status),
		QueuePosition: result.QueuePosition,
		QueueLength:   result.QueueLength,
		Message:       result.Message,
		DedupeHit:     result.DedupeHit,
	})
}

// handleIndexReset refuses to reset while any job is running, per
// spec.md section 6's 409 case for DELETE /index/.
func (s *Server) handleIndexReset(w http.ResponseWriter, r *http.Request) {
	stats := s.app.Jobs.Stats()
	if stats.Running > 0 {
		writeError(w, errorsx.Conflict("cannot reset while a job is running"))
		return
	}
	if err := s.app.Backend.Reset(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	if s.app.GraphStore != nil {
		if err := s.app.GraphStore.Clear(); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// jobSummary is the list-view shape for GET /index/jobs/.
type jobSummary struct {
	ID         string `json:"id"`
	FolderPath string `json:"folder_path"`
	Operation  string `json:"operation"`
	Status     string `json:"status"`
	EnqueuedAt string `json:"enqueued_at"`
}

type jobsListResponse struct {
	Jobs      []jobSummary `json:"jobs"`
	Total     int          `json:"total"`
	Pending   int          `json:"pending"`
	Running   int          `json:"running"`
	Completed int          `json:"completed"`
	Failed    int          `json:"failed"`
}

func (s *Server) handleJobsList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	result := s.app.Jobs.List(limit, offset)
	resp := jobsListResponse{
		Total:     result.Total,
		Pending:   result.Pending,
		Running:   result.Running,
		Completed: result.Completed,
		Failed:    result.Failed,
	}
	for _, job := range result.Jobs {
		resp.Jobs = append(resp.Jobs, jobSummary{
			ID:         job.ID,
			FolderPath: job.FolderPath,
			Operation:  job.Operation,
			Status:     string(job.Status),
			EnqueuedAt: job.EnqueuedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job := s.app.Jobs.Get(id)
	if job == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "job not found", Details: map[string]string{"job_id": id}})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleJobCancel distinguishes "job not found" (404, routing-level) from
// every other failure the job service can report (409 conflict for an
// already-finished job, via writeError's Kind mapping).
func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.app.Jobs.Get(id) == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "job not found", Details: map[string]string{"job_id": id}})
		return
	}
	status, message, err := s.app.Jobs.Cancel(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status, "message": message})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
