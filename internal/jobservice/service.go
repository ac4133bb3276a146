// Package jobservice is the API-facing layer over the job queue: path
// validation, deduplication, enqueueing, listing, and cancellation.
// Grounded on original_source's JobQueueService (queue/job_service.py).
package jobservice

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/agent-brain/brain/internal/errorsx"
	"github.com/agent-brain/brain/internal/queue"
)

// EnqueueRequest is the indexing request payload, mirroring IndexRequest
// in the original API.
type EnqueueRequest struct {
	FolderPath         string
	IncludeCode        bool
	ChunkSize          int
	ChunkOverlap       int
	Recursive          bool
	GenerateSummaries  bool
	SupportedLanguages []string
	IncludePatterns    []string
	ExcludePatterns    []string
}

// EnqueueResult is the response to a successful (or deduplicated) enqueue.
type EnqueueResult struct {
	JobID         string
	Status        queue.Status
	QueuePosition int
	QueueLength   int
	Message       string
	DedupeHit     bool
}

// ListResult is a paginated, summarized view of the queue.
type ListResult struct {
	Jobs      []*queue.Record
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
}

// Service is the API-facing job queue façade. Backpressure (rejecting
// enqueues when the queue is saturated) is enforced by the HTTP layer,
// not here, matching the original's "backpressure handled at the router
// level" division of responsibility.
type Service struct {
	store       *queue.Store
	projectRoot string // resolved absolute path; empty disables path validation
}

// New creates a Service. projectRoot may be empty to skip path
// validation entirely (any folder path is accepted).
func New(store *queue.Store, projectRoot string) (*Service, error) {
	resolved := ""
	if projectRoot != "" {
		abs, err := filepath.Abs(projectRoot)
		if err != nil {
			return nil, fmt.Errorf("resolve project root: %w", err)
		}
		resolved = abs
	}
	return &Service{store: store, projectRoot: resolved}, nil
}

func (s *Service) validatePath(path string, allowExternal bool) (string, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return "", errorsx.Validation(fmt.Sprintf("invalid folder path %q: %v", path, err))
	}
	if s.projectRoot == "" || allowExternal {
		return resolved, nil
	}
	rel, err := filepath.Rel(s.projectRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errorsx.Validation(fmt.Sprintf(
			"path %q is outside project root %q; use allow_external to index paths outside the project",
			resolved, s.projectRoot))
	}
	return resolved, nil
}

// Enqueue validates the path, computes the dedupe key, and either
// returns the existing in-flight job (dedupe hit) or appends a new one.
func (s *Service) Enqueue(req EnqueueRequest, operation string, force, allowExternal bool) (*EnqueueResult, error) {
	if operation == "" {
		operation = "index"
	}

	resolved, err := s.validatePath(req.FolderPath, allowExternal)
	if err != nil {
		return nil, err
	}

	dedupeKey := queue.DedupeKey(resolved, req.IncludeCode, operation, req.IncludePatterns, req.ExcludePatterns)

	if !force {
		if existing := s.store.FindByDedupeKey(dedupeKey); existing != nil {
			position := 0
			for i, j := range s.store.PendingFIFO() {
				if j.ID == existing.ID {
					position = i
					break
				}
			}
			return &EnqueueResult{
				JobID:         existing.ID,
				Status:        existing.Status,
				QueuePosition: position,
				QueueLength:   s.store.QueueLength(),
				Message:       fmt.Sprintf("existing job found for %s", resolved),
				DedupeHit:     true,
			}, nil
		}
	}

	id, err := queue.NewJobID()
	if err != nil {
		return nil, errorsx.Wrap(errorsx.KindInternal, err)
	}

	job := &queue.Record{
		ID:                 id,
		DedupeKey:          dedupeKey,
		FolderPath:         resolved,
		IncludeCode:        req.IncludeCode,
		Operation:          operation,
		ChunkSize:          req.ChunkSize,
		ChunkOverlap:       req.ChunkOverlap,
		Recursive:          req.Recursive,
		GenerateSummaries:  req.GenerateSummaries,
		SupportedLanguages: req.SupportedLanguages,
		IncludePatterns:    req.IncludePatterns,
		ExcludePatterns:    req.ExcludePatterns,
		Status:             queue.StatusPending,
		EnqueuedAt:         time.Now().UTC(),
	}

	position, err := s.store.Append(job)
	if err != nil {
		return nil, err
	}

	return &EnqueueResult{
		JobID:         id,
		Status:        queue.StatusPending,
		QueuePosition: position,
		QueueLength:   s.store.QueueLength(),
		Message:       fmt.Sprintf("job queued for %s", resolved),
		DedupeHit:     false,
	}, nil
}

// Get returns the job record, or nil if not found.
func (s *Service) Get(jobID string) *queue.Record {
	return s.store.Get(jobID)
}

// List returns a paginated, summarized view of the queue.
func (s *Service) List(limit, offset int) ListResult {
	jobs := s.store.List(limit, offset)
	stats := s.store.QueueStats()
	return ListResult{
		Jobs:      jobs,
		Total:     stats.Total,
		Pending:   stats.Pending,
		Running:   stats.Running,
		Completed: stats.Completed,
		Failed:    stats.Failed,
	}
}

// Cancel requests cancellation of a job. Pending jobs are cancelled
// immediately; running jobs are flagged and stop at their next progress
// checkpoint (see internal/worker). Terminal jobs return an error except
// for an already-cancelled job, which is idempotent.
func (s *Service) Cancel(jobID string) (status, message string, err error) {
	job := s.store.Get(jobID)
	if job == nil {
		return "", "", errorsx.New(errorsx.KindValidation, fmt.Sprintf("job %s not found", jobID))
	}

	switch job.Status {
	case queue.StatusCancelled:
		return "already_cancelled", fmt.Sprintf("job %s was already cancelled", jobID), nil

	case queue.StatusDone, queue.StatusFailed:
		return "", "", errorsx.Conflict(fmt.Sprintf("cannot cancel job %s: job has already %s", jobID, job.Status))

	case queue.StatusRunning:
		job.CancelRequested = true
		if err := s.store.Update(job); err != nil {
			return "", "", err
		}
		return "cancellation_requested", fmt.Sprintf("cancellation requested for running job %s; it will stop at the next checkpoint", jobID), nil

	case queue.StatusPending:
		now := time.Now().UTC()
		job.Status = queue.StatusCancelled
		job.CancelRequested = true
		job.FinishedAt = &now
		if err := s.store.Update(job); err != nil {
			return "", "", err
		}
		return "cancelled", fmt.Sprintf("job %s cancelled", jobID), nil

	default:
		return "unknown", fmt.Sprintf("job %s is in unexpected status %s", jobID, job.Status), nil
	}
}

// Stats returns current queue statistics.
func (s *Service) Stats() queue.Stats {
	return s.store.QueueStats()
}
