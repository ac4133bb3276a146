// Package worker implements the single background goroutine that drains
// the job queue: one job RUNNING at a time, FIFO, with timeout,
// cooperative cancellation, progress checkpoints and delta verification
// against the storage backend. Grounded on job_worker.py's JobWorker.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agent-brain/brain/internal/queue"
)

// Defaults mirror job_worker.py's class constants.
const (
	DefaultMaxRuntime          = 2 * time.Hour
	DefaultProgressCheckpoint  = 50 // update progress every N files
	DefaultPollInterval        = 1 * time.Second
	DefaultStopTimeout         = 30 * time.Second
)

// ErrCancelled is returned by a ProgressFunc (or surfaced by an Indexer)
// when a job's CancelRequested flag was observed mid-run.
var ErrCancelled = errors.New("job cancellation requested")

// Config tunes worker behavior. Zero values fall back to the defaults
// above.
type Config struct {
	MaxRuntime         time.Duration
	ProgressCheckpoint int
	PollInterval       time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRuntime <= 0 {
		c.MaxRuntime = DefaultMaxRuntime
	}
	if c.ProgressCheckpoint <= 0 {
		c.ProgressCheckpoint = DefaultProgressCheckpoint
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Worker polls the queue store for pending jobs and runs them one at a
// time against an Indexer.
type Worker struct {
	store   *queue.Store
	indexer Indexer
	cfg     Config

	mu         sync.Mutex
	running    bool
	currentJob *queue.Record
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// New creates a Worker. Call Start to begin processing.
func New(store *queue.Store, indexer Indexer, cfg Config) *Worker {
	return &Worker{
		store:   store,
		indexer: indexer,
		cfg:     cfg.withDefaults(),
	}
}

// IsRunning reports whether the worker's poll loop is active.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// CurrentJob returns the job presently being processed, or nil.
func (w *Worker) CurrentJob() *queue.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.currentJob == nil {
		return nil
	}
	cp := *w.currentJob
	return &cp
}

// Start launches the poll loop in a goroutine. Calling Start while
// already running is a no-op, matching JobWorker.start().
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		slog.Warn("worker_already_running")
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)
	slog.Info("worker_started")
}

// Stop signals the poll loop to exit and waits up to DefaultStopTimeout
// for the current job to reach a checkpoint and the loop to return.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh := w.stopCh
	doneCh := w.doneCh
	w.mu.Unlock()

	slog.Info("worker_stopping")
	close(stopCh)

	timeout := time.NewTimer(DefaultStopTimeout)
	defer timeout.Stop()

	select {
	case <-doneCh:
	case <-timeout.C:
		slog.Warn("worker_stop_timeout", slog.Duration("timeout", DefaultStopTimeout))
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.currentJob = nil
	w.mu.Unlock()
	slog.Info("worker_stopped")
	return nil
}

func (w *Worker) runLoop(ctx context.Context) {
	defer close(w.doneCh)
	slog.Info("worker_run_loop_started")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker_run_loop_exited", slog.String("reason", "context cancelled"))
			return
		case <-w.stopCh:
			slog.Info("worker_run_loop_exited", slog.String("reason", "stop requested"))
			return
		default:
		}

		pending := w.store.PendingFIFO()
		if len(pending) > 0 {
			w.processJob(ctx, pending[0])
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// processJob runs one job to a terminal state, mirroring
// JobWorker._process_job's RUNNING -> DONE/FAILED/CANCELLED machine.
func (w *Worker) processJob(ctx context.Context, job *queue.Record) {
	slog.Info("worker_job_started", slog.String("job_id", job.ID), slog.String("path", job.FolderPath))

	w.mu.Lock()
	w.currentJob = job
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.currentJob = nil
		w.mu.Unlock()
	}()

	now := time.Now().UTC()
	job.Status = queue.StatusRunning
	job.StartedAt = &now
	job.Progress = &queue.Progress{UpdatedAt: now}
	if err := w.store.Update(job); err != nil {
		slog.Error("worker_job_update_failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		return
	}

	countBefore, err := w.indexer.Count(ctx)
	if err != nil {
		slog.Warn("worker_count_before_failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
	}

	req := IndexRequest{
		FolderPath:         job.FolderPath,
		IncludeCode:        job.IncludeCode,
		Operation:          job.Operation,
		ChunkSize:          job.ChunkSize,
		ChunkOverlap:       job.ChunkOverlap,
		Recursive:          job.Recursive,
		GenerateSummaries:  job.GenerateSummaries,
		SupportedLanguages: job.SupportedLanguages,
		IncludePatterns:    job.IncludePatterns,
		ExcludePatterns:    job.ExcludePatterns,
	}

	var progressMu sync.Mutex
	progress := func(current, total int, currentFile string) error {
		refreshed := w.store.Get(job.ID)
		if refreshed != nil && refreshed.CancelRequested {
			return ErrCancelled
		}

		progressMu.Lock()
		defer progressMu.Unlock()
		if job.Progress == nil || current-job.Progress.FilesProcessed >= w.cfg.ProgressCheckpoint || current == total {
			job.Progress = &queue.Progress{
				FilesProcessed: current,
				FilesTotal:     total,
				CurrentFile:    currentFile,
				UpdatedAt:      time.Now().UTC(),
			}
			if err := w.store.Update(job); err != nil {
				slog.Warn("worker_progress_update_failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
			}
		}
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, w.cfg.MaxRuntime)
	defer cancel()

	result, err := w.indexer.Index(runCtx, req, progress)

	switch {
	case errors.Is(err, ErrCancelled):
		w.finish(job, queue.StatusCancelled, "job was cancelled by user request")
		slog.Info("worker_job_cancelled", slog.String("job_id", job.ID))
		return

	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		msg := fmt.Sprintf("job timed out after %s", w.cfg.MaxRuntime)
		w.finish(job, queue.StatusFailed, msg)
		slog.Error("worker_job_timeout", slog.String("job_id", job.ID), slog.Duration("max_runtime", w.cfg.MaxRuntime))
		return

	case err != nil:
		w.finish(job, queue.StatusFailed, err.Error())
		slog.Error("worker_job_failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		return
	}

	if !w.verifyDelta(ctx, job, countBefore, result) {
		w.finish(job, queue.StatusFailed, "verification failed: no chunks found in storage backend")
		slog.Error("worker_job_verification_failed", slog.String("job_id", job.ID))
		return
	}

	job.TotalChunks = result.ChunksCreated
	job.TotalDocuments = result.Documents
	if job.Progress != nil {
		job.Progress = &queue.Progress{
			FilesProcessed: job.Progress.FilesTotal,
			FilesTotal:     job.Progress.FilesTotal,
			ChunksCreated:  result.ChunksCreated,
			CurrentFile:    "Complete",
			UpdatedAt:      time.Now().UTC(),
		}
	}
	w.finish(job, queue.StatusDone, "")
	slog.Info("worker_job_completed", slog.String("job_id", job.ID),
		slog.Int("documents", result.Documents), slog.Int("chunks", result.ChunksCreated))
}

// verifyDelta mirrors JobWorker._verify_collection_delta: a job is
// accepted if it added new chunks, or if it processed files but found
// them already indexed (no-op re-add). It is rejected only when nothing
// was added and nothing was processed.
func (w *Worker) verifyDelta(ctx context.Context, job *queue.Record, countBefore int, result IndexResult) bool {
	countAfter, err := w.indexer.Count(ctx)
	if err != nil {
		slog.Error("worker_verify_count_failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		return false
	}

	delta := countAfter - countBefore
	if delta > 0 {
		slog.Info("worker_verify_passed", slog.String("job_id", job.ID), slog.Int("delta", delta))
		return true
	}
	if countAfter > 0 && delta == 0 && result.FilesProcessed > 0 {
		slog.Warn("worker_verify_noop", slog.String("job_id", job.ID), slog.Int("files_processed", result.FilesProcessed))
		return true
	}
	return false
}

func (w *Worker) finish(job *queue.Record, status queue.Status, errMsg string) {
	now := time.Now().UTC()
	job.Status = status
	job.Error = errMsg
	job.FinishedAt = &now
	if err := w.store.Update(job); err != nil {
		slog.Error("worker_finish_update_failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
	}
}
