package worker

import "context"

// ProgressFunc reports files-processed/total progress for a running
// indexing job. An implementation calls it at checkpoint intervals; a
// returned error (typically ErrCancelled) aborts the run at the next
// checkpoint.
type ProgressFunc func(current, total int, currentFile string) error

// IndexRequest carries the fields of a queue.Record needed to run an
// indexing pass, decoupled from the queue package so Indexer
// implementations don't need to import it.
type IndexRequest struct {
	FolderPath         string
	IncludeCode        bool
	Operation          string // "index" (replace) or "add" (append)
	ChunkSize          int
	ChunkOverlap       int
	Recursive          bool
	GenerateSummaries  bool
	SupportedLanguages []string
	IncludePatterns    []string
	ExcludePatterns    []string
}

// IndexResult summarizes a completed indexing pass.
type IndexResult struct {
	FilesProcessed int
	ChunksCreated  int
	Documents      int
}

// Indexer is the seam between the job worker's state machine and the
// actual scan/chunk/embed/store pipeline, mirroring
// IndexingService._run_indexing_pipeline / storage_backend.get_count
// from job_worker.py. Keeping it narrow lets the worker's retry/timeout/
// cancellation logic be tested against a fake without touching disk.
type Indexer interface {
	// Count returns the number of chunks currently stored, used for the
	// before/after delta verification job_worker.py performs.
	Count(ctx context.Context) (int, error)

	// Index runs one indexing pass and reports progress via progress.
	Index(ctx context.Context, req IndexRequest, progress ProgressFunc) (IndexResult, error)
}
