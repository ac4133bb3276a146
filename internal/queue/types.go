// Package queue implements the durable, append-only job queue: an
// indexing request becomes a JobRecord that survives process restarts,
// is deduplicated against in-flight work, and is replayed from disk on
// startup.
package queue

import "time"

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// MaxRetries bounds how many times a job reset to pending after a crash
// (stale RUNNING on restart) is retried before being marked failed.
const MaxRetries = 3

// Progress tracks file/chunk counters for a running job.
type Progress struct {
	FilesProcessed int       `json:"files_processed"`
	FilesTotal     int       `json:"files_total"`
	ChunksCreated  int       `json:"chunks_created"`
	CurrentFile    string    `json:"current_file"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PercentComplete is the derived completion percentage, 0 when FilesTotal
// is unknown.
func (p Progress) PercentComplete() float64 {
	if p.FilesTotal == 0 {
		return 0
	}
	return round1(float64(p.FilesProcessed) / float64(p.FilesTotal) * 100)
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// Record is the persistent representation of one indexing job: the
// unit appended to the JSONL log and replayed on startup.
type Record struct {
	ID        string `json:"id"`
	DedupeKey string `json:"dedupe_key"`

	FolderPath          string   `json:"folder_path"`
	IncludeCode         bool     `json:"include_code"`
	Operation           string   `json:"operation"` // "index" or "add"
	ChunkSize           int      `json:"chunk_size"`
	ChunkOverlap        int      `json:"chunk_overlap"`
	Recursive           bool     `json:"recursive"`
	GenerateSummaries   bool     `json:"generate_summaries"`
	SupportedLanguages  []string `json:"supported_languages,omitempty"`
	IncludePatterns     []string `json:"include_patterns,omitempty"`
	ExcludePatterns     []string `json:"exclude_patterns,omitempty"`

	Status          Status `json:"status"`
	CancelRequested bool   `json:"cancel_requested"`

	EnqueuedAt time.Time  `json:"enqueued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Error          string    `json:"error,omitempty"`
	RetryCount     int       `json:"retry_count"`
	Progress       *Progress `json:"progress,omitempty"`
	TotalChunks    int       `json:"total_chunks"`
	TotalDocuments int       `json:"total_documents"`
}

// ExecutionTimeMS is the elapsed time from start to finish (or now, if
// still running), in milliseconds. Zero before the job starts.
func (r *Record) ExecutionTimeMS(now time.Time) int64 {
	if r.StartedAt == nil {
		return 0
	}
	end := now
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	return end.Sub(*r.StartedAt).Milliseconds()
}

// Stats summarizes the queue's current state.
type Stats struct {
	Pending                  int    `json:"pending"`
	Running                  int    `json:"running"`
	Completed                int    `json:"completed"`
	Failed                   int    `json:"failed"`
	Cancelled                int    `json:"cancelled"`
	Total                    int    `json:"total"`
	CurrentJobID             string `json:"current_job_id,omitempty"`
	CurrentJobRunningTimeMS  int64  `json:"current_job_running_time_ms,omitempty"`
}
