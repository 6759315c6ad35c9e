// Package jobstore defines the external job record contract C5/C6 read
// from and write to, and a reference gorm-backed implementation, per §6's
// "jobs" and "job_metadata" schema.
package jobstore

import (
	"context"
	"time"
)

// Status mirrors the job lifecycle states from §6. The worker transitions
// queued -> downloading -> {completed, failed}, and sets a failed attempt
// back to queued when it will be retried; cancelled is set externally by
// whatever owns job submission.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// Job is one row of the "jobs" table.
type Job struct {
	ID          string
	URL         string
	SourcePage  string
	OutputPath  string
	Status      Status
	Progress    float64 // 0-100
	RetryCount  int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Metadata is one row of the "job_metadata" table: free-form key/value
// pairs attached to a job (resolved title, detected resolution, diagnostic
// failure bodies, and so on) that don't belong on the Job row itself.
type Metadata struct {
	JobID string
	Key   string
	Value string
}

// Store is the persistence contract the worker depends on; jobrunner and
// queueloop only ever see this interface, never the concrete backend.
type Store interface {
	// Create inserts a new job row in StatusQueued. Job submission proper
	// is the out-of-scope API's job (§1); this exists so a local testing
	// aid (the CLI's "enqueue" command) can seed a row without a real
	// submission endpoint.
	Create(ctx context.Context, id, url, sourcePage string) error

	// Get loads a job by ID. Callers that need to observe external
	// cancellation mid-job must call Get again rather than cache the
	// result — see IsCancelled.
	Get(ctx context.Context, id string) (*Job, error)

	// IsCancelled re-reads the job's status fresh (bypassing any
	// in-process cache) so a job owner that sets status=cancelled in the
	// store is observed promptly by an in-flight worker (§4.5, §8).
	IsCancelled(ctx context.Context, id string) (bool, error)

	// UpdateStatus sets status/progress/lastError, guarded so a job
	// already marked cancelled is never overwritten back to an active
	// state (WHERE status != 'cancelled', per §6).
	UpdateStatus(ctx context.Context, id string, status Status, progress float64, lastError string) error

	IncrementRetry(ctx context.Context, id string) (int, error)

	SetOutputPath(ctx context.Context, id, path string) error

	PutMetadata(ctx context.Context, id, key, value string) error
	GetMetadata(ctx context.Context, id, key string) (string, bool, error)
}
