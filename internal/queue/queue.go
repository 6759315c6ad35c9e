// Package queue defines the job-id FIFO C6 blocks on, and a reference
// Redis-backed implementation, per §6's queue transport contract.
package queue

import "context"

// Queue is the minimal FIFO surface the worker needs: push a job id,
// block (with a bounded wait) for the next one.
type Queue interface {
	// Push enqueues jobID for processing.
	Push(ctx context.Context, jobID string) error

	// Pop blocks up to timeout for the next job id. A zero-value return
	// with ok=false means the wait elapsed with nothing queued — not an
	// error; C6 loops back around and tries again (§4.6).
	Pop(ctx context.Context) (jobID string, ok bool, err error)
}
