// Package queueloop implements C6: the blocking queue consumer that pops
// job ids and hands each one to the job runner, plus graceful shutdown, per
// §4.6 of the pipeline spec.
package queueloop

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reelvault/worker/internal/jobrunner"
	"github.com/reelvault/worker/internal/jobstore"
	"github.com/reelvault/worker/internal/queue"
)

// reconnectDelay is how long the loop sleeps after a queue transport error
// before retrying the blocking pop, per §4.6.
const reconnectDelay = 5 * time.Second

// Loop owns the blocking pop -> process -> (maybe re-enqueue) cycle. It is
// the only piece of the worker that touches both Queue and Runner, so
// retry re-enqueueing (the runner only ever flips job status back to
// "queued" in the store) lives here.
type Loop struct {
	Queue  queue.Queue
	Store  jobstore.Store
	Runner *jobrunner.Runner
}

// Run blocks, popping job ids and processing them one at a time until ctx
// is cancelled or an OS interrupt/terminate signal arrives. The in-flight
// job is always allowed to finish before the loop returns (§4.6).
func (l *Loop) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("[queueloop] worker started")
	for {
		select {
		case <-ctx.Done():
			log.Printf("[queueloop] shutdown signal received, exiting")
			return nil
		default:
		}

		jobID, ok, err := l.Queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[queueloop] queue transport error: %v; reconnecting in %s", err, reconnectDelay)
			select {
			case <-time.After(reconnectDelay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		if !ok {
			continue
		}

		l.processOne(context.WithoutCancel(ctx), jobID)
	}
}

// processOne runs one job to completion and, if the runner left the job in
// "queued" status (the retry path — §4.5's retry policy increments
// retry_count and resets status without re-enqueueing itself), pushes the
// job id back onto the queue so it is picked up again.
func (l *Loop) processOne(ctx context.Context, jobID string) {
	if err := l.Runner.ProcessJob(ctx, jobID); err != nil {
		log.Printf("[queueloop] job %s: %v", jobID, err)
	}

	job, err := l.Store.Get(ctx, jobID)
	if err != nil {
		log.Printf("[queueloop] job %s: re-read after processing failed: %v", jobID, err)
		return
	}
	if job.Status == jobstore.StatusQueued {
		if err := l.Queue.Push(ctx, jobID); err != nil {
			log.Printf("[queueloop] job %s: re-enqueue after retry failed: %v", jobID, err)
		} else {
			log.Printf("[queueloop] job %s: re-enqueued for retry %d", jobID, job.RetryCount)
		}
	}
}
