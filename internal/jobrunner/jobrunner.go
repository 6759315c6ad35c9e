// Package jobrunner implements C5: the orchestration that turns one
// dequeued job id into a finished (or failed, or cancelled) output file —
// playlist parse, segment download, mux, retry classification and
// cancellation checkpoints, per §4.5.
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/reelvault/worker/internal/httpclient"
	"github.com/reelvault/worker/internal/jobstore"
	"github.com/reelvault/worker/internal/metrics"
	"github.com/reelvault/worker/internal/muxer"
	"github.com/reelvault/worker/internal/naming"
	"github.com/reelvault/worker/internal/playlist"
	"github.com/reelvault/worker/internal/segment"
)

// chromeUA is injected for direct-download requests to origins that
// reject bare Go HTTP client user agents (§4.5 direct-download path).
const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// cancelPollInterval bounds how often ProcessJob re-reads job status from
// the store to notice an externally-set cancellation (§4.5, §8's
// "fresh transaction" requirement: cancellation reads must not be served
// from a cached snapshot).
const cancelPollInterval = 5 * time.Second

// Runner processes one job end to end.
type Runner struct {
	Store     jobstore.Store
	Standard  httpclient.Client
	Impersonating httpclient.Client
	Muxer     *muxer.Muxer
	Probe     *muxer.Probe
	Config    Config
}

// Config tunes per-job behavior, threaded from the top-level worker config.
type Config struct {
	SegmentWorkers   int
	FFmpegThreads    int
	MaxRetryAttempts int
	AllowReencode    bool
	SkipTSValidation bool
	OutputDir        string
	TempDirBase      string
}

// ProcessJob loads the job, routes it to the direct or HLS path, and
// updates the store's status/progress/retry fields as it goes. A failed
// run is recorded in the store (terminal or re-queued) by classifyAndRetry,
// whose returned error is only that of the store write. Errors from loading
// the job or from the downloading/completed status writes are returned
// without any further status change.
func (r *Runner) ProcessJob(ctx context.Context, jobID string) error {
	job, err := r.Store.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("jobrunner: load job %s: %w", jobID, err)
	}

	if cancelled, err := r.Store.IsCancelled(ctx, jobID); err == nil && cancelled {
		return nil
	}

	start := time.Now()
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	if err := r.Store.UpdateStatus(ctx, jobID, jobstore.StatusDownloading, 0, ""); err != nil {
		return fmt.Errorf("jobrunner: mark downloading: %w", err)
	}

	stop := r.watchCancellation(ctx, jobID)
	defer stop()

	outPath, runErr := r.run(ctx, job)
	metrics.JobDuration.Observe(time.Since(start).Seconds())

	if cancelled, cErr := r.Store.IsCancelled(ctx, jobID); cErr == nil && cancelled {
		metrics.JobsProcessedTotal.WithLabelValues(string(jobstore.StatusCancelled)).Inc()
		return nil
	}

	if runErr != nil {
		return r.classifyAndRetry(ctx, job, runErr)
	}

	if err := r.Store.SetOutputPath(ctx, jobID, outPath); err != nil {
		return fmt.Errorf("jobrunner: set output path: %w", err)
	}
	if err := r.Store.UpdateStatus(ctx, jobID, jobstore.StatusCompleted, 100, ""); err != nil {
		return fmt.Errorf("jobrunner: mark completed: %w", err)
	}
	metrics.JobsProcessedTotal.WithLabelValues(string(jobstore.StatusCompleted)).Inc()
	return nil
}

// watchCancellation re-reads the store on a ticker until the job is marked
// cancelled or stop is called, then its goroutine exits. It sets no flag
// itself: the HLS path's linkStopFlag and the direct path's periodic
// IsCancelled check are what act on a cancellation.
func (r *Runner) watchCancellation(ctx context.Context, jobID string) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cancelPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if cancelled, err := r.Store.IsCancelled(ctx, jobID); err == nil && cancelled {
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

func (r *Runner) run(ctx context.Context, job *jobstore.Job) (string, error) {
	if isDirectMP4(job.URL) {
		return r.runDirectDownload(ctx, job)
	}
	return r.runHLS(ctx, job)
}

// isDirectMP4 recognizes a bare .mp4 URL, or a URL whose "file=" query
// parameter (percent-decoded) points at one — a pattern seen in original
// extractor-produced URLs.
func isDirectMP4(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(rawURL), ".mp4")
	}
	if strings.HasSuffix(strings.ToLower(u.Path), ".mp4") {
		return true
	}
	if f := u.Query().Get("file"); f != "" {
		if decoded, err := url.QueryUnescape(f); err == nil {
			return strings.HasSuffix(strings.ToLower(decoded), ".mp4")
		}
	}
	return false
}

func (r *Runner) tempDir(jobID string) string {
	base := r.Config.TempDirBase
	if base == "" {
		base = os.TempDir()
	}
	dir, err := os.MkdirTemp(base, fmt.Sprintf("m3u8_%s_*", jobID))
	if err != nil {
		return filepath.Join(base, "m3u8_"+jobID)
	}
	return dir
}

func (r *Runner) outputPath(job *jobstore.Job) (string, error) {
	title, _, _ := r.Store.GetMetadata(context.Background(), job.ID, "title")
	name := naming.Resolve(title, job.ID)
	return naming.NextAvailablePath(r.Config.OutputDir, name)
}

func (r *Runner) progressCallback(ctx context.Context, jobID string, lo, hi float64) func(segment.Progress) {
	return func(p segment.Progress) {
		if p.Total == 0 {
			return
		}
		frac := float64(p.Downloaded) / float64(p.Total)
		pct := lo + frac*(hi-lo)
		_ = r.Store.UpdateStatus(ctx, jobID, jobstore.StatusDownloading, pct, "")
	}
}

// classifyAndRetry applies §7's retry policy: cancelled jobs never retry,
// anti-hotlink/link-expired failures are treated as terminal (the origin
// will not serve the content no matter how many times we ask), everything
// else increments retry_count and is left queued/failed depending on
// whether the cap is exhausted.
func (r *Runner) classifyAndRetry(ctx context.Context, job *jobstore.Job, runErr error) error {
	kind := classify(runErr)
	metrics.SegmentFailuresTotal.WithLabelValues(string(kind)).Inc()

	switch kind {
	case segment.FailureCancelled:
		return nil
	case segment.FailureAntiHotlink, segment.FailureLinkExpired:
		metrics.JobsProcessedTotal.WithLabelValues(string(jobstore.StatusFailed)).Inc()
		return r.Store.UpdateStatus(ctx, job.ID, jobstore.StatusFailed, 0, runErr.Error())
	}

	retries, err := r.Store.IncrementRetry(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("jobrunner: increment retry: %w", err)
	}
	metrics.SegmentRetriesTotal.Inc()

	if retries >= r.Config.MaxRetryAttempts {
		metrics.JobsProcessedTotal.WithLabelValues(string(jobstore.StatusFailed)).Inc()
		return r.Store.UpdateStatus(ctx, job.ID, jobstore.StatusFailed, 0,
			fmt.Sprintf("exhausted %d retries: %v", retries, runErr))
	}

	return r.Store.UpdateStatus(ctx, job.ID, jobstore.StatusQueued, 0, runErr.Error())
}

func classify(err error) segment.FailureKind {
	if perr, ok := err.(*playlist.Error); ok {
		switch perr.Kind {
		case playlist.NotAPlaylist, playlist.NoVariants, playlist.NoSegments:
			return segment.FailureInvalidContent
		default:
			return segment.FailureNetwork
		}
	}

	var classified *segment.ClassifiedError
	if errors.As(err, &classified) {
		return classified.Kind
	}

	if errors.Is(err, segment.ErrInvalidContent) {
		return segment.FailureInvalidContent
	}
	if errors.Is(err, context.Canceled) {
		return segment.FailureCancelled
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "anti-hotlink"):
		return segment.FailureAntiHotlink
	case strings.Contains(msg, "link_expired"), strings.Contains(msg, "404"):
		return segment.FailureLinkExpired
	case strings.Contains(msg, "decrypt"):
		return segment.FailureDecryption
	case strings.Contains(msg, "muxer"):
		return segment.FailureHTTPStatus
	case strings.Contains(msg, "cancel"):
		return segment.FailureCancelled
	default:
		return segment.FailureNetwork
	}
}
