package jobrunner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/reelvault/worker/internal/jobstore"
	"github.com/reelvault/worker/internal/muxer"
	"github.com/reelvault/worker/internal/playlist"
	"github.com/reelvault/worker/internal/segment"
)

// progress window allotted to each phase of the HLS path, per §4.5: parse
// gets the first 5%, segment download the middle 80%, mux the last 15%.
const (
	progressParsed    = 5
	progressSegmented = 85
	progressMuxed     = 100
)

func (r *Runner) runHLS(ctx context.Context, job *jobstore.Job) (string, error) {
	headers := browserHeaders(job.SourcePage)

	desc, err := playlist.Parse(ctx, job.URL, headers, r.Impersonating)
	if err != nil {
		return "", fmt.Errorf("jobrunner: parse playlist: %w", err)
	}
	if err := r.Store.UpdateStatus(ctx, job.ID, jobstore.StatusDownloading, progressParsed, ""); err != nil {
		return "", err
	}

	tmpDir := r.tempDir(job.ID)
	defer os.RemoveAll(tmpDir)

	dl := segment.New(r.Impersonating, segment.Config{
		Workers:          r.Config.SegmentWorkers,
		SkipTSValidation: r.Config.SkipTSValidation,
	}, job.SourcePage, job.URL)

	stop := &segment.StopFlag{}
	release := r.linkStopFlag(ctx, job.ID, stop)
	defer release()

	paths, fail, err := dl.Download(ctx, desc.Segments, tmpDir, headers, stop, r.progressCallback(ctx, job.ID, progressParsed, progressSegmented))
	if err != nil {
		if fail != nil {
			_ = r.Store.PutMetadata(ctx, job.ID, "last_failure_kind", string(fail.Kind))
		}
		return "", err
	}

	outPath, err := r.outputPath(job)
	if err != nil {
		return "", fmt.Errorf("jobrunner: resolve output path: %w", err)
	}

	reencoded, err := r.Muxer.Merge(ctx, paths, outPath, muxer.Options{
		Threads:       r.Config.FFmpegThreads,
		AllowReencode: r.Config.AllowReencode,
	})
	if err != nil {
		return "", fmt.Errorf("jobrunner: muxer: %w", err)
	}
	if reencoded {
		_ = r.Store.PutMetadata(ctx, job.ID, "reencoded", "true")
	}

	if r.Probe != nil {
		if d, err := r.Probe.Duration(ctx, outPath); err == nil {
			_ = r.Store.PutMetadata(ctx, job.ID, "duration_seconds", fmt.Sprintf("%.2f", d))
		}
	}

	return outPath, nil
}

// linkStopFlag bridges the store-level cancellation poll to the segment
// downloader's cooperative StopFlag, so a cancelled job stops mid-download
// rather than running to completion before the cancellation is noticed.
func (r *Runner) linkStopFlag(ctx context.Context, jobID string, stop *segment.StopFlag) (release func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cancelPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				stop.Stop()
				return
			case <-ticker.C:
				if cancelled, err := r.Store.IsCancelled(ctx, jobID); err == nil && cancelled {
					stop.Stop()
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

// browserHeaders mimics a real browser's request headers for the initial
// playlist fetch, the first line of defense against CDN hotlink protection.
func browserHeaders(sourcePage string) map[string]string {
	h := map[string]string{
		"User-Agent":      chromeUA,
		"Accept":          "*/*",
		"Accept-Language": "en-US,en;q=0.9",
	}
	if sourcePage != "" {
		h["Referer"] = sourcePage
	}
	return h
}
