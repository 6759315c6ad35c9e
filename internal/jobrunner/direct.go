package jobrunner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/reelvault/worker/internal/jobstore"
)

// directChunkSize is the read buffer size for the direct-download path;
// streaming in 1 MiB chunks keeps memory flat regardless of file size.
const directChunkSize = 1 << 20

// directCancelCheckBytes is how often, in bytes written, the direct path
// re-reads job-store cancellation — every 5 MiB rather than every chunk,
// so the IsCancelled round trip doesn't dominate a fast local transfer.
const directCancelCheckBytes = 5 << 20

const (
	directProgressStart = 0
	directProgressDone  = 95
)

// runDirectDownload streams a bare MP4 URL straight to its output path;
// run() takes this branch when isDirectMP4 classifies the job's URL.
func (r *Runner) runDirectDownload(ctx context.Context, job *jobstore.Job) (string, error) {
	outPath, err := r.outputPath(job)
	if err != nil {
		return "", fmt.Errorf("jobrunner: resolve output path: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return "", fmt.Errorf("jobrunner: build direct-download request: %w", err)
	}
	for k, v := range directDownloadHeaders(job.SourcePage) {
		req.Header.Set(k, v)
	}

	resp, err := r.Impersonating.Raw().Do(req)
	if err != nil {
		return "", fmt.Errorf("jobrunner: direct-download request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("jobrunner: direct-download: server returned status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(r.Config.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("jobrunner: create output dir: %w", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("jobrunner: create output file: %w", err)
	}

	total := resp.ContentLength // -1 if the origin omitted Content-Length
	if err := r.streamDirectBody(ctx, job.ID, resp.Body, out, total); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("jobrunner: close output file: %w", err)
	}

	if err := r.Store.UpdateStatus(ctx, job.ID, jobstore.StatusDownloading, directProgressDone, ""); err != nil {
		return "", err
	}

	if r.Probe != nil {
		if d, err := r.Probe.Duration(ctx, outPath); err == nil {
			_ = r.Store.PutMetadata(ctx, job.ID, "duration_seconds", fmt.Sprintf("%.2f", d))
		}
	}

	return outPath, nil
}

// streamDirectBody copies src into dst in directChunkSize reads, polling
// job-store cancellation every directCancelCheckBytes and reporting
// progress into [directProgressStart, directProgressDone] when total is
// known.
func (r *Runner) streamDirectBody(ctx context.Context, jobID string, src io.Reader, dst io.Writer, total int64) error {
	buf := make([]byte, directChunkSize)
	var written, sinceCheck int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("jobrunner: write direct-download body: %w", err)
			}
			written += int64(n)
			sinceCheck += int64(n)

			if sinceCheck >= directCancelCheckBytes {
				sinceCheck = 0
				cancelled, err := r.Store.IsCancelled(ctx, jobID)
				if err == nil && cancelled {
					return fmt.Errorf("jobrunner: direct-download: %w", context.Canceled)
				}
				if total > 0 {
					pct := directProgressStart + float64(written)/float64(total)*(directProgressDone-directProgressStart)
					_ = r.Store.UpdateStatus(ctx, jobID, jobstore.StatusDownloading, pct, "")
				}
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("jobrunner: read direct-download body: %w", readErr)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("jobrunner: direct-download: %w", context.Canceled)
		}
	}
}

// directDownloadHeaders builds the header set for the direct-download
// path: no inbound Range, a browser-shaped Sec-Fetch-Dest, an Origin
// derived from the source page, and a Chrome User-Agent so origins that
// reject bare Go clients still serve the file.
func directDownloadHeaders(sourcePage string) map[string]string {
	h := map[string]string{
		"User-Agent":     chromeUA,
		"Sec-Fetch-Dest": "empty",
		"Sec-Fetch-Mode": "cors",
		"Sec-Fetch-Site": "cross-site",
	}
	if sourcePage != "" {
		h["Referer"] = sourcePage
		if origin := originOf(sourcePage); origin != "" {
			h["Origin"] = origin
		}
	}
	return h
}

// originOf reduces a page URL to its scheme://host Origin form.
func originOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
