package segment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reelvault/worker/internal/httpclient"
	"github.com/reelvault/worker/internal/playlist"
)

// Downloader drives the concurrent, cancellable, ordered segment fetch for
// one job: header-strategy fallback, multi-candidate AES-128 decryption,
// TS content validation and retry with exponential backoff (§4.3).
type Downloader struct {
	Client     httpclient.Client
	Config     Config
	SourcePage string
	M3U8URL    string

	mu              sync.Mutex
	workingStrategy *HeaderStrategy // memoized once a strategy succeeds
	keyCacheMu      sync.Mutex
	keyCache        map[string][]byte
}

// New builds a Downloader with cfg applied over DefaultConfig's zero fields.
func New(client httpclient.Client, cfg Config, sourcePage, m3u8URL string) *Downloader {
	if cfg.Workers == 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.BaseBackoff == 0 {
		cfg.BaseBackoff = DefaultConfig().BaseBackoff
	}
	return &Downloader{Client: client, Config: cfg, SourcePage: sourcePage, M3U8URL: m3u8URL, keyCache: make(map[string][]byte)}
}

// StopFlag is polled cooperatively between segments and between retry
// attempts; set it (e.g. from a fresh job-store read) to abort in-flight
// work without tearing down the goroutine pool abruptly.
type StopFlag struct {
	flag int32
}

func (s *StopFlag) Stop()         { atomic.StoreInt32(&s.flag, 1) }
func (s *StopFlag) Stopped() bool { return atomic.LoadInt32(&s.flag) == 1 }

// Download fetches every segment into destDir as "segment_%05d.ts" (by
// index) and returns
// the ordered list of file paths, the worker pool writes out of order but
// the returned slice is always in segment.Index order.
func (d *Downloader) Download(ctx context.Context, segments []playlist.Segment, destDir string, headers map[string]string, stop *StopFlag, onProgress func(Progress)) ([]string, *FailureRecord, error) {
	if len(segments) == 0 {
		return nil, nil, fmt.Errorf("segment: no segments to download")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("segment: create dest dir: %w", err)
	}

	type result struct {
		index int
		path  string
		err   error
		fail  *FailureRecord
	}

	jobs := make(chan playlist.Segment, len(segments))
	for _, s := range segments {
		jobs <- s
	}
	close(jobs)

	results := make(chan result, len(segments))
	var wg sync.WaitGroup
	for i := 0; i < d.Config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seg := range jobs {
				if stop.Stopped() || ctx.Err() != nil {
					results <- result{index: seg.Index, err: fmt.Errorf("segment %d: %w", seg.Index, context.Canceled)}
					continue
				}
				path, fail, err := d.downloadOne(ctx, seg, destDir, headers, stop)
				results <- result{index: seg.Index, path: path, err: err, fail: fail}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	paths := make([]string, len(segments))
	var firstErr error
	var firstFail *FailureRecord
	antiHotlinkFails := 0
	linkExpiredFails := 0
	done := 0
	for r := range results {
		done++
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
				firstFail = r.fail
			}
			if r.fail != nil {
				switch r.fail.Kind {
				case FailureAntiHotlink:
					antiHotlinkFails++
				case FailureLinkExpired:
					linkExpiredFails++
				}
			}
			continue
		}
		paths[r.index] = r.path
		if onProgress != nil {
			onProgress(Progress{Downloaded: done, Total: len(segments)})
		}
	}

	// §4.5's progress-callback thresholds are job-wide, not per-segment:
	// five anti-hotlink failures or more than twenty link-expired failures
	// anywhere in the playlist make the whole job non-retryable, even if
	// the triggering failure wasn't the first one observed.
	if antiHotlinkFails >= AntiHotlinkThreshold {
		rec := &FailureRecord{Kind: FailureAntiHotlink, Attempts: antiHotlinkFails}
		return nil, rec, &ClassifiedError{Kind: FailureAntiHotlink, Err: fmt.Errorf("segment: %d segments classified anti-hotlink, exceeding threshold", antiHotlinkFails)}
	}
	if linkExpiredFails > 20 {
		rec := &FailureRecord{Kind: FailureLinkExpired, Attempts: linkExpiredFails}
		return nil, rec, &ClassifiedError{Kind: FailureLinkExpired, Err: fmt.Errorf("segment: %d segments returned 403/404/474, link expired", linkExpiredFails)}
	}

	if firstErr != nil {
		if firstFail != nil {
			firstErr = &ClassifiedError{Kind: firstFail.Kind, Err: firstErr}
		}
		return nil, firstFail, firstErr
	}
	return paths, nil, nil
}

// downloadOne runs the retry/backoff loop for a single segment, trying
// header strategies in order until one yields TS-shaped content, then
// memoizing that strategy for the rest of the job.
func (d *Downloader) downloadOne(ctx context.Context, seg playlist.Segment, destDir string, baseHeaders map[string]string, stop *StopFlag) (string, *FailureRecord, error) {
	var lastResp *httpclient.Response
	attempts := 0
	antiHotlinkStreak := 0
	sawImage := false

	strategies := d.candidateStrategies()

	for attempt := 0; attempt < MaxRetryAttempts; attempt++ {
		if stop.Stopped() || ctx.Err() != nil {
			return "", nil, fmt.Errorf("segment %d: %w", seg.Index, context.Canceled)
		}

		for _, strategy := range strategies {
			attempts++
			hdrs := buildHeaders(strategy, baseHeaders, d.SourcePage, d.M3U8URL, seg.URL)
			resp, err := d.Client.Get(ctx, seg.URL, hdrs, httpclient.RequestOptions{})
			if err != nil {
				lastResp = nil
				continue
			}
			lastResp = resp

			// §4.3 step 3: HTTP 474, a sub-packet body, or an image magic
			// number are "strategy failures" — try the next strategy
			// rather than treating them as a hard HTTP error. An image
			// body is also the §4.5/§8 anti-hotlink signal, so it's
			// remembered even though this strategy is abandoned.
			if looksLikeImage(resp.Body) {
				sawImage = true
				continue
			}
			if resp.StatusCode == 474 || len(resp.Body) < 188 {
				continue
			}
			if resp.StatusCode == 403 || resp.StatusCode == 404 {
				continue
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				continue
			}

			plain, decErr := d.decrypt(ctx, resp.Body, seg)
			if decErr != nil {
				return "", nil, fmt.Errorf("segment %d: %w", seg.Index, decErr)
			}

			if looksLikeImage(plain) {
				sawImage = true
			}
			if looksLikeAntiHotlinkBody(plain) {
				antiHotlinkStreak++
				continue
			}
			antiHotlinkStreak = 0

			if !looksLikeTS(plain) {
				// §4.3 step 6: an invalid body is still persisted if the
				// job is encrypted (the ciphertext may simply not have
				// decrypted to a clean TS start, but the muxer can often
				// still recover it) or if TS validation is explicitly
				// disabled; otherwise it's a hard per-segment failure.
				switch {
				case seg.Key != nil:
					// persisted below with a warning
				case d.Config.SkipTSValidation:
					// persisted below; validation explicitly disabled
				default:
					return "", nil, fmt.Errorf("segment %d: %w", seg.Index, ErrInvalidContent)
				}
			}

			d.memoizeStrategy(strategy)

			path := filepath.Join(destDir, fmt.Sprintf("segment_%05d.ts", seg.Index))
			if err := os.WriteFile(path, plain, 0o644); err != nil {
				return "", nil, fmt.Errorf("segment %d: write file: %w", seg.Index, err)
			}
			return path, nil, nil
		}

		if antiHotlinkStreak >= AntiHotlinkThreshold {
			return "", d.failureRecord(seg, lastResp, FailureAntiHotlink, attempts), fmt.Errorf("segment %d: anti-hotlink threshold exceeded", seg.Index)
		}

		backoff := d.Config.BaseBackoff * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return "", nil, fmt.Errorf("segment %d: %w", seg.Index, ctx.Err())
		case <-time.After(backoff):
		}
	}

	return d.diagnoseExhaustion(ctx, seg, baseHeaders, lastResp, sawImage, attempts)
}

// diagnoseExhaustion runs §4.3 step 4's final diagnostic request — the
// original (unmodified) headers, issued purely to capture a status/headers/
// body snapshot for the failure record — once every header strategy and
// retry attempt has been exhausted, then classifies the failure.
func (d *Downloader) diagnoseExhaustion(ctx context.Context, seg playlist.Segment, baseHeaders map[string]string, lastResp *httpclient.Response, sawImage bool, attempts int) (string, *FailureRecord, error) {
	finalResp := lastResp
	if resp, err := d.Client.Get(ctx, seg.URL, baseHeaders, httpclient.RequestOptions{}); err == nil {
		finalResp = resp
		if looksLikeImage(resp.Body) {
			sawImage = true
		}
	}

	kind := FailureNetwork
	switch {
	case sawImage:
		kind = FailureAntiHotlink
	case finalResp != nil:
		status := finalResp.StatusCode
		if status == 403 || status == 404 || status == 474 {
			kind = FailureLinkExpired
		} else {
			kind = FailureHTTPStatus
		}
	}
	return "", d.failureRecord(seg, finalResp, kind, attempts), fmt.Errorf("segment %d: exhausted %d attempts", seg.Index, attempts)
}

// candidateStrategies returns the memoized working strategy alone once one
// has succeeded, otherwise the full fallback order.
func (d *Downloader) candidateStrategies() []HeaderStrategy {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.workingStrategy != nil {
		return []HeaderStrategy{*d.workingStrategy}
	}
	return orderedStrategies
}

func (d *Downloader) memoizeStrategy(s HeaderStrategy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.workingStrategy == nil {
		d.workingStrategy = &s
	}
}

func (d *Downloader) decrypt(ctx context.Context, data []byte, seg playlist.Segment) ([]byte, error) {
	if seg.Key == nil {
		return data, nil
	}
	if startsWithSyncByte(data) {
		// §4.3 step 5: some CDNs decrypt AES-128 segments server-side
		// despite the playlist still advertising encryption; running AES
		// over already-plaintext TS would just corrupt it (§9).
		return data, nil
	}
	key, err := d.fetchKey(ctx, seg.Key.URI)
	if err != nil {
		return nil, fmt.Errorf("fetch key: %w", err)
	}
	candidates := decryptCandidates(seg.Key.IV, seg.SequenceNumber)
	return decryptAES128CBC(zeroExtend(data), key, candidates)
}

func (d *Downloader) fetchKey(ctx context.Context, keyURI string) ([]byte, error) {
	d.keyCacheMu.Lock()
	if k, ok := d.keyCache[keyURI]; ok {
		d.keyCacheMu.Unlock()
		return k, nil
	}
	d.keyCacheMu.Unlock()

	resp, err := d.Client.Get(ctx, keyURI, nil, httpclient.RequestOptions{})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("key server returned status %d", resp.StatusCode)
	}
	if len(resp.Body) != 16 {
		return nil, fmt.Errorf("invalid key length: expected 16 bytes, got %d", len(resp.Body))
	}

	d.keyCacheMu.Lock()
	d.keyCache[keyURI] = resp.Body
	d.keyCacheMu.Unlock()
	return resp.Body, nil
}

func (d *Downloader) failureRecord(seg playlist.Segment, resp *httpclient.Response, kind FailureKind, attempts int) *FailureRecord {
	rec := &FailureRecord{SegmentURL: seg.URL, Kind: kind, Attempts: attempts}
	if resp != nil {
		rec.StatusCode = resp.StatusCode
		rec.ResponseHeaders = map[string][]string(resp.Header)
		head := resp.Body
		if len(head) > 500 {
			head = head[:500]
		}
		rec.ResponseHead = string(head)
	}
	return rec
}
