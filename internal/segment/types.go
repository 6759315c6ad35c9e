// Package segment implements C3: the concurrent, cancellable segment
// downloader with header-strategy fallback, AES-128 decryption and TS
// content validation, per §4.3 of the pipeline spec.
package segment

import (
	"errors"
	"time"
)

// ErrInvalidContent is returned when a segment body fails the TS sync-byte
// check and isn't eligible for the encrypted-fallback or
// SkipTSValidation exceptions (§4.3 step 6, §7).
var ErrInvalidContent = errors.New("segment: content failed TS validation")

// AntiHotlinkThreshold trips the non-retryable AntiHotlink classification
// at two levels: within one segment, this many consecutive anti-hotlink
// responses (HTML/error-page bodies where a transport-stream segment was
// expected) end its retries; across a job, this many segments failing as
// anti-hotlink fail the whole download. It is a named package constant
// rather than a literal so both checks change together.
const AntiHotlinkThreshold = 5

// MaxRetryAttempts bounds the per-segment retry loop; exceeding it surfaces
// the last failure to the caller.
const MaxRetryAttempts = 5

// HeaderStrategy names one of the Referer/Origin header combinations tried,
// in order, when an origin rejects a bare segment request.
type HeaderStrategy string

const (
	StrategySourcePage   HeaderStrategy = "source_page"
	StrategySegmentDomain HeaderStrategy = "segment_domain"
	StrategyM3U8URL      HeaderStrategy = "m3u8_url"
	StrategyNoReferer    HeaderStrategy = "no_referer"
)

// orderedStrategies is the fallback sequence applied the first time a
// segment download needs a non-default header set.
var orderedStrategies = []HeaderStrategy{
	StrategySourcePage,
	StrategySegmentDomain,
	StrategyM3U8URL,
	StrategyNoReferer,
}

// Config tunes the downloader's concurrency and backoff behavior.
type Config struct {
	Workers           int
	BaseBackoff       time.Duration
	SkipTSValidation  bool
}

// DefaultConfig mirrors §6's MAX_DOWNLOAD_WORKERS default of 2, with a
// one-second base backoff so attempt n sleeps 2^n seconds per §4.3 step 7.
func DefaultConfig() Config {
	return Config{
		Workers:     2,
		BaseBackoff: 1 * time.Second,
	}
}

// Progress reports downloaded/total counts as segments complete, in
// discovery order's completion count (not necessarily sequential index).
type Progress struct {
	Downloaded int
	Total      int
}

// FailureKind classifies why a segment ultimately failed, mirroring the
// taxonomy jobrunner uses to decide retryability (§7).
type FailureKind string

const (
	FailureNetwork     FailureKind = "network_error"
	FailureHTTPStatus  FailureKind = "http_status_error"
	FailureAntiHotlink FailureKind = "anti_hotlink"
	FailureLinkExpired FailureKind = "link_expired"
	FailureInvalidContent FailureKind = "invalid_content"
	FailureDecryption  FailureKind = "decryption_failed"
	FailureCancelled   FailureKind = "cancelled"
)

// ClassifiedError wraps a job-level download failure with the FailureKind
// jobrunner's retry policy should apply, so callers classify by type
// instead of sniffing error-message substrings (§7).
type ClassifiedError struct {
	Kind FailureKind
	Err  error
}

func (e *ClassifiedError) Error() string { return e.Err.Error() }
func (e *ClassifiedError) Unwrap() error { return e.Err }

// FailureRecord captures the diagnostic request issued once a segment
// exhausts every header strategy, so operators can see exactly what the
// origin returned (§4.3 step 6 / §7).
type FailureRecord struct {
	SegmentURL      string
	Kind            FailureKind
	StatusCode      int
	ResponseHeaders map[string][]string
	ResponseHead    string // first 500 bytes of the diagnostic response body
	Attempts        int
}
