// Package playlist implements C2: fetching and interpreting HLS playlists,
// selecting a variant, and emitting an ordered segment list with
// per-segment key/IV handling, per spec §4.2.
package playlist

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/reelvault/worker/internal/httpclient"
)

const (
	maxPlaylistBytes     = 10 * 1024 * 1024 // 10 MiB hard cap
	maxMediaContentLength = 1 * 1024 * 1024 // 1 MiB early-reject threshold
)

var (
	bandwidthRe   = regexp.MustCompile(`BANDWIDTH=(\d+)`)
	resolutionRe  = regexp.MustCompile(`RESOLUTION=(\d+x\d+)`)
	mediaSeqRe    = regexp.MustCompile(`#EXT-X-MEDIA-SEQUENCE:(\d+)`)
	extinfRe      = regexp.MustCompile(`#EXTINF:([\d.]+)(?:,(.*))?`)
	keyMethodRe   = regexp.MustCompile(`METHOD=([^,]+)`)
	keyURIRe      = regexp.MustCompile(`URI="([^"]*)"`)
	keyIVRe       = regexp.MustCompile(`IV=([^,\s]+)`)
)

type variant struct {
	url        string
	bandwidth  int
	resolution string
}

// Parse fetches url with headers over client, classifies it as a master or
// media playlist, and returns the fully resolved segment descriptor. Master
// playlists recurse into the highest-bandwidth variant using the same
// client so cookies/TLS state carry over (§4.2, §9).
func Parse(ctx context.Context, rawURL string, headers map[string]string, client httpclient.Client) (*Descriptor, error) {
	headers = SanitizeHeaders(headers)

	body, err := fetch(ctx, rawURL, headers, client)
	if err != nil {
		return nil, err
	}

	if !utf8.Valid(body) {
		return nil, newError(BadResponse, "body is not valid UTF-8")
	}
	if err := rejectNonPlaylistMagic(body); err != nil {
		return nil, err
	}
	if !hasEXTM3UHeader(body) {
		log.Printf("[playlist] WARNING: %s does not start with #EXTM3U", rawURL)
	}

	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, newError(BadResponse, "invalid playlist URL: %v", err)
	}

	variants, segments, err := parseLines(body, base)
	if err != nil {
		return nil, err
	}

	if len(variants) > 0 {
		best := selectBestVariant(variants)
		if best == nil {
			return nil, newError(NoVariants, "master playlist declared no variants")
		}
		desc, err := Parse(ctx, best.url, headers, client)
		if err != nil {
			return nil, err
		}
		if desc.Resolution == "" {
			desc.Resolution = best.resolution
		}
		return desc, nil
	}

	if len(segments) == 0 {
		return nil, newError(NoSegments, "playlist has no segments")
	}

	total := 0.0
	hasEncryption := false
	for _, s := range segments {
		total += s.DurationSeconds
		if s.Key != nil {
			hasEncryption = true
		}
	}

	return &Descriptor{
		Segments:      segments,
		Duration:      int(total),
		HasEncryption: hasEncryption,
		BaseURL:       rawURL,
	}, nil
}

func hasEXTM3UHeader(body []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(trimLeadingBOM(body))), "#EXTM3U")
}

func trimLeadingBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func fetch(ctx context.Context, rawURL string, headers map[string]string, client httpclient.Client) ([]byte, error) {
	resp, err := client.Get(ctx, rawURL, headers, httpclient.RequestOptions{})
	if err != nil {
		return nil, newError(BadResponse, "fetch failed: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(BadResponse, "server returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if cl := resp.Header.Get("Content-Length"); cl != "" && looksLikeMediaContentType(contentType) {
		if n, err := strconv.Atoi(cl); err == nil && n > maxMediaContentLength {
			return nil, newError(BadResponse, "Content-Length %d exceeds 1 MiB cap for media-like Content-Type %q", n, contentType)
		}
	}

	if len(resp.Body) > maxPlaylistBytes {
		return nil, newError(BadResponse, "playlist body exceeds 10 MiB cap")
	}

	return resp.Body, nil
}

func looksLikeMediaContentType(ct string) bool {
	ct = strings.ToLower(ct)
	for _, prefix := range []string{"video/", "audio/", "image/"} {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

// parseLines is the shared scanner for master and media playlists; it
// returns non-empty variants for a master playlist or non-empty segments
// for a media playlist (never both for a well-formed input).
func parseLines(body []byte, base *url.URL) ([]variant, []Segment, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var variants []variant
	var segments []Segment

	mediaSequence := 0
	var pendingDuration float64
	var pendingHasDuration bool
	var currentKey *Key
	index := 0
	isMaster := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if m := mediaSeqRe.FindStringSubmatch(line); m != nil {
			mediaSequence, _ = strconv.Atoi(m[1])
			continue
		}

		if strings.HasPrefix(line, "#EXT-X-STREAM-INF:") {
			isMaster = true
			v := variant{
				bandwidth:  extractInt(bandwidthRe, line),
				resolution: extractString(resolutionRe, line),
			}
			for scanner.Scan() {
				next := strings.TrimSpace(scanner.Text())
				if next == "" || strings.HasPrefix(next, "#") {
					continue
				}
				v.url = resolveURL(base, next)
				break
			}
			if v.url != "" {
				variants = append(variants, v)
			}
			continue
		}

		if strings.HasPrefix(line, "#EXT-X-KEY:") {
			method := extractString(keyMethodRe, line)
			if method == "" || strings.EqualFold(method, "NONE") {
				currentKey = nil
				continue
			}
			uri := extractString(keyURIRe, line)
			currentKey = &Key{
				Method: method,
				URI:    resolveURL(base, uri),
				IV:     parseIV(line),
			}
			continue
		}

		if strings.HasPrefix(line, "#EXTINF:") {
			if m := extinfRe.FindStringSubmatch(line); len(m) >= 2 {
				pendingDuration, _ = strconv.ParseFloat(m[1], 64)
				pendingHasDuration = true
			}
			continue
		}

		if strings.HasPrefix(line, "#") {
			continue
		}

		if isMaster {
			continue // stray non-# line in a master playlist before variants settle
		}

		seg := Segment{
			URL:             resolveURL(base, line),
			DurationSeconds: pendingDuration,
			Index:           index,
			SequenceNumber:  mediaSequence + index,
		}
		if currentKey != nil {
			k := *currentKey
			seg.Key = &k
		}
		segments = append(segments, seg)
		index++
		pendingDuration = 0
		pendingHasDuration = false
	}
	_ = pendingHasDuration

	if err := scanner.Err(); err != nil {
		return nil, nil, newError(BadResponse, "scanning playlist: %v", err)
	}

	return variants, segments, nil
}

func selectBestVariant(variants []variant) *variant {
	if len(variants) == 0 {
		return nil
	}
	best := variants[0]
	for _, v := range variants[1:] {
		if v.bandwidth > best.bandwidth {
			best = v
		}
	}
	return &best
}

func resolveURL(base *url.URL, ref string) string {
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(refURL).String()
}

func extractString(re *regexp.Regexp, line string) string {
	m := re.FindStringSubmatch(line)
	if len(m) >= 2 {
		return m[1]
	}
	return ""
}

func extractInt(re *regexp.Regexp, line string) int {
	s := extractString(re, line)
	if s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}

// parseIV extracts the IV= attribute of an #EXT-X-KEY line. Accepts
// 0x/0X-prefixed or bare hex strings; any malformed value (odd length,
// non-hex characters) yields nil rather than an error, per §4.2.
func parseIV(line string) []byte {
	raw := extractString(keyIVRe, line)
	if raw == "" {
		return nil
	}
	raw = strings.Trim(raw, `"`)

	hexPart := raw
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		hexPart = raw[2:]
	}
	if hexPart == "" || len(hexPart)%2 != 0 {
		return nil
	}
	for _, r := range hexPart {
		if !isHexDigit(r) {
			return nil
		}
	}
	b, err := hex.DecodeString(hexPart)
	if err != nil {
		return nil
	}
	return b
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
