// Package httpclient builds the two HTTP client flavors the job pipeline
// worker needs: a "standard" session and a browser-impersonating session
// used as anti-bot/CDN countermeasure, per §4.1 of the pipeline spec.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

// DefaultTimeout is the per-request HTTP timeout used by the parser and
// the segment downloader unless a caller overrides it.
const DefaultTimeout = 30 * time.Second

// Response is the uniform shape every session flavor returns, with
// case-insensitive header access via the stdlib http.Header type.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Cookies    []*http.Cookie
}

// Text returns the response body decoded as UTF-8 text.
func (r *Response) Text() string { return string(r.Body) }

// Client is the uniform surface both session flavors expose: get/post/
// head/request with (url, headers, timeout, stream, allowRedirects).
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string, opts RequestOptions) (*Response, error)
	Post(ctx context.Context, url string, headers map[string]string, body []byte, opts RequestOptions) (*Response, error)
	Head(ctx context.Context, url string, headers map[string]string, opts RequestOptions) (*Response, error)
	Request(ctx context.Context, method, url string, headers map[string]string, body []byte, opts RequestOptions) (*Response, error)

	// Raw exposes the underlying *http.Client for callers that need a
	// streaming io.ReadCloser body (the direct-download path) rather than
	// the buffered Response shape.
	Raw() *http.Client
}

// RequestOptions controls per-call behavior; zero value uses DefaultTimeout,
// non-streaming, and does not follow redirects (a 3xx response is returned
// as-is unless AllowRedirects is set).
type RequestOptions struct {
	Timeout        time.Duration
	Stream         bool
	AllowRedirects bool
}

func (o RequestOptions) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTimeout
}

type session struct {
	client *http.Client
	kind   string
}

// StandardConfig tunes the "standard" session (§4.1).
type StandardConfig struct {
	// InsecureSkipVerify disables TLS hostname/verification checks to
	// tolerate mis-issued certs. Disabled by default per spec.
	InsecureSkipVerify bool
	// LegacyRenegotiation allows a TLS renegotiation handshake that some
	// older media origins still require.
	LegacyRenegotiation bool
}

// Standard returns the plain HTTP session: TLS verification follows
// configuration, legacy cipher suites and (optionally) legacy TLS
// renegotiation are supported for origins that require them.
//
// Go's crypto/tls does not parse OpenSSL cipher strings
// ("DEFAULT:!aNULL:!eNULL:!MD5:@SECLEVEL=1"); the closest in-stdlib
// approximation is enabling the full secure+insecure suite list rather
// than pinning Go's narrower secure default, which is what this builds.
func Standard(cfg StandardConfig) Client {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // configurable per spec §4.1, default false
		CipherSuites:       legacyCipherSuites(),
		MinVersion:         tls.VersionTLS10,
	}
	if cfg.LegacyRenegotiation {
		tlsCfg.Renegotiation = tls.RenegotiateOnceAsClient
	}

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &session{
		kind: "standard",
		client: &http.Client{
			Jar: jar,
			Transport: &http.Transport{
				TLSClientConfig:       tlsCfg,
				ResponseHeaderTimeout: DefaultTimeout,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
}

// legacyCipherSuites returns every cipher suite Go's crypto/tls knows how
// to negotiate, secure and insecure, approximating the broad compatibility
// an OpenSSL "@SECLEVEL=1" cipher string would request.
func legacyCipherSuites() []uint16 {
	var ids []uint16
	for _, c := range tls.CipherSuites() {
		ids = append(ids, c.ID)
	}
	for _, c := range tls.InsecureCipherSuites() {
		ids = append(ids, c.ID)
	}
	return ids
}

// ImpersonatingConfig tunes the browser-impersonating session.
type ImpersonatingConfig struct {
	StandardConfig
}

// Impersonating returns a session built on crypto/tls with TLS 1.2 as the
// minimum version and the full cipher suite list, forcing HTTP/1.1 to avoid
// servers returning headers invalid under HTTP/2. Its ClientHello is Go's
// own; it does not reproduce a Chrome JA3 fingerprint. If construction
// fails it falls back to Standard with a logged warning.
func Impersonating(cfg ImpersonatingConfig) Client {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
		CipherSuites:       legacyCipherSuites(),
		MinVersion:         tls.VersionTLS12,
		NextProtos:         []string{"http/1.1"}, // force HTTP/1.1 per §4.1
	}
	if cfg.LegacyRenegotiation {
		tlsCfg.Renegotiation = tls.RenegotiateOnceAsClient
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		log.Printf("[httpclient] WARNING: impersonating session unavailable (%v), falling back to standard session", err)
		return Standard(cfg.StandardConfig)
	}

	return &session{
		kind: "impersonating",
		client: &http.Client{
			Jar: jar,
			Transport: &http.Transport{
				TLSClientConfig:       tlsCfg,
				TLSNextProto:          map[string]func(string, *tls.Conn) http.RoundTripper{}, // force HTTP/1.1
				ResponseHeaderTimeout: DefaultTimeout,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
}

func (s *session) Raw() *http.Client { return s.client }

func (s *session) Get(ctx context.Context, url string, headers map[string]string, opts RequestOptions) (*Response, error) {
	return s.Request(ctx, http.MethodGet, url, headers, nil, opts)
}

func (s *session) Post(ctx context.Context, url string, headers map[string]string, body []byte, opts RequestOptions) (*Response, error) {
	return s.Request(ctx, http.MethodPost, url, headers, body, opts)
}

func (s *session) Head(ctx context.Context, url string, headers map[string]string, opts RequestOptions) (*Response, error) {
	return s.Request(ctx, http.MethodHead, url, headers, nil, opts)
}

func (s *session) Request(ctx context.Context, method, url string, headers map[string]string, body []byte, opts RequestOptions) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	client := *s.client
	client.Timeout = opts.timeout()
	if !opts.AllowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if opts.Stream {
		// Callers that asked to stream are expected to use Raw() directly;
		// this path still drains and buffers for interface uniformity.
		log.Printf("[httpclient] stream=true requested through buffered Request(); use Raw() for true streaming")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body from %s: %w", url, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Cookies:    resp.Cookies(),
	}, nil
}
