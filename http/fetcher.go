// Package http provides the net/http implementation of sitezip.Fetcher and
// the HTTP transport that streams archives to clients.
package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/fwojciec/sitezip"
)

// DefaultFetchTimeout is the default timeout for a single fetch.
const DefaultFetchTimeout = 15 * time.Second

// DefaultMaxBytes caps the size of a fetched body.
const DefaultMaxBytes = 32 << 20

// DefaultUserAgent identifies outbound fetches.
const DefaultUserAgent = "Mozilla/5.0 (compatible; sitezip/1.0)"

// Ensure Fetcher implements sitezip.Fetcher at compile time.
var _ sitezip.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves resources using plain HTTP GET requests.
// It does not execute JavaScript.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for a single fetch.
// Defaults to DefaultFetchTimeout (15s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxBytes sets the largest body accepted before failing with too-large.
// A value <= 0 disables the cap.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		f.maxBytes = n
	}
}

// WithUserAgent sets the identifying User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithClient sets the underlying HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:   DefaultFetchTimeout,
		maxBytes:  DefaultMaxBytes,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	return f
}

// Fetch retrieves url. Entries in header replace the fixed User-Agent and any
// other default header of the same name.
func (f *Fetcher) Fetch(ctx context.Context, url string, header http.Header) (*sitezip.Response, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &sitezip.FetchError{Kind: sitezip.FetchConnection, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	for name, values := range header {
		req.Header.Del(name)
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &sitezip.FetchError{Kind: sitezip.FetchHTTPError, URL: url, StatusCode: resp.StatusCode}
	}

	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, &sitezip.FetchError{Kind: sitezip.FetchTooLarge, URL: url, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, classify(url, err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, &sitezip.FetchError{Kind: sitezip.FetchTooLarge, URL: url, StatusCode: resp.StatusCode}
	}

	// The final URL differs from url after redirects.
	return &sitezip.Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// classify maps a transport error to a fetch failure kind.
func classify(url string, err error) *sitezip.FetchError {
	kind := sitezip.FetchConnection
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = sitezip.FetchTimeout
	}
	return &sitezip.FetchError{Kind: kind, URL: url, Err: err}
}
