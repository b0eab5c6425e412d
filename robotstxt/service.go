// Package robotstxt implements sitezip.ExclusionService by fetching and
// parsing an origin's /robots.txt.
package robotstxt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fwojciec/sitezip"
	"github.com/temoto/robotstxt"
)

// DefaultTimeout bounds a single robots.txt fetch.
const DefaultTimeout = 3 * time.Second

// DefaultAgent is the generic crawler identity tested against the rules.
const DefaultAgent = "Mozilla/5.0"

// maxBodyBytes limits the size of robots.txt responses we will read.
const maxBodyBytes = 512 * 1024

// Ensure Service implements sitezip.ExclusionService at compile time.
var _ sitezip.ExclusionService = (*Service)(nil)

// Service fetches robots.txt files. It holds no cache; callers decide how
// long a policy lives.
type Service struct {
	client    *http.Client
	timeout   time.Duration
	agent     string
	userAgent string
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout sets the timeout for a robots.txt fetch.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithAgent sets the crawler name matched against User-agent groups.
func WithAgent(agent string) Option {
	return func(s *Service) {
		s.agent = agent
	}
}

// WithUserAgent sets the User-Agent header sent with the fetch.
func WithUserAgent(ua string) Option {
	return func(s *Service) {
		s.userAgent = ua
	}
}

// WithClient sets the underlying HTTP client.
func WithClient(c *http.Client) Option {
	return func(s *Service) {
		s.client = c
	}
}

// NewService creates a new Service.
func NewService(opts ...Option) *Service {
	s := &Service{
		timeout: DefaultTimeout,
		agent:   DefaultAgent,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	return s
}

// FetchPolicy fetches origin + "/robots.txt" and returns its rules for the
// configured agent. Non-2xx responses yield an allow-all policy. Transport
// and parse failures are returned as errors; callers treat them as allow-all.
func (s *Service) FetchPolicy(ctx context.Context, origin string) (sitezip.ExclusionPolicy, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("robots: create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("robots: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return sitezip.AllowAll, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("robots: read body: %w", err)
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("robots: parse: %w", err)
	}

	return &Policy{group: data.FindGroup(s.agent)}, nil
}

// Policy is the rule group of one robots.txt that applies to an agent.
type Policy struct {
	group *robotstxt.Group
}

// Allowed reports whether path may be fetched.
func (p *Policy) Allowed(path string) bool {
	if p.group == nil {
		return true
	}
	if path == "" {
		path = "/"
	}
	return p.group.Test(path)
}
