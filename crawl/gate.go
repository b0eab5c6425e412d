package crawl

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/sitezip"
	"github.com/fwojciec/sitezip/bloom"
	"golang.org/x/sync/singleflight"
)

// Visited-set sizing for the bloom pre-filter.
const (
	// gateExpectedURLs is the expected number of URLs for Bloom filter sizing.
	gateExpectedURLs = 10000
	// gateFalsePositiveRate is the acceptable false positive rate for the pre-filter.
	gateFalsePositiveRate = 0.01
)

// DefaultExclusionTimeout bounds a single crawl-exclusion policy fetch.
const DefaultExclusionTimeout = 3 * time.Second

// Gate decides whether a candidate URL may be fetched during a run.
// It owns the run's visited set and resource counter. It is safe for
// concurrent use; admission and marking visited happen as one atomic step.
type Gate struct {
	exclusions sitezip.ExclusionService
	timeout    time.Duration
	ceiling    int

	mu       sync.Mutex
	seen     *bloom.Filter
	visited  map[string]struct{}
	reserved int // archived plus in flight

	flight   singleflight.Group
	policyMu sync.Mutex
	policies map[string]sitezip.ExclusionPolicy
}

// NewGate returns a Gate admitting at most ceiling resources.
// A nil exclusions service allows every path. A zero timeout uses
// DefaultExclusionTimeout.
func NewGate(exclusions sitezip.ExclusionService, ceiling int, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = DefaultExclusionTimeout
	}
	return &Gate{
		exclusions: exclusions,
		timeout:    timeout,
		ceiling:    ceiling,
		seen:       bloom.NewFilter(gateExpectedURLs, gateFalsePositiveRate),
		visited:    make(map[string]struct{}),
		policies:   make(map[string]sitezip.ExclusionPolicy),
	}
}

// Admit evaluates candidate against origin. Checks run in order: ceiling,
// duplicate, cross-origin, inline, excluded; the first failing check wins.
// An admitted candidate is marked visited and holds one resource slot until
// Release is called.
func (g *Gate) Admit(ctx context.Context, candidate string, origin *url.URL) sitezip.Decision {
	if d, ok := g.check(candidate); !ok {
		return d
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return sitezip.Deny(sitezip.DenyCrossOrigin)
	}
	inline := isInlineScheme(u.Scheme)
	if !inline && !sameOrigin(u, origin) {
		return sitezip.Deny(sitezip.DenyCrossOrigin)
	}
	if inline {
		return sitezip.Deny(sitezip.DenyInline)
	}

	if !g.policy(ctx, originOf(u)).Allowed(requestPath(u)) {
		return sitezip.Deny(sitezip.DenyExcluded)
	}

	// The policy lookup ran unlocked; re-check before marking.
	g.mu.Lock()
	defer g.mu.Unlock()
	if d, ok := g.checkLocked(candidate); !ok {
		return d
	}
	g.seen.Add(candidate)
	g.visited[candidate] = struct{}{}
	g.reserved++
	return sitezip.Allow
}

// Release frees the resource slot held by an admitted candidate that was not
// archived. The candidate stays visited.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reserved > 0 {
		g.reserved--
	}
}

// Reserved returns the number of resource slots held.
func (g *Gate) Reserved() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reserved
}

// Visited reports whether candidate was admitted.
func (g *Gate) Visited(candidate string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isVisited(candidate)
}

func (g *Gate) check(candidate string) (sitezip.Decision, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkLocked(candidate)
}

func (g *Gate) checkLocked(candidate string) (sitezip.Decision, bool) {
	if g.reserved >= g.ceiling {
		return sitezip.Deny(sitezip.DenyCeiling), false
	}
	if g.isVisited(candidate) {
		return sitezip.Deny(sitezip.DenyDuplicate), false
	}
	return sitezip.Allow, true
}

// isVisited consults the bloom filter first; a negative answer is exact.
func (g *Gate) isVisited(candidate string) bool {
	if !g.seen.Test(candidate) {
		return false
	}
	_, ok := g.visited[candidate]
	return ok
}

// policy returns the exclusion policy of origin, fetching it at most once
// per run. Unavailable policies allow everything.
func (g *Gate) policy(ctx context.Context, origin string) sitezip.ExclusionPolicy {
	if g.exclusions == nil {
		return sitezip.AllowAll
	}

	g.policyMu.Lock()
	p, ok := g.policies[origin]
	g.policyMu.Unlock()
	if ok {
		return p
	}

	v, _, _ := g.flight.Do(origin, func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		p, err := g.exclusions.FetchPolicy(ctx, origin)
		if err != nil || p == nil {
			p = sitezip.AllowAll
		}
		g.policyMu.Lock()
		g.policies[origin] = p
		g.policyMu.Unlock()
		return p, nil
	})
	return v.(sitezip.ExclusionPolicy)
}

func isInlineScheme(scheme string) bool {
	switch strings.ToLower(scheme) {
	case "data", "blob", "javascript":
		return true
	}
	return false
}

// sameOrigin compares scheme, host and effective port.
func sameOrigin(u, origin *url.URL) bool {
	return strings.EqualFold(u.Scheme, origin.Scheme) &&
		strings.EqualFold(u.Hostname(), origin.Hostname()) &&
		effectivePort(u) == effectivePort(origin)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}

// originOf returns "scheme://host[:port]" of u.
func originOf(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// requestPath returns the path and query matched against exclusion rules.
func requestPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}
