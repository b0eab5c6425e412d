package crawl

import (
	"context"
	"strings"
	"sync"

	"github.com/fwojciec/sitezip"
	"golang.org/x/time/rate"
)

var _ sitezip.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter spaces out fetches to the same host with one token bucket
// per host. Hosts are compared case-insensitively. A non-positive rate
// disables limiting.
type DomainLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
}

// NewDomainLimiter returns a DomainLimiter allowing rps fetches per second
// to each host with a burst of 1.
func NewDomainLimiter(rps float64) *DomainLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
	}
}

// Wait blocks until a fetch to domain is allowed or ctx is done.
func (d *DomainLimiter) Wait(ctx context.Context, domain string) error {
	key := strings.ToLower(domain)

	d.mu.Lock()
	limiter, ok := d.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(d.limit, 1)
		d.limiters[key] = limiter
	}
	d.mu.Unlock()

	return limiter.Wait(ctx)
}
