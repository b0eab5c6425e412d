// Package rate implements sitezip.QuotaService with an in-process token
// bucket per identity.
package rate

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/fwojciec/sitezip"
	"golang.org/x/time/rate"
)

// Quota defaults.
const (
	DefaultLimit  = 5
	DefaultWindow = 24 * time.Hour
)

// pruneThreshold is the number of tracked identities above which full
// buckets are forgotten.
const pruneThreshold = 10000

// Ensure QuotaService implements sitezip.QuotaService at compile time.
var _ sitezip.QuotaService = (*QuotaService)(nil)

// QuotaService grants each identity limit runs per window. Allowance refills
// continuously, so an identity that used everything gets one run back after
// window/limit.
type QuotaService struct {
	limit int
	every rate.Limit
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option configures a QuotaService.
type Option func(*QuotaService)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *QuotaService) {
		s.now = now
	}
}

// NewQuotaService creates a QuotaService allowing limit runs per window.
// Non-positive values select DefaultLimit and DefaultWindow.
func NewQuotaService(limit int, window time.Duration, opts ...Option) *QuotaService {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	s := &QuotaService{
		limit:    limit,
		every:    rate.Every(window / time.Duration(limit)),
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Consume takes one run from identity's allowance.
func (s *QuotaService) Consume(_ context.Context, identity string) (sitezip.Quota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	l := s.limiter(identity, now)
	if !l.AllowN(now, 1) {
		return s.quota(l, now), sitezip.Errorf(sitezip.ERATELIMIT, "Rate limit exceeded. Try again later.")
	}
	return s.quota(l, now), nil
}

// Remaining reports identity's allowance.
func (s *QuotaService) Remaining(_ context.Context, identity string) (sitezip.Quota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	l, ok := s.limiters[identity]
	if !ok {
		return sitezip.Quota{Remaining: s.limit, Limit: s.limit}, nil
	}
	return s.quota(l, now), nil
}

func (s *QuotaService) limiter(identity string, now time.Time) *rate.Limiter {
	if l, ok := s.limiters[identity]; ok {
		return l
	}
	if len(s.limiters) >= pruneThreshold {
		s.prune(now)
	}
	l := rate.NewLimiter(s.every, s.limit)
	s.limiters[identity] = l
	return l
}

// prune forgets identities whose allowance has fully refilled.
func (s *QuotaService) prune(now time.Time) {
	for id, l := range s.limiters {
		if l.TokensAt(now) >= float64(s.limit) {
			delete(s.limiters, id)
		}
	}
}

func (s *QuotaService) quota(l *rate.Limiter, now time.Time) sitezip.Quota {
	remaining := int(math.Floor(l.TokensAt(now)))
	remaining = max(0, min(remaining, s.limit))
	return sitezip.Quota{Remaining: remaining, Limit: s.limit}
}
