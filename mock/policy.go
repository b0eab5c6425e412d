package mock

import (
	"context"

	"github.com/fwojciec/sitezip"
)

var _ sitezip.ExclusionService = (*ExclusionService)(nil)

// ExclusionService is a mock implementation of sitezip.ExclusionService.
type ExclusionService struct {
	FetchPolicyFn func(ctx context.Context, origin string) (sitezip.ExclusionPolicy, error)
}

func (s *ExclusionService) FetchPolicy(ctx context.Context, origin string) (sitezip.ExclusionPolicy, error) {
	return s.FetchPolicyFn(ctx, origin)
}

var _ sitezip.ExclusionPolicy = (*ExclusionPolicy)(nil)

// ExclusionPolicy is a mock implementation of sitezip.ExclusionPolicy.
type ExclusionPolicy struct {
	AllowedFn func(path string) bool
}

func (p *ExclusionPolicy) Allowed(path string) bool {
	return p.AllowedFn(path)
}
