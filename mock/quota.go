package mock

import (
	"context"

	"github.com/fwojciec/sitezip"
)

var _ sitezip.QuotaService = (*QuotaService)(nil)

// QuotaService is a mock implementation of sitezip.QuotaService.
type QuotaService struct {
	ConsumeFn   func(ctx context.Context, identity string) (sitezip.Quota, error)
	RemainingFn func(ctx context.Context, identity string) (sitezip.Quota, error)
}

func (s *QuotaService) Consume(ctx context.Context, identity string) (sitezip.Quota, error) {
	return s.ConsumeFn(ctx, identity)
}

func (s *QuotaService) Remaining(ctx context.Context, identity string) (sitezip.Quota, error) {
	return s.RemainingFn(ctx, identity)
}
