package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/sitezip"
)

// Ensure LoggingQuotaService implements sitezip.QuotaService.
var _ sitezip.QuotaService = (*LoggingQuotaService)(nil)

// LoggingQuotaService wraps a QuotaService with logging.
type LoggingQuotaService struct {
	next   sitezip.QuotaService
	logger *slog.Logger
}

// NewLoggingQuotaService creates a new LoggingQuotaService.
func NewLoggingQuotaService(next sitezip.QuotaService, logger *slog.Logger) *LoggingQuotaService {
	return &LoggingQuotaService{next: next, logger: logger}
}

// Consume delegates to the wrapped service and logs the operation.
func (s *LoggingQuotaService) Consume(ctx context.Context, identity string) (q sitezip.Quota, err error) {
	defer func(begin time.Time) {
		s.logger.Info("quota consume",
			"identity", identity,
			"remaining", q.Remaining,
			"limit", q.Limit,
			"code", sitezip.ErrorCode(err),
			"duration", time.Since(begin),
		)
	}(time.Now())
	return s.next.Consume(ctx, identity)
}

// Remaining delegates to the wrapped service.
func (s *LoggingQuotaService) Remaining(ctx context.Context, identity string) (sitezip.Quota, error) {
	return s.next.Remaining(ctx, identity)
}
