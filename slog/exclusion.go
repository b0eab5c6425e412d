package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/sitezip"
)

// Ensure LoggingExclusionService implements sitezip.ExclusionService.
var _ sitezip.ExclusionService = (*LoggingExclusionService)(nil)

// LoggingExclusionService wraps an ExclusionService with logging.
// Failures are logged as warnings since the crawl proceeds without rules.
type LoggingExclusionService struct {
	next   sitezip.ExclusionService
	logger *slog.Logger
}

// NewLoggingExclusionService creates a new LoggingExclusionService.
func NewLoggingExclusionService(next sitezip.ExclusionService, logger *slog.Logger) *LoggingExclusionService {
	return &LoggingExclusionService{next: next, logger: logger}
}

// FetchPolicy delegates to the wrapped service and logs the operation.
func (s *LoggingExclusionService) FetchPolicy(ctx context.Context, origin string) (policy sitezip.ExclusionPolicy, err error) {
	defer func(begin time.Time) {
		if err != nil {
			s.logger.Warn("robots policy unavailable, allowing all",
				"origin", origin,
				"duration", time.Since(begin),
				"err", err,
			)
			return
		}
		s.logger.Info("robots policy",
			"origin", origin,
			"duration", time.Since(begin),
		)
	}(time.Now())
	return s.next.FetchPolicy(ctx, origin)
}
