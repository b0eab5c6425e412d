package slog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fwojciec/sitezip"
)

// Ensure LoggingFetcher implements sitezip.Fetcher.
var _ sitezip.Fetcher = (*LoggingFetcher)(nil)

// LoggingFetcher wraps a Fetcher with debug logging.
type LoggingFetcher struct {
	next   sitezip.Fetcher
	logger *slog.Logger
}

// NewLoggingFetcher creates a new LoggingFetcher.
func NewLoggingFetcher(next sitezip.Fetcher, logger *slog.Logger) *LoggingFetcher {
	return &LoggingFetcher{next: next, logger: logger}
}

// Fetch delegates to the wrapped fetcher and logs the operation.
func (f *LoggingFetcher) Fetch(ctx context.Context, url string, header http.Header) (resp *sitezip.Response, err error) {
	defer func(begin time.Time) {
		attrs := []any{"url", url, "duration", time.Since(begin)}
		if resp != nil {
			attrs = append(attrs, "status", resp.StatusCode, "type", resp.ContentType, "bytes", len(resp.Body))
		}
		var fe *sitezip.FetchError
		if errors.As(err, &fe) {
			attrs = append(attrs, "kind", fe.Kind)
		}
		attrs = append(attrs, "err", err)
		f.logger.Debug("fetch", attrs...)
	}(time.Now())
	return f.next.Fetch(ctx, url, header)
}
