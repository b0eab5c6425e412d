package slog_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/fwojciec/sitezip"
	"github.com/fwojciec/sitezip/mock"
	szslog "github.com/fwojciec/sitezip/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLoggingFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("logs fetch with status, bytes and duration", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.Fetcher{
			FetchFn: func(_ context.Context, url string, header http.Header) (*sitezip.Response, error) {
				assert.Equal(t, "v", header.Get("X-Test"))
				return &sitezip.Response{URL: url, StatusCode: 200, ContentType: "text/html", Body: []byte("<html>content</html>")}, nil
			},
		}

		fetcher := szslog.NewLoggingFetcher(inner, debugLogger(&buf))
		resp, err := fetcher.Fetch(context.Background(), "https://example.com/docs", http.Header{"X-Test": {"v"}})

		require.NoError(t, err)
		assert.Equal(t, "<html>content</html>", string(resp.Body))
		output := buf.String()
		assert.Contains(t, output, "msg=fetch")
		assert.Contains(t, output, "url=https://example.com/docs")
		assert.Contains(t, output, "status=200")
		assert.Contains(t, output, "bytes=20")
		assert.Contains(t, output, "duration=")
	})

	t.Run("logs failure kind and error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.Fetcher{
			FetchFn: func(_ context.Context, url string, _ http.Header) (*sitezip.Response, error) {
				return nil, &sitezip.FetchError{Kind: sitezip.FetchHTTPError, URL: url, StatusCode: 503}
			},
		}

		fetcher := szslog.NewLoggingFetcher(inner, debugLogger(&buf))
		_, err := fetcher.Fetch(context.Background(), "https://example.com/docs", nil)

		require.Error(t, err)
		output := buf.String()
		assert.Contains(t, output, "kind=http-error")
		assert.Contains(t, output, `err="http-error: HTTP 503"`)
	})

	t.Run("is silent above debug level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.Fetcher{
			FetchFn: func(_ context.Context, url string, _ http.Header) (*sitezip.Response, error) {
				return &sitezip.Response{URL: url}, nil
			},
		}

		fetcher := szslog.NewLoggingFetcher(inner, slog.New(slog.NewTextHandler(&buf, nil)))
		_, err := fetcher.Fetch(context.Background(), "https://example.com/", nil)

		require.NoError(t, err)
		assert.Empty(t, buf.String())
	})
}
