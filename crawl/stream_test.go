package crawl_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/fwojciec/sitezip"
	"github.com/fwojciec/sitezip/crawl"
	"github.com/fwojciec/sitezip/mock"
	"github.com/fwojciec/sitezip/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newZipWriter(w io.Writer) sitezip.ArchiveWriter {
	return zip.NewWriter(w)
}

func TestCrawler_Stream(t *testing.T) {
	t.Parallel()

	t.Run("streams a complete archive", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(map[string]resource{
			"https://example.com/":      htmlPage(`<img src="/a.png">`),
			"https://example.com/a.png": asset("image/png", "png"),
		})
		c := newTestCrawler(site)

		s := c.Stream(context.Background(), &sitezip.CrawlRequest{
			URLs: []string{"https://example.com/"},
			Mode: sitezip.ModeAssets,
		}, newZipWriter)
		data, err := io.ReadAll(s)
		require.NoError(t, err)

		entries := readZip(t, data)
		assert.Len(t, entries, 2)

		result, err := s.Result()
		require.NoError(t, err)
		assert.Equal(t, 2, result.Resources)
		assert.Equal(t, s.ID, result.RunID)
		assert.Equal(t, sitezip.StateDone, result.State)
		assert.NotEmpty(t, result.Log)
		require.NoError(t, s.Close())
	})

	t.Run("surfaces run failures as read errors", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(map[string]resource{
			"https://example.com/": htmlPage("home"),
		})
		c := newTestCrawler(site)
		fault := errors.New("sink broken")

		s := c.Stream(context.Background(), &sitezip.CrawlRequest{
			URLs: []string{"https://example.com/"},
			Mode: sitezip.ModeHTML,
		}, func(io.Writer) sitezip.ArchiveWriter {
			return &mock.ArchiveWriter{
				AppendFn: func(string, []byte) error { return fault },
				CloseFn:  func() error { return nil },
				AbortFn:  func() error { return nil },
			}
		})
		_, err := io.ReadAll(s)

		assert.ErrorIs(t, err, fault)
		result, runErr := s.Result()
		assert.ErrorIs(t, runErr, fault)
		assert.Equal(t, sitezip.StateFailed, result.State)
	})

	t.Run("invalid requests fail without fetching", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(nil)
		c := newTestCrawler(site)

		s := c.Stream(context.Background(), &sitezip.CrawlRequest{Mode: sitezip.ModeHTML}, newZipWriter)
		_, err := io.ReadAll(s)

		assert.Equal(t, sitezip.EINVALID, sitezip.ErrorCode(err))
		assert.Zero(t, site.totalFetches())
	})

	t.Run("closing early cancels the run", func(t *testing.T) {
		t.Parallel()

		started := make(chan struct{})
		c := &crawl.Crawler{
			Concurrency: 1,
			Fetcher: &mock.Fetcher{
				FetchFn: func(ctx context.Context, url string, _ http.Header) (*sitezip.Response, error) {
					close(started)
					<-ctx.Done()
					return nil, &sitezip.FetchError{Kind: sitezip.FetchTimeout, URL: url, Err: ctx.Err()}
				},
			},
		}

		s := c.Stream(context.Background(), &sitezip.CrawlRequest{
			URLs: []string{"https://example.com/"},
			Mode: sitezip.ModeHTML,
		}, newZipWriter)
		<-started
		require.NoError(t, s.Close())

		result, err := s.Result()
		assert.Equal(t, sitezip.ECANCELED, sitezip.ErrorCode(err))
		assert.Equal(t, sitezip.StateFailed, result.State)
	})
}
