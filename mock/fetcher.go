package mock

import (
	"context"
	"net/http"

	"github.com/fwojciec/sitezip"
)

var _ sitezip.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of sitezip.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string, header http.Header) (*sitezip.Response, error)
}

func (f *Fetcher) Fetch(ctx context.Context, url string, header http.Header) (*sitezip.Response, error) {
	return f.FetchFn(ctx, url, header)
}
