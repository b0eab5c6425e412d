package crawl_test

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fwojciec/sitezip"
	"github.com/fwojciec/sitezip/crawl"
	"github.com/fwojciec/sitezip/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func denyPrefix(prefix string) *mock.ExclusionService {
	return &mock.ExclusionService{
		FetchPolicyFn: func(context.Context, string) (sitezip.ExclusionPolicy, error) {
			return &mock.ExclusionPolicy{
				AllowedFn: func(path string) bool {
					return !strings.HasPrefix(path, prefix)
				},
			}, nil
		},
	}
}

func TestGate_Admit(t *testing.T) {
	t.Parallel()

	origin := mustParse(t, "https://example.com/")

	t.Run("admits same-origin candidates once", func(t *testing.T) {
		t.Parallel()

		g := crawl.NewGate(nil, 10, 0)

		assert.Equal(t, sitezip.Allow, g.Admit(context.Background(), "https://example.com/a.css", origin))
		assert.Equal(t, sitezip.Deny(sitezip.DenyDuplicate), g.Admit(context.Background(), "https://example.com/a.css", origin))
		assert.True(t, g.Visited("https://example.com/a.css"))
		assert.Equal(t, 1, g.Reserved())
	})

	t.Run("denies other origins", func(t *testing.T) {
		t.Parallel()

		g := crawl.NewGate(nil, 10, 0)

		for _, candidate := range []string{
			"https://other.com/a.css",
			"http://example.com/a.css",
			"https://example.com:8443/a.css",
			"https://sub.example.com/a.css",
		} {
			assert.Equal(t, sitezip.Deny(sitezip.DenyCrossOrigin), g.Admit(context.Background(), candidate, origin), candidate)
		}
		assert.Zero(t, g.Reserved())
	})

	t.Run("treats default ports and host case as the same origin", func(t *testing.T) {
		t.Parallel()

		g := crawl.NewGate(nil, 10, 0)

		assert.True(t, g.Admit(context.Background(), "https://EXAMPLE.com:443/a", origin).Allowed)
	})

	t.Run("denies inline schemes as inline", func(t *testing.T) {
		t.Parallel()

		g := crawl.NewGate(nil, 10, 0)

		assert.Equal(t, sitezip.Deny(sitezip.DenyInline), g.Admit(context.Background(), "data:text/css,p{}", origin))
		assert.Equal(t, sitezip.Deny(sitezip.DenyInline), g.Admit(context.Background(), "blob:https://example.com/1", origin))
		assert.Equal(t, sitezip.Deny(sitezip.DenyInline), g.Admit(context.Background(), "javascript:void(0)", origin))
	})

	t.Run("denies other schemes as cross-origin", func(t *testing.T) {
		t.Parallel()

		g := crawl.NewGate(nil, 10, 0)

		assert.Equal(t, sitezip.Deny(sitezip.DenyCrossOrigin), g.Admit(context.Background(), "mailto:hi@example.com", origin))
		assert.Equal(t, sitezip.Deny(sitezip.DenyCrossOrigin), g.Admit(context.Background(), "tel:+123", origin))
	})

	t.Run("denies excluded paths including query", func(t *testing.T) {
		t.Parallel()

		var seen []string
		var mu sync.Mutex
		g := crawl.NewGate(&mock.ExclusionService{
			FetchPolicyFn: func(_ context.Context, origin string) (sitezip.ExclusionPolicy, error) {
				assert.Equal(t, "https://example.com", origin)
				return &mock.ExclusionPolicy{
					AllowedFn: func(path string) bool {
						mu.Lock()
						seen = append(seen, path)
						mu.Unlock()
						return path != "/private?x=1"
					},
				}, nil
			},
		}, 10, 0)

		assert.Equal(t, sitezip.Deny(sitezip.DenyExcluded), g.Admit(context.Background(), "https://example.com/private?x=1", origin))
		assert.True(t, g.Admit(context.Background(), "https://example.com", origin).Allowed)
		assert.Equal(t, []string{"/private?x=1", "/"}, seen)
		assert.False(t, g.Visited("https://example.com/private?x=1"))
	})

	t.Run("checks the ceiling before anything else", func(t *testing.T) {
		t.Parallel()

		g := crawl.NewGate(denyPrefix("/private/"), 1, 0)
		require.True(t, g.Admit(context.Background(), "https://example.com/", origin).Allowed)

		assert.Equal(t, sitezip.Deny(sitezip.DenyCeiling), g.Admit(context.Background(), "https://example.com/", origin))
		assert.Equal(t, sitezip.Deny(sitezip.DenyCeiling), g.Admit(context.Background(), "https://other.com/", origin))
		assert.Equal(t, sitezip.Deny(sitezip.DenyCeiling), g.Admit(context.Background(), "https://example.com/private/x", origin))
	})

	t.Run("release frees a slot", func(t *testing.T) {
		t.Parallel()

		g := crawl.NewGate(nil, 1, 0)
		require.True(t, g.Admit(context.Background(), "https://example.com/a", origin).Allowed)
		require.False(t, g.Admit(context.Background(), "https://example.com/b", origin).Allowed)

		g.Release()

		assert.True(t, g.Admit(context.Background(), "https://example.com/b", origin).Allowed)
		assert.Equal(t, sitezip.Deny(sitezip.DenyCeiling), g.Admit(context.Background(), "https://example.com/a", origin))
	})

	t.Run("policy errors allow everything", func(t *testing.T) {
		t.Parallel()

		g := crawl.NewGate(&mock.ExclusionService{
			FetchPolicyFn: func(context.Context, string) (sitezip.ExclusionPolicy, error) {
				return nil, assert.AnError
			},
		}, 10, 0)

		assert.True(t, g.Admit(context.Background(), "https://example.com/private/", origin).Allowed)
	})
}

func TestGate_Admit_Concurrent(t *testing.T) {
	t.Parallel()

	origin := mustParse(t, "https://example.com/")

	t.Run("racing admissions of one URL admit it once", func(t *testing.T) {
		t.Parallel()

		var policyCalls atomic.Int32
		g := crawl.NewGate(&mock.ExclusionService{
			FetchPolicyFn: func(context.Context, string) (sitezip.ExclusionPolicy, error) {
				policyCalls.Add(1)
				return sitezip.AllowAll, nil
			},
		}, 100, 0)

		var admitted atomic.Int32
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if g.Admit(context.Background(), "https://example.com/same", origin).Allowed {
					admitted.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), admitted.Load())
		assert.Equal(t, int32(1), policyCalls.Load())
	})

	t.Run("reservations never exceed the ceiling", func(t *testing.T) {
		t.Parallel()

		g := crawl.NewGate(nil, 10, 0)

		var admitted atomic.Int32
		var wg sync.WaitGroup
		for i := range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				candidate := "https://example.com/" + string(rune('a'+i%26)) + string(rune('a'+i/26))
				if g.Admit(context.Background(), candidate, origin).Allowed {
					admitted.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(10), admitted.Load())
		assert.Equal(t, 10, g.Reserved())
	})
}
