package robotstxt_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fwojciec/sitezip"
	"github.com/fwojciec/sitezip/robotstxt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func robotsServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestService_FetchPolicy(t *testing.T) {
	t.Parallel()

	t.Run("applies wildcard group rules", func(t *testing.T) {
		t.Parallel()

		server := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private/\n")

		policy, err := robotstxt.NewService().FetchPolicy(context.Background(), server.URL)

		require.NoError(t, err)
		assert.False(t, policy.Allowed("/private/secret.html"))
		assert.True(t, policy.Allowed("/public/page.html"))
		assert.True(t, policy.Allowed(""))
	})

	t.Run("applies agent specific group", func(t *testing.T) {
		t.Parallel()

		server := robotsServer(t, http.StatusOK, "User-agent: Mozilla\nDisallow: /\n\nUser-agent: *\nAllow: /\n")

		policy, err := robotstxt.NewService().FetchPolicy(context.Background(), server.URL)

		require.NoError(t, err)
		assert.False(t, policy.Allowed("/anything"))
	})

	t.Run("missing robots.txt allows everything", func(t *testing.T) {
		t.Parallel()

		server := robotsServer(t, http.StatusNotFound, "")

		policy, err := robotstxt.NewService().FetchPolicy(context.Background(), server.URL)

		require.NoError(t, err)
		assert.Equal(t, sitezip.AllowAll, policy)
	})

	t.Run("server errors allow everything", func(t *testing.T) {
		t.Parallel()

		server := robotsServer(t, http.StatusServiceUnavailable, "")

		policy, err := robotstxt.NewService().FetchPolicy(context.Background(), server.URL)

		require.NoError(t, err)
		assert.True(t, policy.Allowed("/private/"))
	})

	t.Run("returns error when unreachable within timeout", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		svc := robotstxt.NewService(robotstxt.WithTimeout(20 * time.Millisecond))

		_, err := svc.FetchPolicy(context.Background(), server.URL)

		require.Error(t, err)
	})

	t.Run("sends configured user agent", func(t *testing.T) {
		t.Parallel()

		var got string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("User-Agent")
		}))
		defer server.Close()

		_, err := robotstxt.NewService(robotstxt.WithUserAgent("sitezip-test")).FetchPolicy(context.Background(), server.URL)

		require.NoError(t, err)
		assert.Equal(t, "sitezip-test", got)
	})
}
