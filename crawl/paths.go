package crawl

import (
	"net/url"
	"path"
	"strings"

	"github.com/fwojciec/sitezip"
)

// pathSet assigns archive paths to URLs. A URL whose entry path is not a
// literal copy of its host and path (a query string, a sanitized character, a
// dropped segment or an explicit index file) gets a suffix derived from the
// URL, so the path of a URL never depends on which other URLs a run archives
// or in which order. It is not safe for concurrent use.
type pathSet struct {
	used map[string]string // path -> URL
}

func newPathSet() *pathSet {
	return &pathSet{used: make(map[string]string)}
}

// assign returns the archive path for rawURL.
func (s *pathSet) assign(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", sitezip.Errorf(sitezip.EINVALID, "invalid URL %q", rawURL)
	}
	p, err := sitezip.EntryPath(u.Hostname(), rawURL)
	if err != nil {
		return "", err
	}
	if !isLiteralPath(u, p) {
		p = withSuffix(p, ComputeHash([]byte(rawURL)))
	}
	// Same host and path under another scheme or port.
	if owner, ok := s.used[p]; ok && owner != rawURL {
		p = withSuffix(p, ComputeHash([]byte(rawURL)))
	}
	s.used[p] = rawURL
	return p, nil
}

// isLiteralPath reports whether entry is exactly the URL's host and path, with
// the index file appended only for directory-like paths. Only such paths can
// be claimed by a single URL without a suffix.
func isLiteralPath(u *url.URL, entry string) bool {
	if u.RawQuery != "" || u.ForceQuery {
		return false
	}
	p := u.Path
	if strings.HasSuffix(p, "/"+sitezip.IndexFile) {
		return false
	}
	if p == "" || strings.HasSuffix(p, "/") {
		p += sitezip.IndexFile
	}
	return entry == u.Hostname()+"/"+strings.TrimPrefix(p, "/")
}

// withSuffix inserts "-suffix" before the extension of the last segment.
func withSuffix(p, suffix string) string {
	dir, file := path.Split(p)
	ext := path.Ext(file)
	if ext == file {
		ext = ""
	}
	return dir + strings.TrimSuffix(file, ext) + "-" + suffix + ext
}

// entryDigest is a short content digest for log lines.
func entryDigest(body []byte) string {
	return ComputeHash(body)[:8]
}
