package sitezip

import (
	"net/url"
	"strings"
)

// ArchiveEntry describes one resource written to an archive.
type ArchiveEntry struct {
	Path string
	URL  string
	Size int
}

// ArchiveWriter appends entries to an archive as they become available.
// Implementations are not safe for concurrent use; a run funnels every
// append through a single goroutine.
type ArchiveWriter interface {
	// Append writes one entry. Returns ECONFLICT if the path was already written.
	Append(path string, body []byte) error

	// Close seals the archive. No entries may be appended afterwards.
	Close() error

	// Abort abandons the archive without sealing it.
	// The output must not be mistaken for a complete archive.
	Abort() error
}

// IndexFile names the entry used for directory-like URL paths.
const IndexFile = "index.html"

// EntryPath derives the archive path of a resource from its URL.
// The path is namespaced by host, "/" and trailing-slash paths map to
// index.html, path traversal segments are dropped and characters outside
// [A-Za-z0-9._-] are replaced with "_". The same inputs always yield the
// same path.
func EntryPath(host, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", Errorf(EINVALID, "invalid URL %q", rawURL)
	}

	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		p += IndexFile
	}

	var segments []string
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		segments = append(segments, sanitizeSegment(seg))
	}
	if len(segments) == 0 {
		segments = []string{IndexFile}
	}

	ns := sanitizeSegment(strings.ToLower(host))
	if ns == "" || ns == "." || ns == ".." {
		ns = "_"
	}
	return ns + "/" + strings.Join(segments, "/"), nil
}

// sanitizeSegment replaces every character outside [A-Za-z0-9._-] with "_".
func sanitizeSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
