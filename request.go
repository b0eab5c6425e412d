package sitezip

import (
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// MaxSeedURLs is the maximum number of seed URLs accepted in one request.
const MaxSeedURLs = 5

// DefaultFilename is the archive name used when a request does not set one.
const DefaultFilename = "archive.zip"

// CrawlMode selects how far a run expands beyond its seed pages.
type CrawlMode string

// Supported crawl modes.
const (
	// ModeHTML archives the seed pages only.
	ModeHTML CrawlMode = "html"
	// ModeAssets archives the seed pages and every resource they reference
	// directly, without following references of fetched resources.
	ModeAssets CrawlMode = "assets"
	// ModeFull archives the seed pages and recursively expands every fetched
	// HTML document. The resource ceiling is the only bound.
	ModeFull CrawlMode = "full"
)

// ParseCrawlMode converts a mode name to a CrawlMode.
// An empty string selects ModeAssets.
func ParseCrawlMode(s string) (CrawlMode, error) {
	switch mode := CrawlMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return ModeAssets, nil
	case ModeHTML, ModeAssets, ModeFull:
		return mode, nil
	default:
		return "", Errorf(EINVALID, "unknown crawl mode %q", s)
	}
}

// ExtractsSeeds reports whether seed pages are scanned for references.
func (m CrawlMode) ExtractsSeeds() bool {
	return m == ModeAssets || m == ModeFull
}

// Recursive reports whether discovered HTML documents are expanded.
func (m CrawlMode) Recursive() bool {
	return m == ModeFull
}

// CrawlRequest describes a single archive run. It must not be modified once
// the run has started.
type CrawlRequest struct {
	// URLs are the seed pages, processed in order.
	URLs []string

	// Mode controls expansion beyond the seeds.
	Mode CrawlMode

	// Header is attached to every outbound fetch of the run.
	Header http.Header

	// Filename is the name presented for the archive by the transport.
	Filename string
}

// Validate returns an error if the request cannot be run.
func (r *CrawlRequest) Validate() error {
	if len(r.URLs) == 0 {
		return Errorf(EINVALID, "at least one URL required")
	}
	if len(r.URLs) > MaxSeedURLs {
		return Errorf(EINVALID, "too many URLs in one request: %d (max %d)", len(r.URLs), MaxSeedURLs)
	}
	for _, raw := range r.URLs {
		if err := validateSeedURL(raw); err != nil {
			return err
		}
	}
	switch r.Mode {
	case ModeHTML, ModeAssets, ModeFull:
	default:
		return Errorf(EINVALID, "unknown crawl mode %q", r.Mode)
	}
	return nil
}

func validateSeedURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return Errorf(EINVALID, "seed URL required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Errorf(EINVALID, "invalid seed URL %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Errorf(EINVALID, "seed URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return Errorf(EINVALID, "seed URL %q has no host", raw)
	}
	return nil
}

// ParseHeader parses "Name: value" lines into a header set.
// Blank lines are ignored. A line without a colon is an error.
func ParseHeader(s string) (http.Header, error) {
	h := make(http.Header)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.ContainsAny(name, " \t") {
			return nil, Errorf(EINVALID, "invalid header %q: expected \"Name: value\"", line)
		}
		h.Add(textproto.CanonicalMIMEHeaderKey(name), strings.TrimSpace(value))
	}
	return h, nil
}

// SanitizeFilename returns a safe archive file name with a .zip suffix.
// Path separators and characters outside the safe set are replaced.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = sanitizeSegment(name)
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "_" {
		return DefaultFilename
	}
	if !strings.HasSuffix(strings.ToLower(name), ".zip") {
		name += ".zip"
	}
	return name
}
