// Package goquery implements sitezip.ReferenceExtractor with CSS selectors
// over a leniently parsed HTML tree.
package goquery

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/sitezip"
	"golang.org/x/net/html"
)

// SelectorConfig pairs a CSS selector with the attribute holding the reference.
type SelectorConfig struct {
	Selector string
	Attr     string
}

// ReferenceSelectors lists reference categories in extraction order.
var ReferenceSelectors = []SelectorConfig{
	{Selector: `link[rel~="stylesheet"]`, Attr: "href"},
	{Selector: "script[src]", Attr: "src"},
	{Selector: "img[src]", Attr: "src"},
	{Selector: "source[src]", Attr: "src"},
	{Selector: "video[src]", Attr: "src"},
	{Selector: "audio[src]", Attr: "src"},
	{Selector: "a[href]", Attr: "href"},
}

// Ensure Extractor implements sitezip.ReferenceExtractor at compile time.
var _ sitezip.ReferenceExtractor = (*Extractor)(nil)

// Extractor finds asset and page references in HTML documents.
type Extractor struct {
	configs []SelectorConfig
}

// NewExtractor creates an Extractor using ReferenceSelectors.
func NewExtractor() *Extractor {
	return &Extractor{configs: ReferenceSelectors}
}

// ExtractReferences parses body and returns the absolute URLs it references.
// URLs are resolved against the document's <base href> when present,
// otherwise against documentURL. Fragments are stripped and duplicates are
// dropped, keeping the first occurrence. Non-HTTP references (javascript:,
// mailto:, data:) are returned as written for the caller to refuse.
func (e *Extractor) ExtractReferences(body []byte, documentURL string) ([]string, error) {
	base, err := url.Parse(documentURL)
	if err != nil {
		return nil, sitezip.Errorf(sitezip.EINVALID, "invalid document URL: %v", err)
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, sitezip.Errorf(sitezip.EINVALID, "failed to parse HTML: %v", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	seen := make(map[string]struct{})
	var refs []string
	for _, config := range e.configs {
		doc.Find(config.Selector).Each(func(_ int, sel *goquery.Selection) {
			raw, exists := sel.Attr(config.Attr)
			raw = strings.TrimSpace(raw)
			if !exists || raw == "" {
				return
			}

			resolved := resolveURL(base, raw)
			if resolved == "" {
				return
			}
			if _, ok := seen[resolved]; ok {
				return
			}
			seen[resolved] = struct{}{}
			refs = append(refs, resolved)
		})
	}

	return refs, nil
}

// resolveURL resolves a reference against a base URL.
// Returns empty string if the reference cannot be parsed.
// Fragments are stripped from the resolved URL for deduplication purposes.
func resolveURL(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(u)
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String()
}
