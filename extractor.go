package sitezip

// ReferenceExtractor finds the URLs referenced by an HTML document.
type ReferenceExtractor interface {
	// ExtractReferences parses body leniently and returns absolute URLs in
	// category order: stylesheets, scripts, images, sources, video, audio,
	// then hyperlinks. Each category keeps document order.
	// An error means nothing could be recovered; callers treat it as no references.
	ExtractReferences(body []byte, documentURL string) ([]string, error)
}
