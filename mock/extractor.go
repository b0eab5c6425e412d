package mock

import "github.com/fwojciec/sitezip"

var _ sitezip.ReferenceExtractor = (*ReferenceExtractor)(nil)

// ReferenceExtractor is a mock implementation of sitezip.ReferenceExtractor.
type ReferenceExtractor struct {
	ExtractReferencesFn func(body []byte, documentURL string) ([]string, error)
}

func (e *ReferenceExtractor) ExtractReferences(body []byte, documentURL string) ([]string, error) {
	return e.ExtractReferencesFn(body, documentURL)
}
