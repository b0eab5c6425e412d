package sitezip

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// Response is a successfully fetched resource.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// IsHTML reports whether the response declares an HTML content type.
func (r *Response) IsHTML() bool {
	mediaType, _, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		return strings.Contains(strings.ToLower(r.ContentType), "text/html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// Fetcher retrieves resources over the network.
type Fetcher interface {
	// Fetch performs a GET for url with header attached to the request.
	// Failures are returned as *FetchError; Fetch never panics past this boundary.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, url string, header http.Header) (*Response, error)
}

// FetchErrorKind classifies fetch failures.
type FetchErrorKind string

// Fetch failure kinds.
const (
	FetchTimeout    FetchErrorKind = "timeout"
	FetchConnection FetchErrorKind = "connection"
	FetchHTTPError  FetchErrorKind = "http-error"
	FetchTooLarge   FetchErrorKind = "too-large"
)

// FetchError describes a failed fetch.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int // set for FetchHTTPError
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Kind == FetchHTTPError:
		return fmt.Sprintf("%s: HTTP %d", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether retrying the fetch may succeed.
func (e *FetchError) Transient() bool {
	return e.Kind == FetchTimeout || e.Kind == FetchConnection
}
