package mock

import "github.com/fwojciec/sitezip"

var _ sitezip.ArchiveWriter = (*ArchiveWriter)(nil)

// ArchiveWriter is a mock implementation of sitezip.ArchiveWriter.
type ArchiveWriter struct {
	AppendFn func(path string, body []byte) error
	CloseFn  func() error
	AbortFn  func() error
}

func (w *ArchiveWriter) Append(path string, body []byte) error {
	return w.AppendFn(path, body)
}

func (w *ArchiveWriter) Close() error {
	return w.CloseFn()
}

func (w *ArchiveWriter) Abort() error {
	return w.AbortFn()
}
