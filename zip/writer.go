// Package zip implements sitezip.ArchiveWriter as a streaming ZIP archive.
// Compressed bytes are flushed to the underlying writer on every append;
// only the central directory waits for Close.
package zip

import (
	"io"
	"time"

	"github.com/fwojciec/sitezip"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// DefaultLevel is the deflate level used for entries.
const DefaultLevel = flate.BestCompression

// Ensure Writer implements sitezip.ArchiveWriter at compile time.
var _ sitezip.ArchiveWriter = (*Writer)(nil)

// Writer streams ZIP entries to an io.Writer.
type Writer struct {
	zw     *zip.Writer
	names  map[string]struct{}
	level  int
	now    func() time.Time
	closed bool
}

// Option configures a Writer.
type Option func(*Writer)

// WithLevel sets the deflate compression level (0-9).
func WithLevel(level int) Option {
	return func(w *Writer) {
		w.level = level
	}
}

// WithClock sets the modification time source for entries.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}

// NewWriter creates a Writer emitting archive bytes to w.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	zw := &Writer{
		zw:    zip.NewWriter(w),
		names: make(map[string]struct{}),
		level: DefaultLevel,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(zw)
	}
	level := zw.level
	zw.zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
	return zw
}

// Append compresses body into a new entry named path and flushes it.
// Appending a path twice fails with ECONFLICT and leaves the archive unchanged.
func (w *Writer) Append(path string, body []byte) error {
	if w.closed {
		return sitezip.Errorf(sitezip.EINTERNAL, "archive is closed")
	}
	if _, ok := w.names[path]; ok {
		return sitezip.Errorf(sitezip.ECONFLICT, "duplicate archive entry %q", path)
	}

	fw, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     path,
		Method:   zip.Deflate,
		Modified: w.now(),
	})
	if err != nil {
		return err
	}
	if _, err := fw.Write(body); err != nil {
		return err
	}
	if err := w.zw.Flush(); err != nil {
		return err
	}

	w.names[path] = struct{}{}
	return nil
}

// Close writes the central directory. The underlying writer is not closed.
func (w *Writer) Close() error {
	if w.closed {
		return sitezip.Errorf(sitezip.EINTERNAL, "archive is closed")
	}
	w.closed = true
	return w.zw.Close()
}

// Abort stops the archive without writing the central directory, leaving
// output that readers reject as incomplete.
func (w *Writer) Abort() error {
	w.closed = true
	return nil
}

// Len returns the number of entries written.
func (w *Writer) Len() int {
	return len(w.names)
}
