package crawl

import (
	"context"
	"errors"
	"io"

	"github.com/fwojciec/sitezip"
	"github.com/google/uuid"
)

var errStreamClosed = errors.New("stream closed by reader")

// Stream is a run whose archive bytes are read while the run produces them.
// Read returns io.EOF only after the archive was sealed; any failure,
// including cancellation, surfaces as a Read error.
type Stream struct {
	// ID identifies the run in logs and results.
	ID string

	pr     *io.PipeReader
	cancel context.CancelFunc
	done   chan struct{}

	result *sitezip.RunResult
	err    error
}

// Stream starts req in the background. newWriter wraps the stream's sink in
// an archive format, typically zip.NewWriter.
func (c *Crawler) Stream(ctx context.Context, req *sitezip.CrawlRequest, newWriter func(io.Writer) sitezip.ArchiveWriter) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	s := &Stream{
		ID:     uuid.NewString(),
		pr:     pr,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer cancel()

		s.result, s.err = c.run(ctx, s.ID, req, newWriter(pw))
		if s.err != nil {
			pw.CloseWithError(s.err)
			return
		}
		pw.Close()
	}()
	return s
}

// Read reads archive bytes.
func (s *Stream) Read(p []byte) (int, error) {
	return s.pr.Read(p)
}

// Close cancels the run if it is still going and waits for it to end.
func (s *Stream) Close() error {
	s.cancel()
	s.pr.CloseWithError(errStreamClosed)
	<-s.done
	return nil
}

// Result waits for the run to end and returns its outcome.
func (s *Stream) Result() (*sitezip.RunResult, error) {
	<-s.done
	return s.result, s.err
}
