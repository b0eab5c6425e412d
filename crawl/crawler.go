// Package crawl runs crawl-and-archive jobs. A run walks its seed pages and
// their same-origin references through a policy gate, fetches admitted URLs
// with a bounded worker pool, and appends every fetched resource to an
// archive through a single writer.
package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/fwojciec/sitezip"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Crawler defaults.
const (
	DefaultConcurrency  = 6
	DefaultFetchTimeout = 15 * time.Second
)

// maxLogURL bounds URLs quoted in skip records; inline data URLs can be huge.
const maxLogURL = 200

// Crawler orchestrates crawl-and-archive runs. A Crawler holds no per-run
// state and may run any number of requests concurrently.
type Crawler struct {
	Fetcher     sitezip.Fetcher
	Extractor   sitezip.ReferenceExtractor
	Exclusions  sitezip.ExclusionService // nil allows every path
	RateLimiter sitezip.DomainLimiter    // nil disables per-host spacing

	Concurrency      int
	MaxResources     int
	FetchTimeout     time.Duration
	ExclusionTimeout time.Duration

	// RetryDelays are waits before retrying transient fetch failures.
	// Nil disables retry.
	RetryDelays []time.Duration

	Logger *slog.Logger
}

// task is a candidate URL awaiting a gate decision.
type task struct {
	url    string
	origin *url.URL // origin of the seed the candidate descends from
	seed   bool
	expand bool // extract references if the fetched resource is HTML
}

// outcome is a worker's report on one task.
type outcome struct {
	task     task
	decision sitezip.Decision
	resp     *sitezip.Response
	err      error
	refs     []string
	parseErr error
}

// run is the state of one request. Only the coordinator goroutine touches
// the writer, paths, entries and state.
type run struct {
	c      *Crawler
	id     string
	req    *sitezip.CrawlRequest
	w      sitezip.ArchiveWriter
	gate   *Gate
	paths  *pathSet
	log    *sitezip.RunLog
	logger *slog.Logger

	state      sitezip.RunState
	entries    []sitezip.ArchiveEntry
	seedsLeft  int
	ceilingHit bool
}

// Run executes req and appends every fetched resource to w. On success the
// archive is closed; on failure or cancellation it is aborted and the error
// is returned alongside the partial result. Invalid requests fail before any
// fetch and leave w untouched.
func (c *Crawler) Run(ctx context.Context, req *sitezip.CrawlRequest, w sitezip.ArchiveWriter) (*sitezip.RunResult, error) {
	return c.run(ctx, uuid.NewString(), req, w)
}

func (c *Crawler) run(ctx context.Context, id string, req *sitezip.CrawlRequest, w sitezip.ArchiveWriter) (*sitezip.RunResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r := c.newRun(id, req, w)
	start := time.Now()
	r.logger.Info("run started", "mode", req.Mode, "seeds", len(req.URLs))

	err := r.crawl(ctx)
	if err == nil {
		err = r.finalize()
	}
	if err != nil {
		r.fail(err)
		r.logger.Error("run failed", "resources", len(r.entries), "duration", time.Since(start), "error", err)
		return r.result(), err
	}

	r.logger.Info("run finished", "resources", len(r.entries), "log", r.log.Len(), "duration", time.Since(start))
	return r.result(), nil
}

func (c *Crawler) newRun(id string, req *sitezip.CrawlRequest, w sitezip.ArchiveWriter) *run {
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("run", id)

	log := &sitezip.RunLog{}
	log.OnAppend = func(line string) {
		logger.Debug("run log", "line", line)
	}

	return &run{
		c:         c,
		id:        id,
		req:       req,
		w:         w,
		gate:      NewGate(c.Exclusions, c.maxResources(), c.ExclusionTimeout),
		paths:     newPathSet(),
		log:       log,
		logger:    logger,
		state:     sitezip.StateIdle,
		seedsLeft: len(req.URLs),
	}
}

func (c *Crawler) concurrency() int {
	if c.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return c.Concurrency
}

func (c *Crawler) maxResources() int {
	if c.MaxResources <= 0 {
		return sitezip.MaxResources
	}
	return c.MaxResources
}

func (c *Crawler) fetchTimeout() time.Duration {
	if c.FetchTimeout <= 0 {
		return DefaultFetchTimeout
	}
	return c.FetchTimeout
}

// crawl runs the worker pool and the coordinator until the queue drains,
// the archive faults or ctx is canceled.
func (r *run) crawl(ctx context.Context) error {
	work := make(chan task)
	results := make(chan outcome)

	g, gctx := errgroup.WithContext(ctx)
	for range r.c.concurrency() {
		g.Go(func() error {
			for t := range work {
				o := r.process(gctx, t)
				select {
				case results <- o:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(work)
		return r.coordinate(gctx, work, results)
	})
	return g.Wait()
}

// coordinate dispatches queued tasks in FIFO order and consumes worker
// outcomes. It is the only goroutine appending to the archive.
func (r *run) coordinate(ctx context.Context, work chan<- task, results <-chan outcome) error {
	queue := r.seedTasks()
	pending := 0
	r.setState(sitezip.StateSeeding)

	for len(queue) > 0 || pending > 0 {
		if err := ctx.Err(); err != nil {
			return r.canceled(err, pending)
		}

		var send chan<- task
		var next task
		if len(queue) > 0 {
			send, next = work, queue[0]
		}

		select {
		case <-ctx.Done():
			return r.canceled(ctx.Err(), pending)
		case send <- next:
			queue = queue[1:]
			pending++
		case o := <-results:
			pending--
			children, err := r.handle(o)
			if err != nil {
				return err
			}
			queue = append(queue, children...)
		}

		if r.state == sitezip.StateSeeding && r.seedsLeft == 0 {
			r.setState(sitezip.StateExpanding)
		}
	}
	if err := ctx.Err(); err != nil {
		return r.canceled(err, 0)
	}
	return nil
}

func (r *run) canceled(err error, pending int) error {
	r.log.Printf("Download canceled with %d requests in flight", pending)
	return sitezip.Errorf(sitezip.ECANCELED, "run canceled: %v", err)
}

func (r *run) seedTasks() []task {
	tasks := make([]task, 0, len(r.req.URLs))
	for _, raw := range r.req.URLs {
		u, _ := url.Parse(raw) // validated
		u.Fragment = ""
		u.RawFragment = ""
		tasks = append(tasks, task{
			url:    u.String(),
			origin: u,
			seed:   true,
			expand: r.req.Mode.ExtractsSeeds(),
		})
	}
	return tasks
}

// process runs on a worker: gate, fetch and, for expandable HTML, extract.
func (r *run) process(ctx context.Context, t task) outcome {
	o := outcome{task: t}
	o.decision = r.gate.Admit(ctx, t.url, t.origin)
	if !o.decision.Allowed {
		return o
	}

	r.log.Printf("Starting download of %s", t.url)
	o.resp, o.err = r.fetch(ctx, t.url)
	if o.err == nil {
		o.err = checkFinalOrigin(o.resp, t.origin)
	}
	if o.err != nil {
		r.gate.Release()
		return o
	}

	if t.expand && o.resp.IsHTML() {
		docURL := o.resp.URL
		if docURL == "" {
			docURL = t.url
		}
		o.refs, o.parseErr = r.c.Extractor.ExtractReferences(o.resp.Body, docURL)
	}
	return o
}

func (r *run) fetch(ctx context.Context, rawURL string) (*sitezip.Response, error) {
	fetch := func(ctx context.Context, rawURL string) (*sitezip.Response, error) {
		if r.c.RateLimiter != nil {
			u, err := url.Parse(rawURL)
			if err != nil {
				return nil, err
			}
			if err := r.c.RateLimiter.Wait(ctx, u.Host); err != nil {
				return nil, err
			}
		}
		ctx, cancel := context.WithTimeout(ctx, r.c.fetchTimeout())
		defer cancel()
		return r.c.Fetcher.Fetch(ctx, rawURL, r.req.Header)
	}
	return FetchWithRetryDelays(ctx, rawURL, fetch, r.log.Printf, r.c.RetryDelays)
}

// checkFinalOrigin rejects responses redirected away from the seed origin.
func checkFinalOrigin(resp *sitezip.Response, origin *url.URL) error {
	if resp.URL == "" {
		return nil
	}
	u, err := url.Parse(resp.URL)
	if err != nil || !sameOrigin(u, origin) {
		return fmt.Errorf("redirected off origin to %s", resp.URL)
	}
	return nil
}

// handle records an outcome and returns the candidates it discovered.
// The returned error is fatal for the run.
func (r *run) handle(o outcome) ([]task, error) {
	t := o.task
	if t.seed {
		r.seedsLeft--
	}

	if !o.decision.Allowed {
		r.skip(t.url, o.decision.Reason)
		return nil, nil
	}
	if o.err != nil {
		r.log.Printf("Failed to download %s: %v", t.url, o.err)
		return nil, nil
	}

	if err := r.archive(t.url, o.resp.Body); err != nil {
		return nil, err
	}

	if o.parseErr != nil {
		r.log.Printf("Could not parse %s, no references followed: %v", t.url, o.parseErr)
		return nil, nil
	}
	children := make([]task, 0, len(o.refs))
	for _, ref := range o.refs {
		children = append(children, task{
			url:    ref,
			origin: t.origin,
			expand: r.req.Mode.Recursive(),
		})
	}
	return children, nil
}

func (r *run) skip(rawURL string, reason sitezip.DenyReason) {
	if reason == sitezip.DenyCeiling && !r.ceilingHit {
		r.ceilingHit = true
		r.log.Printf("Asset limit reached (%d)", r.c.maxResources())
	}
	r.log.Printf("Skipping %s (%s)", TruncateURL(rawURL, maxLogURL), reason)
}

func (r *run) archive(rawURL string, body []byte) error {
	p, err := r.paths.assign(rawURL)
	if err != nil {
		return err
	}
	if err := r.w.Append(p, body); err != nil {
		r.log.Printf("Failed to archive %s as %s: %v", rawURL, p, err)
		return fmt.Errorf("archive %s: %w", rawURL, err)
	}
	r.entries = append(r.entries, sitezip.ArchiveEntry{Path: p, URL: rawURL, Size: len(body)})
	r.log.Printf("Saved %s as %s (%s, xxh %s)", rawURL, p, FormatBytes(len(body)), entryDigest(body))
	return nil
}

func (r *run) finalize() error {
	r.setState(sitezip.StateDraining)
	if err := r.w.Close(); err != nil {
		r.log.Printf("Failed to finalize archive: %v", err)
		return fmt.Errorf("finalize archive: %w", err)
	}
	r.log.Printf("Archive finalized with %d resources", len(r.entries))
	r.setState(sitezip.StateDone)
	return nil
}

func (r *run) fail(err error) {
	r.setState(sitezip.StateFailed)
	if aerr := r.w.Abort(); aerr != nil {
		r.logger.Warn("abort archive", "error", aerr)
	}
	r.log.Printf("Download failed: %v", err)
}

func (r *run) setState(s sitezip.RunState) {
	r.logger.Debug("run state", "from", r.state, "to", s)
	r.state = s
}

func (r *run) result() *sitezip.RunResult {
	return &sitezip.RunResult{
		RunID:     r.id,
		State:     r.state,
		Resources: len(r.entries),
		Entries:   r.entries,
		Log:       r.log.Lines(),
	}
}
