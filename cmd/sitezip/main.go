package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/sitezip"
	"github.com/fwojciec/sitezip/crawl"
	"github.com/fwojciec/sitezip/goquery"
	siteziphttp "github.com/fwojciec/sitezip/http"
	"github.com/fwojciec/sitezip/robotstxt"
	szslog "github.com/fwojciec/sitezip/slog"
	"github.com/fwojciec/sitezip/zip"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct{}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{}
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("sitezip"),
		kong.Description("Archive web pages and their same-origin assets as zip files"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'sitezip --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	if err := cli.Crawl.Validate(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	deps.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	deps.Crawler = newCrawler(&cli.Crawl, deps.Logger)
	deps.NewArchive = func(w io.Writer) sitezip.ArchiveWriter {
		return zip.NewWriter(w, zip.WithLevel(cli.Crawl.Level))
	}

	return kongCtx.Run(deps)
}

// newCrawler wires the crawl engine from flags.
func newCrawler(f *CrawlFlags, logger *slog.Logger) *crawl.Crawler {
	fetcher := siteziphttp.NewFetcher(
		siteziphttp.WithTimeout(f.Timeout),
		siteziphttp.WithMaxBytes(f.MaxBytes),
		siteziphttp.WithUserAgent(f.UserAgent),
	)
	robots := robotstxt.NewService(
		robotstxt.WithTimeout(f.RobotsTimeout),
		robotstxt.WithAgent(f.RobotsAgent),
		robotstxt.WithUserAgent(f.UserAgent),
	)

	c := &crawl.Crawler{
		Fetcher:          szslog.NewLoggingFetcher(fetcher, logger),
		Extractor:        goquery.NewExtractor(),
		Exclusions:       szslog.NewLoggingExclusionService(robots, logger),
		Concurrency:      f.Concurrency,
		MaxResources:     f.MaxResources,
		FetchTimeout:     f.Timeout,
		ExclusionTimeout: f.RobotsTimeout,
		Logger:           logger,
	}
	if f.RPS > 0 {
		c.RateLimiter = crawl.NewDomainLimiter(f.RPS)
	}
	if f.Retries > 0 {
		c.RetryDelays = crawl.BackoffDelays(f.Retries)
	}
	return c
}
