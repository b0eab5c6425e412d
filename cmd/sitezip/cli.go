package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/sitezip"
	"github.com/fwojciec/sitezip/crawl"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx        context.Context
	Stdout     io.Writer
	Stderr     io.Writer
	Logger     *slog.Logger
	Crawler    *crawl.Crawler
	NewArchive func(io.Writer) sitezip.ArchiveWriter
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Verbose bool       `short:"v" env:"SITEZIP_VERBOSE" help:"Enable debug logging"`
	Crawl   CrawlFlags `embed:""`

	Fetch FetchCmd `cmd:"" help:"Archive pages into a zip file or directory"`
	Serve ServeCmd `cmd:"" help:"Serve archives over HTTP"`
}

// CrawlFlags configure the crawl engine for every command.
type CrawlFlags struct {
	Concurrency   int           `default:"6" env:"SITEZIP_CONCURRENCY" help:"Concurrent fetch workers"`
	Timeout       time.Duration `default:"15s" env:"SITEZIP_TIMEOUT" help:"Timeout per fetch"`
	RobotsTimeout time.Duration `default:"3s" env:"SITEZIP_ROBOTS_TIMEOUT" help:"Timeout for robots.txt (unreachable allows all)"`
	MaxBytes      int64         `default:"33554432" env:"SITEZIP_MAX_BYTES" help:"Largest accepted response body in bytes"`
	MaxResources  int           `default:"1000" env:"SITEZIP_MAX_RESOURCES" help:"Most resources archived per run"`
	RPS           float64       `name:"rps" default:"0" env:"SITEZIP_RPS" help:"Requests per second per host (0 is unlimited)"`
	Retries       int           `default:"0" env:"SITEZIP_RETRIES" help:"Retries for timeouts and connection failures"`
	UserAgent     string        `default:"Mozilla/5.0 (compatible; sitezip/1.0)" env:"SITEZIP_USER_AGENT" help:"User-Agent sent with every fetch"`
	RobotsAgent   string        `default:"Mozilla/5.0" env:"SITEZIP_ROBOTS_AGENT" help:"Agent matched against robots.txt groups"`
	Level         int           `default:"9" env:"SITEZIP_LEVEL" help:"Zip compression level (0-9)"`
}

// Validate rejects flag values the engine cannot run with.
func (f *CrawlFlags) Validate() error {
	if f.Level < 0 || f.Level > 9 {
		return sitezip.Errorf(sitezip.EINVALID, "--level must be between 0 and 9, got %d", f.Level)
	}
	return nil
}

// FetchCmd is the "fetch" subcommand.
type FetchCmd struct {
	URLs   []string `arg:"" name:"url" help:"Seed page URLs (at most 5)"`
	Mode   string   `short:"m" default:"assets" enum:"html,assets,full" help:"html: seeds only; assets: seeds and their assets; full: follow same-origin links"`
	Output string   `short:"o" xor:"output" help:"Archive file (default archive.zip)"`
	Dir    string   `xor:"output" help:"Write resources into this directory instead of a zip"`
	Header []string `short:"H" help:"Header sent with every fetch, as 'Name: value' (repeatable)"`
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	Addr        string        `default:":8080" env:"SITEZIP_ADDR" help:"Listen address"`
	QuotaLimit  int           `default:"5" env:"SITEZIP_QUOTA_LIMIT" help:"Downloads allowed per identity per window"`
	QuotaWindow time.Duration `default:"24h" env:"SITEZIP_QUOTA_WINDOW" help:"Quota refill window"`
}
