package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/sitezip"
	"github.com/fwojciec/sitezip/crawl"
	"github.com/fwojciec/sitezip/fs"
)

// Run executes the fetch command.
func (c *FetchCmd) Run(deps *Dependencies) error {
	mode, err := sitezip.ParseCrawlMode(c.Mode)
	if err != nil {
		return err
	}
	header, err := sitezip.ParseHeader(strings.Join(c.Header, "\n"))
	if err != nil {
		return err
	}

	req := &sitezip.CrawlRequest{
		URLs:   c.URLs,
		Mode:   mode,
		Header: header,
	}
	if err := req.Validate(); err != nil {
		return err
	}

	if c.Dir != "" {
		return c.fetchToDir(deps, req)
	}
	return c.fetchToFile(deps, req)
}

func (c *FetchCmd) fetchToDir(deps *Dependencies, req *sitezip.CrawlRequest) error {
	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	w := fs.NewDirWriter(filepath.Dir(dir), filepath.Base(dir))
	if err := w.CheckTarget(); err != nil {
		return err
	}

	result, err := deps.Crawler.Run(deps.Ctx, req, w)
	printLog(deps, result)
	if err != nil {
		return err
	}

	fmt.Fprintf(deps.Stdout, "Saved %d resources to %s\n", result.Resources, dir)
	return nil
}

// fetchToFile writes the archive to a temporary file next to the output and
// renames it into place once the run succeeds.
func (c *FetchCmd) fetchToFile(deps *Dependencies, req *sitezip.CrawlRequest) error {
	output := c.Output
	if output == "" {
		output = sitezip.DefaultFilename
	}

	f, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	result, err := deps.Crawler.Run(deps.Ctx, req, deps.NewArchive(f))
	printLog(deps, result)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to write archive: %w", closeErr)
	}
	if err != nil {
		return err
	}

	if err := os.Rename(tmp, output); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	var size int64
	if fi, err := os.Stat(output); err == nil {
		size = fi.Size()
	}
	fmt.Fprintf(deps.Stdout, "Saved %d resources to %s (%s)\n", result.Resources, output, crawl.FormatBytes(int(size)))
	return nil
}

// printLog writes the run log to stderr.
func printLog(deps *Dependencies, result *sitezip.RunResult) {
	if result == nil {
		return
	}
	for _, line := range result.Log {
		fmt.Fprintln(deps.Stderr, line)
	}
}
