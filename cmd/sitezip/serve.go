package main

import (
	"fmt"

	siteziphttp "github.com/fwojciec/sitezip/http"
	"github.com/fwojciec/sitezip/rate"
	szslog "github.com/fwojciec/sitezip/slog"
)

// Run executes the serve command. It blocks until the context is canceled.
func (c *ServeCmd) Run(deps *Dependencies) error {
	s := siteziphttp.NewServer()
	s.Addr = c.Addr
	s.Crawler = deps.Crawler
	s.Quota = szslog.NewLoggingQuotaService(rate.NewQuotaService(c.QuotaLimit, c.QuotaWindow), deps.Logger)
	s.NewArchive = deps.NewArchive
	s.Logger = deps.Logger

	if err := s.Open(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	fmt.Fprintf(deps.Stdout, "Listening on %s\n", s.URL())

	<-deps.Ctx.Done()

	return s.Close()
}
