// Package slog provides logging decorators for sitezip services.
package slog
