package sitezip

import "context"

// Quota is an identity's remaining allowance of archive runs.
type Quota struct {
	Remaining int `json:"remaining"`
	Limit     int `json:"limit"`
}

// QuotaService is the per-identity request quota consulted before a run.
// The engine itself never calls it; transports do, once per request.
type QuotaService interface {
	// Consume takes one run from identity's allowance.
	// Returns ERATELIMIT, together with the current quota, when none is left.
	Consume(ctx context.Context, identity string) (Quota, error)

	// Remaining reports identity's allowance without consuming it.
	Remaining(ctx context.Context, identity string) (Quota, error)
}
