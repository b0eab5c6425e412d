package sitezip

import "context"

// DenyReason tags why the policy gate refused a candidate URL.
type DenyReason string

// Deny reasons, in the order the gate evaluates them.
const (
	DenyCeiling     DenyReason = "ceiling"
	DenyDuplicate   DenyReason = "duplicate"
	DenyCrossOrigin DenyReason = "cross-origin"
	DenyInline      DenyReason = "inline"
	DenyExcluded    DenyReason = "excluded"
)

// Decision is the outcome of a policy gate admission check.
type Decision struct {
	Allowed bool
	Reason  DenyReason // empty when Allowed
}

// Allow is the admitting decision.
var Allow = Decision{Allowed: true}

// Deny returns a refusing decision with reason.
func Deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// ExclusionPolicy reports whether a path may be fetched by a generic crawler.
type ExclusionPolicy interface {
	// Allowed tests a path, including any query string, against the rules.
	Allowed(path string) bool
}

// ExclusionService retrieves an origin's crawl-exclusion policy (robots.txt).
type ExclusionService interface {
	// FetchPolicy retrieves and parses the policy of origin ("scheme://host[:port]").
	// An error means the policy is unavailable; callers allow everything.
	FetchPolicy(ctx context.Context, origin string) (ExclusionPolicy, error)
}

// AllowAll is the policy used when an origin's rules are unavailable.
var AllowAll ExclusionPolicy = allowAll{}

type allowAll struct{}

func (allowAll) Allowed(string) bool { return true }
