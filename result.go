package sitezip

// RunState is a stage of the crawl state machine.
type RunState string

// Run states, in lifecycle order.
const (
	StateIdle      RunState = "idle"
	StateSeeding   RunState = "seeding"
	StateExpanding RunState = "expanding"
	StateDraining  RunState = "draining"
	StateDone      RunState = "done"
	StateFailed    RunState = "failed"
)

// MaxResources is the default ceiling on resources archived per run.
const MaxResources = 1000

// RunResult is the frozen outcome of a run.
type RunResult struct {
	RunID string
	State RunState

	// Resources is the number of archived resources.
	Resources int

	// Entries lists archived resources in the order they were written.
	Entries []ArchiveEntry

	// Log is the run's decision log.
	Log []string
}
