package sitezip

import (
	"fmt"
	"sync"
)

// RunLog is the append-only record of decisions taken during a run: fetches
// started, candidates skipped and why, failures and archive placements.
// It is reported to the caller as metadata, never written into the archive.
// It is safe for concurrent use.
type RunLog struct {
	mu    sync.Mutex
	lines []string

	// OnAppend, if set, is called with every new line while the log is locked.
	OnAppend func(line string)
}

// Printf appends a formatted line.
func (l *RunLog) Printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
	if l.OnAppend != nil {
		l.OnAppend(line)
	}
}

// Lines returns a copy of the lines appended so far.
func (l *RunLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Len returns the number of lines appended so far.
func (l *RunLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}
