package monitor

import (
	"time"

	"github.com/hazyhaar/docwatch/diff"
)

// Failure records one document that could not be processed this cycle.
// A failure means "no opinion this cycle", never "no change"; the
// previous snapshot stays the comparison basis for the next attempt.
type Failure struct {
	SourceID string
	Slug     string
	Reason   string
}

// CycleResult summarizes one polling cycle for logging and notification.
type CycleResult struct {
	Token     string
	StartedAt time.Time
	Total     int
	Changed   int
	Failed    int
	Records   []diff.Result
	Failures  []Failure
	// BatchAppended is false when the cycle had no changes, or when the
	// run token was already recorded (crash-and-retry of the same cycle).
	BatchAppended bool
}
