// Package report accumulates per-run change batches into day-scoped,
// append-only reports and renders them as HTML pages.
//
// One day report per UTC date with at least one change-bearing run, stored
// as reports/YYYY/MM/DD/meta.json. Batches are appended, never mutated or
// reordered. All aggregate counters are derived from the batch sequence on
// demand, so nothing is stored twice and nothing can drift.
package report

import "time"

// Entry is one changed document within a batch.
type Entry struct {
	Slug       string `json:"slug"`
	SourceID   string `json:"source_id"`
	SourceName string `json:"source_name"`
	Summary    string `json:"summary"`
	Added      int    `json:"added"`
	Removed    int    `json:"removed"`
}

// Batch is the set of changes detected in a single run. Created once per
// change-bearing run; entries are never removed or reordered afterwards.
type Batch struct {
	Token     string    `json:"token"`     // unique run token, dedup key
	Timestamp time.Time `json:"timestamp"` // run time, UTC, minute precision
	Entries   []Entry   `json:"entries"`
}

// TotalAdded sums the added-line counts across the batch.
func (b *Batch) TotalAdded() int {
	total := 0
	for _, e := range b.Entries {
		total += e.Added
	}
	return total
}

// TotalRemoved sums the removed-line counts across the batch.
func (b *Batch) TotalRemoved() int {
	total := 0
	for _, e := range b.Entries {
		total += e.Removed
	}
	return total
}

// Day is the accumulated report for one UTC calendar date.
type Day struct {
	Date    string  `json:"date"` // YYYY-MM-DD
	Batches []Batch `json:"batches"`
}

// TotalChanges counts changed documents across all batches of the day.
func (d *Day) TotalChanges() int {
	total := 0
	for _, b := range d.Batches {
		total += len(b.Entries)
	}
	return total
}

// HasToken reports whether a batch with the given run token was already
// recorded for this day.
func (d *Day) HasToken(token string) bool {
	for _, b := range d.Batches {
		if b.Token == token {
			return true
		}
	}
	return false
}
