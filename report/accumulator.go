package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const metaFile = "meta.json"

// Accumulator appends run batches to day reports. It is whole-day
// exclusive: one writer mutates a given day's report at a time, since
// batch ordering is an invariant of the day, not of any single document.
type Accumulator struct {
	dir    string
	logger *slog.Logger

	mu sync.Mutex
}

// NewAccumulator creates an Accumulator rooted at the reports directory.
func NewAccumulator(dir string, logger *slog.Logger) *Accumulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accumulator{dir: dir, logger: logger}
}

// Dir returns the reports root directory.
func (a *Accumulator) Dir() string { return a.dir }

// Append records one run's changed entries as a new batch on the UTC day
// of at. Rules:
//
//   - no entries: no-op, no empty batch is created;
//   - token already recorded for that day: silent no-op (crash-and-retry
//     of the same cycle must not duplicate a batch);
//   - otherwise a batch is appended and meta.json is rewritten atomically.
//
// The returned bool reports whether a batch was actually appended.
func (a *Accumulator) Append(ctx context.Context, token string, at time.Time, entries []Entry) (bool, error) {
	if len(entries) == 0 {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	at = at.UTC().Truncate(time.Minute)

	day, err := a.Load(at)
	if err != nil {
		return false, err
	}
	if day == nil {
		day = &Day{Date: at.Format("2006-01-02")}
	}

	if day.HasToken(token) {
		a.logger.Debug("report: duplicate run token, batch ignored",
			"token", token, "date", day.Date)
		return false, nil
	}

	// Batch timestamps must be non-decreasing within the day. A clock
	// that stepped backwards between runs is clamped to the last batch.
	if n := len(day.Batches); n > 0 && at.Before(day.Batches[n-1].Timestamp) {
		at = day.Batches[n-1].Timestamp
	}

	day.Batches = append(day.Batches, Batch{
		Token:     token,
		Timestamp: at,
		Entries:   dedupeEntries(entries),
	})

	if err := a.save(at, day); err != nil {
		return false, err
	}

	a.logger.Info("report: batch appended",
		"date", day.Date, "batch", len(day.Batches), "entries", len(entries))
	return true, nil
}

// Load reads the day report for the UTC date of t, or nil if no
// change-bearing run has happened that day.
func (a *Accumulator) Load(t time.Time) (*Day, error) {
	path := filepath.Join(a.DateDir(t), metaFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("report: read %s: %w", path, err)
	}

	var day Day
	if err := json.Unmarshal(data, &day); err != nil {
		return nil, fmt.Errorf("report: parse %s: %w", path, err)
	}
	return &day, nil
}

// DateDir returns the report directory for the UTC date of t:
// <root>/YYYY/MM/DD.
func (a *Accumulator) DateDir(t time.Time) string {
	t = t.UTC()
	return filepath.Join(a.dir,
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()))
}

// save writes meta.json atomically (write .tmp then rename) so a reader
// or a crash never observes a half-written report.
func (a *Accumulator) save(t time.Time, day *Day) error {
	dir := a.DateDir(t)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: mkdir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(day, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal meta: %w", err)
	}

	target := filepath.Join(dir, metaFile)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("report: write tmp: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("report: rename: %w", err)
	}
	return nil
}

// dedupeEntries drops repeated documents, keeping the first occurrence.
// A document cannot appear twice in one run.
func dedupeEntries(entries []Entry) []Entry {
	seen := make(map[string]bool, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		key := e.SourceID + "/" + e.Slug
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
