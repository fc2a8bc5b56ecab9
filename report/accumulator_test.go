package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var runTime = time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)

func testEntries() []Entry {
	return []Entry{
		{Slug: "quickstart", SourceID: "claude-docs", SourceName: "Claude Docs",
			Summary: "+1 lines, -1 lines", Added: 1, Removed: 1},
	}
}

func TestAppendCreatesDayReport(t *testing.T) {
	// WHAT: The first change-bearing run of a day creates the day report
	// with one batch.
	// WHY: NoReport → ReportOpen is the lazy-creation transition.
	a := NewAccumulator(t.TempDir(), nil)
	ctx := context.Background()

	appended, err := a.Append(ctx, "run-1", runTime, testEntries())
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if !appended {
		t.Fatal("appended=false, want true")
	}

	day, err := a.Load(runTime)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if day == nil {
		t.Fatal("day report missing")
	}
	if day.Date != "2026-08-31" {
		t.Errorf("date: got %q", day.Date)
	}
	if len(day.Batches) != 1 {
		t.Fatalf("batches: got %d, want 1", len(day.Batches))
	}
	if day.Batches[0].Token != "run-1" {
		t.Errorf("token: got %q", day.Batches[0].Token)
	}
}

func TestAppendNoEntriesIsNoOp(t *testing.T) {
	// WHAT: A run with zero changed records appends nothing, not an
	// empty batch.
	// WHY: Empty batches would clutter the day's history.
	a := NewAccumulator(t.TempDir(), nil)
	ctx := context.Background()

	appended, err := a.Append(ctx, "run-1", runTime, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if appended {
		t.Error("appended=true for empty run")
	}

	day, err := a.Load(runTime)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if day != nil {
		t.Errorf("day report created for empty run: %+v", day)
	}
}

func TestAppendDuplicateTokenSuppressed(t *testing.T) {
	// WHAT: Re-running the same cycle (same token) yields exactly one
	// batch, silently, with no error.
	// WHY: Crash-and-retry between snapshot write and accumulation must
	// not duplicate report entries.
	a := NewAccumulator(t.TempDir(), nil)
	ctx := context.Background()

	if _, err := a.Append(ctx, "run-1", runTime, testEntries()); err != nil {
		t.Fatalf("first append: %v", err)
	}
	appended, err := a.Append(ctx, "run-1", runTime.Add(5*time.Minute), testEntries())
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if appended {
		t.Error("duplicate token appended a second batch")
	}

	day, _ := a.Load(runTime)
	if len(day.Batches) != 1 {
		t.Errorf("batches: got %d, want 1", len(day.Batches))
	}
}

func TestAppendMultipleBatchesSameDay(t *testing.T) {
	// WHAT: Subsequent change-bearing runs on the same day append batches
	// in run order with non-decreasing timestamps and correct totals.
	a := NewAccumulator(t.TempDir(), nil)
	ctx := context.Background()

	first := []Entry{{Slug: "a", SourceID: "s", Summary: "+1 lines", Added: 1}}
	second := []Entry{
		{Slug: "a", SourceID: "s", Summary: "+2 lines", Added: 2},
		{Slug: "b", SourceID: "s", Summary: "-1 lines", Removed: 1},
	}

	if _, err := a.Append(ctx, "run-1", runTime, first); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if _, err := a.Append(ctx, "run-2", runTime.Add(2*time.Hour), second); err != nil {
		t.Fatalf("append 2: %v", err)
	}

	day, err := a.Load(runTime)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(day.Batches) != 2 {
		t.Fatalf("batches: got %d, want 2", len(day.Batches))
	}
	if day.Batches[0].Token != "run-1" || day.Batches[1].Token != "run-2" {
		t.Errorf("order: got %q then %q", day.Batches[0].Token, day.Batches[1].Token)
	}
	if day.Batches[1].Timestamp.Before(day.Batches[0].Timestamp) {
		t.Error("batch timestamps decreased")
	}
	if day.TotalChanges() != 3 {
		t.Errorf("total changes: got %d, want 3", day.TotalChanges())
	}
	if day.Batches[1].TotalAdded() != 2 || day.Batches[1].TotalRemoved() != 1 {
		t.Errorf("batch totals: got +%d/-%d, want +2/-1",
			day.Batches[1].TotalAdded(), day.Batches[1].TotalRemoved())
	}
}

func TestAppendClampsBackwardsClock(t *testing.T) {
	// WHAT: A run timestamp earlier than the last batch is clamped so the
	// day's batch timestamps stay non-decreasing.
	a := NewAccumulator(t.TempDir(), nil)
	ctx := context.Background()

	if _, err := a.Append(ctx, "run-1", runTime, testEntries()); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if _, err := a.Append(ctx, "run-2", runTime.Add(-10*time.Minute), testEntries()); err != nil {
		t.Fatalf("append 2: %v", err)
	}

	day, _ := a.Load(runTime)
	if day.Batches[1].Timestamp.Before(day.Batches[0].Timestamp) {
		t.Errorf("timestamp not clamped: %v < %v",
			day.Batches[1].Timestamp, day.Batches[0].Timestamp)
	}
}

func TestAppendNewDayStartsNewReport(t *testing.T) {
	// WHAT: The UTC date rollover implicitly closes a day report; the
	// next change-bearing run creates a fresh one.
	a := NewAccumulator(t.TempDir(), nil)
	ctx := context.Background()

	if _, err := a.Append(ctx, "run-1", runTime, testEntries()); err != nil {
		t.Fatalf("append day 1: %v", err)
	}
	nextDay := runTime.Add(24 * time.Hour)
	if _, err := a.Append(ctx, "run-2", nextDay, testEntries()); err != nil {
		t.Fatalf("append day 2: %v", err)
	}

	day1, _ := a.Load(runTime)
	day2, _ := a.Load(nextDay)
	if len(day1.Batches) != 1 || len(day2.Batches) != 1 {
		t.Errorf("batches: got %d and %d, want 1 and 1", len(day1.Batches), len(day2.Batches))
	}
	if day2.Date != "2026-09-01" {
		t.Errorf("day 2 date: got %q", day2.Date)
	}
}

func TestAppendSameTokenDistinctDays(t *testing.T) {
	// WHAT: Token dedup is scoped to the day; the same token on another
	// date is a fresh run.
	a := NewAccumulator(t.TempDir(), nil)
	ctx := context.Background()

	if _, err := a.Append(ctx, "run-1", runTime, testEntries()); err != nil {
		t.Fatalf("append: %v", err)
	}
	appended, err := a.Append(ctx, "run-1", runTime.Add(24*time.Hour), testEntries())
	if err != nil {
		t.Fatalf("append next day: %v", err)
	}
	if !appended {
		t.Error("token dedup leaked across days")
	}
}

func TestAppendDedupesEntriesWithinBatch(t *testing.T) {
	// WHAT: A document appearing twice in one run is recorded once.
	// WHY: Identifiers are unique within a batch by invariant.
	a := NewAccumulator(t.TempDir(), nil)
	ctx := context.Background()

	entries := append(testEntries(), testEntries()...)
	if _, err := a.Append(ctx, "run-1", runTime, entries); err != nil {
		t.Fatalf("append: %v", err)
	}

	day, _ := a.Load(runTime)
	if got := len(day.Batches[0].Entries); got != 1 {
		t.Errorf("entries: got %d, want 1", got)
	}
}

func TestAppendTruncatesToMinute(t *testing.T) {
	// WHAT: Batch timestamps are stored at minute precision in UTC.
	a := NewAccumulator(t.TempDir(), nil)
	ctx := context.Background()

	at := time.Date(2026, 8, 31, 14, 30, 45, 123456789, time.FixedZone("EST", -5*3600))
	if _, err := a.Append(ctx, "run-1", at, testEntries()); err != nil {
		t.Fatalf("append: %v", err)
	}

	day, _ := a.Load(at)
	want := time.Date(2026, 8, 31, 19, 30, 0, 0, time.UTC)
	if !day.Batches[0].Timestamp.Equal(want) {
		t.Errorf("timestamp: got %v, want %v", day.Batches[0].Timestamp, want)
	}
}

func TestAppendLeavesNoTempFile(t *testing.T) {
	// WHAT: The atomic rewrite leaves only meta.json behind.
	dir := t.TempDir()
	a := NewAccumulator(dir, nil)
	ctx := context.Background()

	if _, err := a.Append(ctx, "run-1", runTime, testEntries()); err != nil {
		t.Fatalf("append: %v", err)
	}

	dateDir := a.DateDir(runTime)
	if _, err := os.Stat(filepath.Join(dateDir, "meta.json")); err != nil {
		t.Errorf("meta.json missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dateDir, "meta.json.tmp")); !os.IsNotExist(err) {
		t.Error("meta.json.tmp left behind")
	}
}

func TestAppendCancelledContext(t *testing.T) {
	// WHAT: A cancelled context prevents any report mutation.
	// WHY: Cancellation before the append must yield zero report change.
	a := NewAccumulator(t.TempDir(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Append(ctx, "run-1", runTime, testEntries()); err == nil {
		t.Fatal("append succeeded on cancelled context")
	}
	day, _ := a.Load(runTime)
	if day != nil {
		t.Error("report mutated despite cancellation")
	}
}
