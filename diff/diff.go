// Package diff compares two versions of a tracked document.
//
// Compute is pure and context-free: it has no opinion on first runs or
// notification policy, it only measures what changed between two strings.
// The counters use a line-set difference, not a positional diff: a line
// that merely moved counts as unchanged.
package diff

import (
	"fmt"
	"strings"
)

// Result describes the comparison of two versions of one document.
// Immutable once created.
type Result struct {
	Slug         string
	SourceID     string
	SourceName   string
	Changed      bool
	OldContent   string
	NewContent   string
	AddedLines   int
	RemovedLines int
	Summary      string
}

// Compute compares old and new content for the given page slug.
// Equal content (byte-for-byte) yields Changed=false and zero counters.
func Compute(slug, oldContent, newContent string) Result {
	if oldContent == newContent {
		return Result{
			Slug:       slug,
			Changed:    false,
			OldContent: oldContent,
			NewContent: newContent,
			Summary:    "No changes",
		}
	}

	added, removed := countChanges(oldContent, newContent)

	return Result{
		Slug:         slug,
		Changed:      true,
		OldContent:   oldContent,
		NewContent:   newContent,
		AddedLines:   added,
		RemovedLines: removed,
		Summary:      summarize(added, removed),
	}
}

// countChanges computes the line-set difference between old and new.
// added = lines present in new but not in old; removed = the converse.
func countChanges(oldContent, newContent string) (added, removed int) {
	oldSet := lineSet(oldContent)
	newSet := lineSet(newContent)

	for line := range newSet {
		if !oldSet[line] {
			added++
		}
	}
	for line := range oldSet {
		if !newSet[line] {
			removed++
		}
	}
	return added, removed
}

func lineSet(content string) map[string]bool {
	set := make(map[string]bool)
	for _, line := range splitLines(content) {
		set[line] = true
	}
	return set
}

// splitLines splits content into lines without a phantom trailing entry
// for a final newline. Empty content has no lines.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// summarize renders the human summary. Zero-count terms are omitted;
// content that differs with no line-set delta is a formatting change.
func summarize(added, removed int) string {
	if added == 0 && removed == 0 {
		return "Formatting changes"
	}

	var parts []string
	if added > 0 {
		parts = append(parts, fmt.Sprintf("+%d lines", added))
	}
	if removed > 0 {
		parts = append(parts, fmt.Sprintf("-%d lines", removed))
	}
	return strings.Join(parts, ", ")
}
