package report

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func renderedDay(t *testing.T) (*Renderer, *Accumulator, time.Time) {
	t.Helper()
	dir := t.TempDir()
	a := NewAccumulator(dir, nil)
	r, err := NewRenderer(dir, "https://example.github.io/doc-reports")
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	at := time.Date(2026, 8, 31, 9, 15, 0, 0, time.UTC)
	_, err = a.Append(context.Background(), "run-1", at, []Entry{
		{Slug: "hooks/overview", SourceID: "claude-docs", SourceName: "Claude Docs",
			Summary: "+3 lines", Added: 3},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return r, a, at
}

func TestRenderDay(t *testing.T) {
	// WHAT: The daily index lists batch time, source name and page links.
	r, a, at := renderedDay(t)
	day, _ := a.Load(at)

	path, err := r.RenderDay(at, day)
	if err != nil {
		t.Fatalf("render day: %v", err)
	}
	html, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	// html/template escapes "+" to &#43; in text context.
	for _, want := range []string{"2026-08-31", "09:15 UTC", "Claude Docs",
		"claude-docs/hooks/overview.html", "&#43;3 lines"} {
		if !strings.Contains(string(html), want) {
			t.Errorf("daily index missing %q", want)
		}
	}
}

func TestRenderPage(t *testing.T) {
	// WHAT: The per-document page embeds the HTML diff unescaped and the
	// unified diff escaped, with a correct back link for nested slugs.
	r, _, at := renderedDay(t)

	path, err := r.RenderPage(at, Page{
		Entry: Entry{Slug: "hooks/overview", SourceID: "claude-docs",
			SourceName: "Claude Docs", Summary: "+3 lines", Added: 3},
		UnifiedDiff: "--- a/hooks/overview.md\n+++ b/hooks/overview.md\n+new line\n",
		HTMLDiff:    "<ins>new line</ins>",
	})
	if err != nil {
		t.Fatalf("render page: %v", err)
	}
	if !strings.HasSuffix(path, "claude-docs/hooks/overview.html") {
		t.Errorf("output path: %q", path)
	}

	html, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(html), "<ins>new line</ins>") {
		t.Error("HTML diff was escaped")
	}
	// slug has two segments + source dir → three levels up.
	if !strings.Contains(string(html), `href="../../index.html"`) {
		t.Error("back link depth wrong for nested slug")
	}
}

func TestRenderIndex(t *testing.T) {
	// WHAT: The root index lists rendered dates newest-first with counts.
	r, a, at := renderedDay(t)
	day, _ := a.Load(at)
	if _, err := r.RenderDay(at, day); err != nil {
		t.Fatalf("render day: %v", err)
	}

	// Second, earlier day.
	earlier := at.Add(-48 * time.Hour)
	if _, err := a.Append(context.Background(), "run-0", earlier, []Entry{
		{Slug: "older", SourceID: "claude-docs", Summary: "-1 lines", Removed: 1},
	}); err != nil {
		t.Fatalf("append earlier: %v", err)
	}
	dayE, _ := a.Load(earlier)
	if _, err := r.RenderDay(earlier, dayE); err != nil {
		t.Fatalf("render earlier day: %v", err)
	}

	path, err := r.RenderIndex()
	if err != nil {
		t.Fatalf("render index: %v", err)
	}
	html, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	newest := strings.Index(string(html), "2026-08-31")
	oldest := strings.Index(string(html), "2026-08-29")
	if newest == -1 || oldest == -1 {
		t.Fatalf("dates missing from index: %s", html)
	}
	if newest > oldest {
		t.Error("index not newest-first")
	}
}

func TestURL(t *testing.T) {
	// WHAT: Report URLs point at the date directory under the base URL.
	r, _, at := renderedDay(t)
	if got := r.URL(at); got != "https://example.github.io/doc-reports/2026/08/31/" {
		t.Errorf("url: got %q", got)
	}

	rel, err := NewRenderer(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if got := rel.URL(at); got != "2026/08/31/" {
		t.Errorf("relative url: got %q", got)
	}
}
