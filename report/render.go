package report

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer generates the HTML pages for day reports: one diff page per
// changed document, a daily index, and the root index listing all dates.
// It only reads report state; the Accumulator is the only writer of
// meta.json.
type Renderer struct {
	dir     string
	baseURL string
	tmpl    *template.Template
}

// NewRenderer creates a Renderer over the reports directory. baseURL is
// the public URL the reports are served under ("" for relative links).
func NewRenderer(dir, baseURL string) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("report: parse templates: %w", err)
	}
	return &Renderer{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		tmpl:    tmpl,
	}, nil
}

// Page is the render input for one changed document's diff page.
type Page struct {
	Entry       Entry
	UnifiedDiff string
	HTMLDiff    template.HTML // pre-escaped by the diff renderer
}

type pageView struct {
	Page
	Date        string
	Timestamp   string
	BackToIndex string
}

// RenderPage writes the diff page for one document under the date
// directory: YYYY/MM/DD/<source_id>/<slug>.html. Returns the output path.
func (r *Renderer) RenderPage(t time.Time, p Page) (string, error) {
	t = t.UTC()
	dateDir := r.dateDir(t)

	sourceID := p.Entry.SourceID
	if sourceID == "" {
		sourceID = "unknown"
	}

	// Relative path back to the daily index, one level per slug segment
	// plus one for the source directory.
	depth := strings.Count(p.Entry.Slug, "/") + 1
	view := pageView{
		Page:        p,
		Date:        t.Format("2006-01-02"),
		Timestamp:   t.Format("2006-01-02 15:04 UTC"),
		BackToIndex: strings.Repeat("../", depth) + "index.html",
	}

	out := filepath.Join(dateDir, sourceID, p.Entry.Slug+".html")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("report: mkdir: %w", err)
	}
	if err := r.writeTemplate(out, "page_diff.html", view); err != nil {
		return "", err
	}
	return out, nil
}

type batchView struct {
	Time         string
	Sources      []sourceView
	Count        int
	TotalAdded   int
	TotalRemoved int
}

type sourceView struct {
	ID    string
	Name  string
	Pages []Entry
}

type dayView struct {
	Date         string
	Batches      []batchView // newest first
	TotalChanges int
}

// RenderDay writes the daily index.html listing all batches of the day,
// newest first. Returns the output path.
func (r *Renderer) RenderDay(t time.Time, day *Day) (string, error) {
	t = t.UTC()
	view := dayView{
		Date:         day.Date,
		TotalChanges: day.TotalChanges(),
	}

	// Newest batch first, matching how readers scan the page.
	for i := len(day.Batches) - 1; i >= 0; i-- {
		b := day.Batches[i]
		view.Batches = append(view.Batches, batchView{
			Time:         b.Timestamp.UTC().Format("15:04 UTC"),
			Sources:      groupBySource(b.Entries),
			Count:        len(b.Entries),
			TotalAdded:   b.TotalAdded(),
			TotalRemoved: b.TotalRemoved(),
		})
	}

	dateDir := r.dateDir(t)
	if err := os.MkdirAll(dateDir, 0o755); err != nil {
		return "", fmt.Errorf("report: mkdir: %w", err)
	}
	out := filepath.Join(dateDir, "index.html")
	if err := r.writeTemplate(out, "daily_index.html", view); err != nil {
		return "", err
	}
	return out, nil
}

type indexEntry struct {
	Date  string
	Path  string
	Count int
}

// RenderIndex scans the reports tree for date directories and writes the
// root index.html, newest date first. Returns the output path.
func (r *Renderer) RenderIndex() (string, error) {
	var reports []indexEntry

	years, _ := os.ReadDir(r.dir)
	for _, y := range years {
		if !y.IsDir() || !isDigits(y.Name()) {
			continue
		}
		months, _ := os.ReadDir(filepath.Join(r.dir, y.Name()))
		for _, m := range months {
			if !m.IsDir() || !isDigits(m.Name()) {
				continue
			}
			days, _ := os.ReadDir(filepath.Join(r.dir, y.Name(), m.Name()))
			for _, d := range days {
				if !d.IsDir() || !isDigits(d.Name()) {
					continue
				}
				dayDir := filepath.Join(r.dir, y.Name(), m.Name(), d.Name())
				if _, err := os.Stat(filepath.Join(dayDir, "index.html")); err != nil {
					continue
				}

				count := 0
				date := fmt.Sprintf("%s-%s-%s", y.Name(), m.Name(), d.Name())
				if t, err := time.Parse("2006-01-02", date); err == nil {
					if day, err := r.loadMeta(t); err == nil && day != nil {
						count = day.TotalChanges()
					}
				}
				reports = append(reports, indexEntry{
					Date:  date,
					Path:  fmt.Sprintf("%s/%s/%s/", y.Name(), m.Name(), d.Name()),
					Count: count,
				})
			}
		}
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].Date > reports[j].Date })

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("report: mkdir: %w", err)
	}
	out := filepath.Join(r.dir, "index.html")
	if err := r.writeTemplate(out, "main_index.html", struct{ Reports []indexEntry }{reports}); err != nil {
		return "", err
	}
	return out, nil
}

// URL returns the public URL for a date's report.
func (r *Renderer) URL(t time.Time) string {
	t = t.UTC()
	datePath := fmt.Sprintf("%04d/%02d/%02d/", t.Year(), t.Month(), t.Day())
	if r.baseURL == "" {
		return datePath
	}
	return r.baseURL + "/" + datePath
}

func (r *Renderer) dateDir(t time.Time) string {
	t = t.UTC()
	return filepath.Join(r.dir,
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()))
}

func (r *Renderer) loadMeta(t time.Time) (*Day, error) {
	acc := Accumulator{dir: r.dir}
	return acc.Load(t)
}

func (r *Renderer) writeTemplate(path, name string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()
	if err := r.tmpl.ExecuteTemplate(f, name, data); err != nil {
		return fmt.Errorf("report: render %s: %w", name, err)
	}
	return nil
}

func groupBySource(entries []Entry) []sourceView {
	var order []string
	byID := make(map[string]*sourceView)
	for _, e := range entries {
		id := e.SourceID
		if id == "" {
			id = "unknown"
		}
		sv, ok := byID[id]
		if !ok {
			name := e.SourceName
			if name == "" {
				name = id
			}
			sv = &sourceView{ID: id, Name: name}
			byID[id] = sv
			order = append(order, id)
		}
		sv.Pages = append(sv.Pages, e)
	}

	views := make([]sourceView, 0, len(order))
	for _, id := range order {
		views = append(views, *byID[id])
	}
	return views
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
