// Package monitor drives the polling cycle end-to-end: fetch every
// tracked document, detect changes against the stored snapshots, persist
// new snapshots, and hand the cycle's changes to the report accumulator
// as one batch.
package monitor

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/docwatch/diff"
	"github.com/hazyhaar/docwatch/fetch"
	"github.com/hazyhaar/docwatch/notify"
	"github.com/hazyhaar/docwatch/report"
	"github.com/hazyhaar/docwatch/snapshot"
)

// FetchClient is the external fetch collaborator: one logical outcome
// per document per cycle.
type FetchClient interface {
	FetchAll(ctx context.Context, reqs []fetch.Request) []fetch.Outcome
}

// Service coordinates polling cycles. All state lives in the explicit
// store handles passed at construction; there are no package-level
// singletons.
type Service struct {
	sources   []Source
	snapshots *snapshot.Store
	reports   *report.Accumulator
	renderer  *report.Renderer // nil disables report rendering
	fetcher   FetchClient
	sink      notify.Sink // nil disables notification
	logger    *slog.Logger
	newToken  func() string
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithSink sets the notification sink.
func WithSink(s notify.Sink) Option {
	return func(svc *Service) { svc.sink = s }
}

// WithRenderer sets the report renderer.
func WithRenderer(r *report.Renderer) Option {
	return func(svc *Service) { svc.renderer = r }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) { svc.logger = l }
}

// WithTokenFunc overrides run-token generation (tests).
func WithTokenFunc(f func() string) Option {
	return func(svc *Service) { svc.newToken = f }
}

// WithClock overrides the time source (tests).
func WithClock(f func() time.Time) Option {
	return func(svc *Service) { svc.now = f }
}

// New creates a Service over the given stores and fetch collaborator.
func New(sources []Source, snapshots *snapshot.Store, reports *report.Accumulator, fetcher FetchClient, opts ...Option) *Service {
	svc := &Service{
		sources:   sources,
		snapshots: snapshots,
		reports:   reports,
		fetcher:   fetcher,
		logger:    slog.Default(),
		newToken:  uuid.NewString,
		now:       time.Now,
	}
	for _, o := range opts {
		o(svc)
	}
	return svc
}

// docKey identifies a document within one cycle.
type docKey struct {
	sourceID string
	slug     string
}

// Cycle runs one polling cycle across all tracked documents.
//
// Per-document failures (fetch or store write) are collected, never
// fatal; a cycle with failures is a normal partial success. The report
// append happens exactly once, after every document is processed, so a
// cancellation mid-cycle leaves the day report untouched.
func (s *Service) Cycle(ctx context.Context) (*CycleResult, error) {
	startedAt := s.now().UTC()
	res := &CycleResult{
		Token:     s.newToken(),
		StartedAt: startedAt,
	}

	log := s.logger.With("token", res.Token)
	log.Info("cycle: start", "sources", len(s.sources))

	// Read prior snapshots up front: they provide the conditional-GET
	// metadata and the old content for detection.
	var reqs []fetch.Request
	priors := make(map[docKey]*snapshot.Document)
	names := make(map[string]string, len(s.sources))

	for _, src := range s.sources {
		names[src.ID] = src.Name
		for _, slug := range src.Pages {
			res.Total++
			prior, err := s.snapshots.Get(ctx, src.ID, slug)
			if err != nil {
				s.fail(res, src.ID, slug, fmt.Sprintf("read snapshot: %v", err))
				continue
			}

			req := fetch.Request{
				SourceID: src.ID,
				Slug:     slug,
				URL:      src.PageURL(slug),
			}
			if prior != nil {
				priors[docKey{src.ID, slug}] = prior
				req.ETag = prior.ETag
				req.LastModified = prior.LastModified
				req.PrevHash = prior.ContentHash
			}
			reqs = append(reqs, req)
		}
	}

	outcomes := s.fetcher.FetchAll(ctx, reqs)

	for _, out := range outcomes {
		key := docKey{out.SourceID, out.Slug}
		switch out.Status {
		case fetch.StatusFailed:
			s.fail(res, out.SourceID, out.Slug, out.Err)

		case fetch.StatusNotModified:
			// Fast path: no detector call, no store write.
			log.Debug("cycle: unchanged", "source", out.SourceID, "slug", out.Slug)

		case fetch.StatusSuccess:
			s.processSuccess(ctx, log, res, priors[key], out, names[out.SourceID])
		}
	}

	// One append per cycle, after all documents. Cancellation before
	// this point leaves zero report mutation.
	var entries []report.Entry
	for _, r := range res.Records {
		entries = append(entries, report.Entry{
			Slug:       r.Slug,
			SourceID:   r.SourceID,
			SourceName: r.SourceName,
			Summary:    r.Summary,
			Added:      r.AddedLines,
			Removed:    r.RemovedLines,
		})
	}
	appended, err := s.reports.Append(ctx, res.Token, startedAt, entries)
	if err != nil {
		return res, fmt.Errorf("monitor: append batch: %w", err)
	}
	res.BatchAppended = appended

	if len(res.Records) > 0 && s.renderer != nil {
		s.render(res, startedAt, log)
	}
	if appended && s.sink != nil {
		s.notify(ctx, res, startedAt, log)
	}

	log.Info("cycle: done",
		"total", res.Total, "changed", res.Changed, "failed", res.Failed,
		"batch_appended", res.BatchAppended)
	return res, nil
}

// processSuccess handles a Success outcome: baseline on first
// observation, otherwise detect, persist, and forward.
func (s *Service) processSuccess(ctx context.Context, log *slog.Logger, res *CycleResult, prior *snapshot.Document, out fetch.Outcome, sourceName string) {
	doc := &snapshot.Document{
		SourceID:     out.SourceID,
		Slug:         out.Slug,
		Content:      out.Content,
		ContentHash:  out.Hash,
		ETag:         out.ETag,
		LastModified: out.LastModified,
	}

	if prior == nil {
		// First successful fetch: store the baseline silently. A new
		// document is not a "change", there is nothing to compare to.
		if err := s.snapshots.Put(ctx, doc); err != nil {
			s.fail(res, out.SourceID, out.Slug, fmt.Sprintf("store baseline: %v", err))
			return
		}
		log.Debug("cycle: baseline stored", "source", out.SourceID, "slug", out.Slug)
		return
	}

	record := diff.Compute(out.Slug, prior.Content, out.Content)
	record.SourceID = out.SourceID
	record.SourceName = sourceName

	// Persist regardless of changed/unchanged so the conditional-GET
	// metadata stays fresh. A failed write keeps the previous snapshot
	// and the record is withheld; it will be re-detected next cycle.
	if err := s.snapshots.Put(ctx, doc); err != nil {
		s.fail(res, out.SourceID, out.Slug, fmt.Sprintf("store snapshot: %v", err))
		return
	}

	if record.Changed {
		res.Changed++
		res.Records = append(res.Records, record)
		log.Info("cycle: changed", "source", out.SourceID, "slug", out.Slug, "summary", record.Summary)
	}
}

func (s *Service) fail(res *CycleResult, sourceID, slug, reason string) {
	res.Failed++
	res.Failures = append(res.Failures, Failure{SourceID: sourceID, Slug: slug, Reason: reason})
	s.logger.Warn("cycle: document failed", "source", sourceID, "slug", slug, "reason", reason)
}

// render writes the per-page diff pages, the daily index, and the root
// index. Render errors are logged, never fatal to the cycle; the facts
// are already durable in meta.json.
func (s *Service) render(res *CycleResult, at time.Time, log *slog.Logger) {
	for _, r := range res.Records {
		page := report.Page{
			Entry: report.Entry{
				Slug:       r.Slug,
				SourceID:   r.SourceID,
				SourceName: r.SourceName,
				Summary:    r.Summary,
				Added:      r.AddedLines,
				Removed:    r.RemovedLines,
			},
			UnifiedDiff: diff.Unified(r.Slug, r.OldContent, r.NewContent),
			HTMLDiff:    template.HTML(diff.PrettyHTML(r.OldContent, r.NewContent)),
		}
		if _, err := s.renderer.RenderPage(at, page); err != nil {
			log.Warn("cycle: render page failed", "slug", r.Slug, "error", err)
		}
	}

	day, err := s.reports.Load(at)
	if err != nil || day == nil {
		log.Warn("cycle: load day report failed", "error", err)
		return
	}
	if _, err := s.renderer.RenderDay(at, day); err != nil {
		log.Warn("cycle: render day failed", "error", err)
	}
	if _, err := s.renderer.RenderIndex(); err != nil {
		log.Warn("cycle: render index failed", "error", err)
	}
}

// notify sends the changed-page summaries. Invoked only when this
// cycle's batch was actually appended, so a crash-and-retry of the same
// cycle notifies once.
func (s *Service) notify(ctx context.Context, res *CycleResult, at time.Time, log *slog.Logger) {
	summary := notify.Summary{Date: at}
	if s.renderer != nil {
		summary.ReportURL = s.renderer.URL(at)
	}
	for _, r := range res.Records {
		summary.Pages = append(summary.Pages, notify.Page{
			Slug:       r.Slug,
			SourceID:   r.SourceID,
			SourceName: r.SourceName,
			Summary:    r.Summary,
			Added:      r.AddedLines,
			Removed:    r.RemovedLines,
		})
	}
	for _, f := range res.Failures {
		summary.Failures = append(summary.Failures, fmt.Sprintf("%s/%s: %s", f.SourceID, f.Slug, f.Reason))
	}

	if err := s.sink.Send(ctx, summary); err != nil {
		log.Warn("cycle: notification failed", "error", err)
	}
}
