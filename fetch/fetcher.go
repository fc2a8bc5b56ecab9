// Package fetch retrieves tracked documents over HTTP.
//
// Supports conditional GET (ETag, If-Modified-Since) and content-hash
// change detection, so unchanged documents take the NotModified fast path
// without touching storage. HTML responses are normalized to markdown so
// downstream comparison always operates on text lines.
package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the tagged outcome variant for one document fetch.
type Status string

const (
	StatusSuccess     Status = "success"      // new content retrieved
	StatusNotModified Status = "not_modified" // 304 or content hash unchanged
	StatusFailed      Status = "failed"       // transport or HTTP error
)

// Request identifies one document to fetch, with the conditional-GET
// metadata from its last stored snapshot (all empty on first run).
type Request struct {
	SourceID     string
	Slug         string
	URL          string
	ETag         string
	LastModified string
	PrevHash     string // SHA-256 of last stored content
}

// Outcome is the single logical result of fetching one document in one
// cycle. Content is only set for StatusSuccess.
type Outcome struct {
	SourceID     string
	Slug         string
	Status       Status
	Content      string // normalized text (markdown for HTML responses)
	Hash         string // SHA-256 hex of Content
	ETag         string
	LastModified string
	StatusCode   int
	Err          string // reason, for StatusFailed
}

// Config configures the fetcher.
type Config struct {
	Timeout     time.Duration // per-request timeout. Default: 30s.
	MaxBytes    int64         // max response body size. Default: 10MB.
	UserAgent   string        // sent with every request.
	Concurrency int           // parallel fetches in FetchAll. Default: 5.
	Delay       time.Duration // pause after each fetch. Zero means no pause.
	Retries     int           // attempts per document. Default: 3.
	// URLValidator rejects URLs before any request is made.
	URLValidator func(string) error
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "docwatch/1.0"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.Delay < 0 {
		c.Delay = 0
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.URLValidator == nil {
		c.URLValidator = ValidateURL
	}
}

// Fetcher performs HTTP requests for tracked documents.
type Fetcher struct {
	client    *http.Client
	config    Config
	normalize *Normalizer
}

// New creates a Fetcher. Redirects are re-validated to keep a permitted
// URL from bouncing to a blocked one.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config:    cfg,
		normalize: NewNormalizer(),
	}
}

// Fetch retrieves one document, retrying transient failures with
// exponential backoff. Client errors (4xx) are not retried. The error
// taxonomy is folded into the Outcome: one logical result per document
// per cycle, never a Go error.
func (f *Fetcher) Fetch(ctx context.Context, req Request) Outcome {
	var last Outcome
	for attempt := 0; attempt < f.config.Retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				last.Err = ctx.Err().Error()
				return last
			}
		}

		last = f.fetchOnce(ctx, req)
		if last.Status != StatusFailed {
			return last
		}
		if last.StatusCode >= 400 && last.StatusCode < 500 {
			return last
		}
	}
	return last
}

func (f *Fetcher) fetchOnce(ctx context.Context, req Request) Outcome {
	out := Outcome{SourceID: req.SourceID, Slug: req.Slug, Status: StatusFailed}

	if err := f.config.URLValidator(req.URL); err != nil {
		out.Err = fmt.Sprintf("URL blocked: %v", err)
		return out
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		out.Err = fmt.Sprintf("new request: %v", err)
		return out
	}
	httpReq.Header.Set("User-Agent", f.config.UserAgent)
	if req.ETag != "" {
		httpReq.Header.Set("If-None-Match", req.ETag)
	}
	if req.LastModified != "" {
		httpReq.Header.Set("If-Modified-Since", req.LastModified)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		out.Err = err.Error()
		return out
	}
	defer resp.Body.Close()

	out.StatusCode = resp.StatusCode
	out.ETag = resp.Header.Get("ETag")
	out.LastModified = resp.Header.Get("Last-Modified")

	if resp.StatusCode == http.StatusNotModified {
		out.Status = StatusNotModified
		out.Err = ""
		return out
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		out.Err = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return out
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		out.Err = fmt.Sprintf("read body: %v", err)
		return out
	}

	content := string(body)
	if isHTML(resp.Header.Get("Content-Type")) {
		content, err = f.normalize.Markdown(body)
		if err != nil {
			out.Err = fmt.Sprintf("normalize html: %v", err)
			return out
		}
	}

	h := sha256.Sum256([]byte(content))
	out.Hash = fmt.Sprintf("%x", h)

	if req.PrevHash != "" && out.Hash == req.PrevHash {
		out.Status = StatusNotModified
		out.Err = ""
		return out
	}

	out.Status = StatusSuccess
	out.Content = content
	out.Err = ""
	return out
}

// FetchAll retrieves every document with bounded concurrency and a fixed
// per-worker delay between requests. Outcomes are returned in request
// order; per-document failures are outcomes, not errors.
func (f *Fetcher) FetchAll(ctx context.Context, reqs []Request) []Outcome {
	outcomes := make([]Outcome, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.config.Concurrency)

	for i, req := range reqs {
		g.Go(func() error {
			outcomes[i] = f.Fetch(ctx, req)
			if f.config.Delay > 0 {
				select {
				case <-time.After(f.config.Delay):
				case <-ctx.Done():
				}
			}
			return nil
		})
	}
	g.Wait()

	return outcomes
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}
