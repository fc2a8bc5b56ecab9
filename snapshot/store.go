package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Document is the stored snapshot of one tracked document.
type Document struct {
	SourceID     string
	Slug         string
	URL          string
	Content      string
	ContentHash  string // SHA-256 hex of Content
	ETag         string // from last response, for conditional GET
	LastModified string // from last response, for conditional GET
	FetchedAt    int64  // epoch milliseconds
	CreatedAt    int64
	UpdatedAt    int64
}

// Store wraps the snapshot database. It is the single read/write
// authority for document snapshots.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Get returns the stored snapshot for a document, or nil if the document
// has never been successfully fetched (first-run state).
func (s *Store) Get(ctx context.Context, sourceID, slug string) (*Document, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT source_id, slug, url, content, content_hash, etag, last_modified,
		fetched_at, created_at, updated_at
		FROM documents WHERE source_id = ? AND slug = ?`, sourceID, slug)

	var d Document
	err := row.Scan(&d.SourceID, &d.Slug, &d.URL, &d.Content, &d.ContentHash,
		&d.ETag, &d.LastModified, &d.FetchedAt, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Put stores or overwrites the snapshot for a document. The upsert is a
// single statement, so concurrent readers of the same document see either
// the old row or the new one, never a mix.
func (s *Store) Put(ctx context.Context, d *Document) error {
	now := time.Now().UnixMilli()
	if d.FetchedAt == 0 {
		d.FetchedAt = now
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO documents (source_id, slug, url, content, content_hash,
		etag, last_modified, fetched_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id, slug) DO UPDATE SET
		url = excluded.url,
		content = excluded.content,
		content_hash = excluded.content_hash,
		etag = excluded.etag,
		last_modified = excluded.last_modified,
		fetched_at = excluded.fetched_at,
		updated_at = excluded.updated_at`,
		d.SourceID, d.Slug, d.URL, d.Content, d.ContentHash,
		d.ETag, d.LastModified, d.FetchedAt, now, now,
	)
	return err
}

// Exists reports whether a snapshot is stored for the document.
func (s *Store) Exists(ctx context.Context, sourceID, slug string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE source_id = ? AND slug = ?`,
		sourceID, slug).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns all stored snapshots, most recently fetched first.
// Content is included; callers holding many large documents should
// prefer Get per document.
func (s *Store) List(ctx context.Context) ([]*Document, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT source_id, slug, url, content, content_hash, etag, last_modified,
		fetched_at, created_at, updated_at
		FROM documents ORDER BY fetched_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.SourceID, &d.Slug, &d.URL, &d.Content,
			&d.ContentHash, &d.ETag, &d.LastModified,
			&d.FetchedAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

// Count returns the number of stored snapshots.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}
