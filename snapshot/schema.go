package snapshot

import "database/sql"

// Schema holds the complete snapshot store schema.
const Schema = `
-- Last-known content per tracked document
CREATE TABLE IF NOT EXISTS documents (
    source_id     TEXT NOT NULL,
    slug          TEXT NOT NULL,
    url           TEXT NOT NULL DEFAULT '',
    content       TEXT NOT NULL,
    content_hash  TEXT NOT NULL,
    etag          TEXT NOT NULL DEFAULT '',
    last_modified TEXT NOT NULL DEFAULT '',
    fetched_at    INTEGER NOT NULL,
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL,
    PRIMARY KEY (source_id, slug)
);
CREATE INDEX IF NOT EXISTS idx_documents_fetched ON documents(fetched_at DESC);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
