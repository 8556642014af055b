package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Cascades are walked explicitly inside repository transactions, so the
// references below are plain REFERENCES without ON DELETE CASCADE.
const schema = `
CREATE TABLE IF NOT EXISTS checklists (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS checklists_owner_idx ON checklists(owner_id);

CREATE TABLE IF NOT EXISTS categories (
    id TEXT PRIMARY KEY,
    checklist_id TEXT NOT NULL REFERENCES checklists(id),
    name TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS categories_checklist_idx ON categories(checklist_id);

CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    category_id TEXT NOT NULL REFERENCES categories(id),
    name TEXT NOT NULL,
    is_completed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS items_category_idx ON items(category_id);

CREATE TABLE IF NOT EXISTS files (
    id TEXT PRIMARY KEY,
    category_id TEXT REFERENCES categories(id),
    item_id TEXT REFERENCES items(id),
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    CHECK ((category_id IS NULL) <> (item_id IS NULL))
);
CREATE INDEX IF NOT EXISTS files_category_idx ON files(category_id);
CREATE INDEX IF NOT EXISTS files_item_idx ON files(item_id);
CREATE INDEX IF NOT EXISTS files_url_idx ON files(url);

CREATE TABLE IF NOT EXISTS share_links (
    token TEXT PRIMARY KEY,
    checklist_id TEXT NOT NULL REFERENCES checklists(id),
    created_by TEXT NOT NULL,
    revoked BOOLEAN NOT NULL DEFAULT FALSE,
    revoked_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS share_links_checklist_idx ON share_links(checklist_id);
`

func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}
