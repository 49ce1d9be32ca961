package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	_ "modernc.org/sqlite"
)

var sqliteStatements = []string{
	`CREATE TABLE IF NOT EXISTS change_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Pending',
		details TEXT NOT NULL,
		rejection_reason TEXT,
		requested_by TEXT NOT NULL,
		reviewed_by TEXT,
		reviewed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_type TEXT NOT NULL CHECK (entity_type IN ('task','assignment','change_request')),
		entity_id INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		content TEXT NOT NULL,
		is_system INTEGER NOT NULL DEFAULT 0,
		changes TEXT,
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_change_requests_status ON change_requests(status)`,
	`CREATE INDEX IF NOT EXISTS idx_change_requests_project ON change_requests(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_entity ON comments(entity_type, entity_id, created_at)`,
}

// OpenSQLite opens the database at path (":memory:" for a private in-memory database)
// and bootstraps the schema. The pool holds a single connection, so writes are serialized.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "creating db directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enabling foreign keys")
	}

	for _, stmt := range sqliteStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "ensuring schema")
		}
	}
	return db, nil
}
