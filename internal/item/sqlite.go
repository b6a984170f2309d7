package item

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS items (
	id           TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS annotations (
	item_id  TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	property TEXT NOT NULL,
	value    TEXT NOT NULL,
	lang     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (item_id, position)
);
`

// SQLiteStore persists a knowledge base in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore opens (or creates) the database at path.
// An empty path opens an in-memory database.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single connection keeps an in-memory database alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Load reads the whole knowledge base into a clean Memory collection.
func (s *SQLiteStore) Load(ctx context.Context) (*Memory, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'collection'`).Scan(&name)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read collection name: %w", err)
	}
	if name == "" {
		name = s.path
		if abs, err := filepath.Abs(s.path); err == nil {
			name = abs
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, display_name FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	var items []Item
	index := make(map[ID]int)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.DisplayName); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		index[it.ID] = len(items)
		items = append(items, it)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT item_id, property, value, lang FROM annotations ORDER BY item_id, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id ID
		var a Annotation
		if err := rows.Scan(&id, &a.Property, &a.Value, &a.Lang); err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		if i, ok := index[id]; ok {
			items[i].Annotations = append(items[i].Annotations, a)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return NewMemory(CollectionID(name), items), nil
}

// Save replaces the stored knowledge base with the current content of m.
func (s *SQLiteStore) Save(ctx context.Context, m *Memory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM annotations`); err != nil {
		return fmt.Errorf("failed to clear annotations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('collection', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, string(m.ID())); err != nil {
		return fmt.Errorf("failed to save collection name: %w", err)
	}

	itemStmt, err := tx.PrepareContext(ctx, `INSERT INTO items (id, display_name) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer itemStmt.Close()
	annStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO annotations (item_id, position, property, value, lang) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare annotation insert: %w", err)
	}
	defer annStmt.Close()

	for _, it := range m.Snapshot() {
		if _, err := itemStmt.ExecContext(ctx, string(it.ID), it.DisplayName); err != nil {
			return fmt.Errorf("failed to insert item %s: %w", it.ID, err)
		}
		for pos, a := range it.Annotations {
			if _, err := annStmt.ExecContext(ctx, string(it.ID), pos, a.Property, a.Value, a.Lang); err != nil {
				return fmt.Errorf("failed to insert annotation for %s: %w", it.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
