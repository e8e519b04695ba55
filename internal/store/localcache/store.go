// Package localcache is the on-device document cache, one row per
// (user, entity), stored in SQLite.
package localcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lg/fitai-go-api/internal/model"

	_ "modernc.org/sqlite"
)

const (
	appDirName = "fitai"
	dbFileName = "cache.db"
)

// DefaultPath is the cache file under the user config directory.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, appDirName, dbFileName), nil
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache at path and applies migrations.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if err := ApplyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// row is the column layout of cache_documents.
type row struct {
	userID    string
	entity    string
	revision  string
	updatedAt string
	payload   string
}

func toRow(key model.Key, doc model.Document) row {
	return row{
		userID:    key.UserID,
		entity:    string(key.Entity),
		revision:  doc.Revision,
		updatedAt: doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
		payload:   string(doc.Payload),
	}
}

func fromRow(r row) (model.Document, error) {
	at, err := time.Parse(time.RFC3339Nano, r.updatedAt)
	if err != nil {
		return model.Document{}, fmt.Errorf("parse updated_at %q: %w", r.updatedAt, err)
	}
	return model.Document{
		UserID:    r.userID,
		Entity:    model.Entity(r.entity),
		Revision:  r.revision,
		UpdatedAt: at,
		Payload:   []byte(r.payload),
	}, nil
}

func (s *Store) Get(ctx context.Context, key model.Key) (model.Document, bool, error) {
	var r row
	err := s.db.QueryRowContext(ctx, `
SELECT user_id, entity, revision, updated_at, payload
FROM cache_documents
WHERE user_id = ? AND entity = ?`, key.UserID, string(key.Entity)).
		Scan(&r.userID, &r.entity, &r.revision, &r.updatedAt, &r.payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, false, nil
	}
	if err != nil {
		return model.Document{}, false, fmt.Errorf("get cached %s: %w", key, err)
	}
	doc, err := fromRow(r)
	if err != nil {
		return model.Document{}, false, fmt.Errorf("get cached %s: %w", key, err)
	}
	return doc, true, nil
}

// Put stores doc under key, replacing any previous version.
func (s *Store) Put(ctx context.Context, key model.Key, doc model.Document) error {
	r := toRow(key, doc)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cache_documents(user_id, entity, revision, updated_at, payload)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(user_id, entity) DO UPDATE SET
  revision = excluded.revision,
  updated_at = excluded.updated_at,
  payload = excluded.payload`,
		r.userID, r.entity, r.revision, r.updatedAt, r.payload)
	if err != nil {
		return fmt.Errorf("put cached %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key model.Key) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_documents WHERE user_id = ? AND entity = ?`,
		key.UserID, string(key.Entity)); err != nil {
		return fmt.Errorf("delete cached %s: %w", key, err)
	}
	return nil
}

// List returns every cached document for userID, oldest edit first.
func (s *Store) List(ctx context.Context, userID string) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT user_id, entity, revision, updated_at, payload
FROM cache_documents
WHERE user_id = ?
ORDER BY updated_at, entity`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cached documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.userID, &r.entity, &r.revision, &r.updatedAt, &r.payload); err != nil {
			return nil, fmt.Errorf("scan cached document: %w", err)
		}
		doc, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cached documents: %w", err)
	}
	return docs, nil
}
