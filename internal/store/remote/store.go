// Package remote is the Postgres-backed remote store: one table per entity,
// keyed by user_id, written with upserts.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lg/fitai-go-api/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect creates a connection pool. A pool (not a single conn) survives Neon
// closing idle connections after ~5 minutes.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse DB URL: %w", err)
	}
	// Simple query protocol avoids "cached plan must not change result type"
	// errors from Neon's server-side prepared statement cache after schema changes.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

// documentRow is the common column set shared by every entity table.
type documentRow struct {
	UserID    string    `db:"user_id"`
	Revision  string    `db:"revision"`
	Data      []byte    `db:"data"`
	UpdatedAt time.Time `db:"updated_at"`
}

func upsertSQL(t table) string {
	cols := append([]string{"user_id", "revision", "data", "updated_at"}, t.promoted...)
	vals := make([]string, len(cols))
	sets := make([]string, 0, len(cols)-1)
	for i, c := range cols {
		vals[i] = "@" + c
		if c == "data" {
			vals[i] = "@data::jsonb"
		}
		if c != "user_id" {
			sets = append(sets, c+" = EXCLUDED."+c)
		}
	}
	return fmt.Sprintf(`INSERT INTO %s (%s)
VALUES (%s)
ON CONFLICT (user_id) DO UPDATE SET %s`,
		t.name, strings.Join(cols, ", "), strings.Join(vals, ", "), strings.Join(sets, ", "))
}

// Upsert writes doc as entity for userID. Repeating the same write is safe.
func (s *Store) Upsert(ctx context.Context, userID string, entity model.Entity, doc model.Document) error {
	t, err := tableFor(entity)
	if err != nil {
		return err
	}
	args, err := upsertArgs(t, userID, doc)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, upsertSQL(t), args); err != nil {
		return fmt.Errorf("upsert %s: %w", t.name, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID string, entity model.Entity) (model.Document, bool, error) {
	t, err := tableFor(entity)
	if err != nil {
		return model.Document{}, false, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, revision, data, updated_at FROM `+t.name+` WHERE user_id = @user_id`,
		pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return model.Document{}, false, fmt.Errorf("get %s: %w", t.name, err)
	}
	r, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[documentRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Document{}, false, nil
	}
	if err != nil {
		return model.Document{}, false, fmt.Errorf("get %s: %w", t.name, err)
	}
	return model.Document{
		UserID:    r.UserID,
		Entity:    entity,
		Revision:  r.Revision,
		UpdatedAt: r.UpdatedAt.UTC(),
		Payload:   r.Data,
	}, true, nil
}

// Delete removes entity for userID. It is used to compensate a failed sync.
func (s *Store) Delete(ctx context.Context, userID string, entity model.Entity) error {
	t, err := tableFor(entity)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM `+t.name+` WHERE user_id = @user_id`,
		pgx.NamedArgs{"user_id": userID}); err != nil {
		return fmt.Errorf("delete %s: %w", t.name, err)
	}
	return nil
}
