package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chygoz/storefront/pkg/database"
)

// DB is the subset of *pgxpool.Pool the storage needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Storage implements storage.Storage on the cart_records table.
type Storage struct {
	db DB
}

// New creates a PostgreSQL-backed storage.
func New(db DB) *Storage {
	return &Storage{db: db}
}

// Get reads the record stored under key.
func (s *Storage) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	query := `SELECT value FROM cart_records WHERE key = $1`
	ctx, end := database.TraceQuery(ctx, "GetCartRecord", query)
	defer func() { end(err) }()

	if err = s.db.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get cart record: %w", err)
	}
	return value, true, nil
}

// Set upserts the record under key.
func (s *Storage) Set(ctx context.Context, key string, value []byte) (err error) {
	query := `
		INSERT INTO cart_records (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	ctx, end := database.TraceQuery(ctx, "SetCartRecord", query)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("set cart record: %w", err)
	}
	return nil
}

// Remove deletes the record under key.
func (s *Storage) Remove(ctx context.Context, key string) (err error) {
	query := `DELETE FROM cart_records WHERE key = $1`
	ctx, end := database.TraceQuery(ctx, "RemoveCartRecord", query)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("remove cart record: %w", err)
	}
	return nil
}

// DeleteStale removes records not written since before and returns how many
// were deleted. It gives Postgres the expiry Redis gets from key TTLs.
func (s *Storage) DeleteStale(ctx context.Context, before time.Time) (n int64, err error) {
	query := `DELETE FROM cart_records WHERE updated_at < $1`
	ctx, end := database.TraceQuery(ctx, "DeleteStaleCartRecords", query)
	defer func() { end(err) }()

	ct, err := s.db.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("delete stale cart records: %w", err)
	}
	return ct.RowsAffected(), nil
}
