package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	getSnapshotSQL = `SELECT value FROM cart_snapshots WHERE key = $1`

	putSnapshotSQL = `INSERT INTO cart_snapshots (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
)

// KV is a string key-value store on the cart_snapshots table.
type KV struct {
	pool *pgxpool.Pool
}

// NewKV returns a KV that uses the given pool.
func NewKV(pool *pgxpool.Pool) *KV {
	return &KV{pool: pool}
}

func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	if err := s.pool.QueryRow(ctx, getSnapshotSQL, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("getting snapshot %q: %w", key, err)
	}
	return value, true, nil
}

func (s *KV) Set(ctx context.Context, key, value string) error {
	if _, err := s.pool.Exec(ctx, putSnapshotSQL, key, value); err != nil {
		return fmt.Errorf("putting snapshot %q: %w", key, err)
	}
	return nil
}
