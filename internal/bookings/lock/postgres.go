package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS booking_leases (
		key        TEXT PRIMARY KEY,
		owner      TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS booking_leases_expires_at_idx ON booking_leases (expires_at)`,
}

// A lease row is taken over only when the current one has expired.
const postgresAcquire = `
INSERT INTO booking_leases (key, owner, expires_at, created_at)
VALUES ($1, $2, now() + $3 * interval '1 millisecond', now())
ON CONFLICT (key) DO UPDATE
	SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at
	WHERE booking_leases.expires_at <= now()
RETURNING owner`

// PgxConn is the part of *pgxpool.Pool the store uses.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps leases in the booking_leases table. Expiry is judged
// by the database clock so that hosts with skewed clocks agree.
type PostgresStore struct {
	db PgxConn
}

func NewPostgresStore(db PgxConn) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create booking_leases: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	var got string
	err := s.db.QueryRow(ctx, postgresAcquire, key, owner, ttl.Milliseconds()).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgres acquire: %w", err)
	}
	return got == owner, nil
}

func (s *PostgresStore) Check(ctx context.Context, key, owner string) (bool, error) {
	var held bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM booking_leases WHERE key = $1 AND owner = $2 AND expires_at > now())`,
		key, owner,
	).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("postgres check: %w", err)
	}
	return held, nil
}

func (s *PostgresStore) Release(ctx context.Context, key, owner string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM booking_leases WHERE key = $1 AND owner = $2`, key, owner); err != nil {
		return fmt.Errorf("postgres release: %w", err)
	}
	return nil
}

func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM booking_leases WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("postgres purge: %w", err)
	}
	return tag.RowsAffected(), nil
}
