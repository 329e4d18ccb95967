package storage

import (
	"context"
	"errors"
	"fmt"

	"collageAPI/internal/types/share"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS collage_shares (
	id          UUID PRIMARY KEY,
	owner       TEXT NOT NULL DEFAULT '',
	history     JSONB NOT NULL,
	bg          TEXT NOT NULL,
	image_type  TEXT NOT NULL,
	image       BYTEA NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	expires_at  TIMESTAMPTZ NOT NULL
);
ALTER TABLE collage_shares ADD COLUMN IF NOT EXISTS owner TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS collage_shares_expires_at_idx ON collage_shares (expires_at);

CREATE TABLE IF NOT EXISTS collage_kv (
	owner       TEXT NOT NULL,
	key         TEXT NOT NULL,
	value       TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (owner, key)
);
`

func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

type ShareRepository struct {
	db *pgxpool.Pool
}

func NewShareRepository(db *pgxpool.Pool) *ShareRepository {
	return &ShareRepository{db: db}
}

func (r *ShareRepository) Create(ctx context.Context, s *share.Share) error {
	query := `
		INSERT INTO collage_shares (id, owner, history, bg, image_type, image, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		s.ID,
		s.Owner,
		string(s.History),
		s.Background,
		s.ImageType,
		s.Image,
		s.ExpiresAt,
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert share: %w", err)
	}
	return nil
}

// Get returns a share that has not expired yet.
func (r *ShareRepository) Get(ctx context.Context, id uuid.UUID) (*share.Share, error) {
	query := `
		SELECT id, owner, history, bg, image_type, image, created_at, expires_at
		FROM collage_shares
		WHERE id = $1 AND expires_at > NOW()
	`
	var s share.Share
	var historyJSON []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.Owner,
		&historyJSON,
		&s.Background,
		&s.ImageType,
		&s.Image,
		&s.CreatedAt,
		&s.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get share: %w", err)
	}
	s.History = historyJSON
	return &s, nil
}

func (r *ShareRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM collage_shares WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired shares: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PostgresStore is a Store scoped to one owner, used to keep a signed-in
// user's collage on the server.
type PostgresStore struct {
	db    *pgxpool.Pool
	owner string
}

func NewPostgresStore(db *pgxpool.Pool, owner string) *PostgresStore {
	return &PostgresStore{db: db, owner: owner}
}

func (p *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.db.QueryRow(ctx,
		`SELECT value FROM collage_kv WHERE owner = $1 AND key = $2`,
		p.owner, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

func (p *PostgresStore) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO collage_kv (owner, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := p.db.Exec(ctx, query, p.owner, key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM collage_kv WHERE owner = $1 AND key = $2`, p.owner, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
