package blob

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

// NewPostgres stores blobs in the session_blobs table (see internal/migrate).
func NewPostgres(pool *pgxpool.Pool, logger *logrus.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrDiscard(logger)}
}

func (r *postgresRepo) Get(ctx context.Context, key string) (string, error) {
	const q = `
SELECT value
FROM session_blobs
WHERE key = $1
`
	var value string
	if err := r.pool.QueryRow(ctx, q, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		r.logger.WithError(err).WithField("key", key).Error("blob repo: get")
		return "", err
	}
	return value, nil
}

func (r *postgresRepo) Set(ctx context.Context, key, value string) error {
	const q = `
INSERT INTO session_blobs (key, value)
VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value,
    updated_at = now()
`
	if _, err := r.pool.Exec(ctx, q, key, value); err != nil {
		r.logger.WithError(err).WithField("key", key).Error("blob repo: set")
		return err
	}
	return nil
}

func (r *postgresRepo) Remove(ctx context.Context, key string) error {
	const q = `
DELETE FROM session_blobs
WHERE key = $1
`
	if _, err := r.pool.Exec(ctx, q, key); err != nil {
		r.logger.WithError(err).WithField("key", key).Error("blob repo: remove")
		return err
	}
	return nil
}

func (r *postgresRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
