package blob

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

type redisRepo struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedis stores blobs as plain string keys under prefix. A zero ttl keeps
// keys forever; otherwise every Set refreshes the expiry.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration, logger *logrus.Logger) Repository {
	return &redisRepo{client: client, prefix: prefix, ttl: ttl, logger: logging.OrDiscard(logger)}
}

func (r *redisRepo) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		r.logger.WithError(err).WithField("key", key).Error("blob repo: redis get")
		return "", err
	}
	return v, nil
}

func (r *redisRepo) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
		r.logger.WithError(err).WithField("key", key).Error("blob repo: redis set")
		return err
	}
	return nil
}

func (r *redisRepo) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		r.logger.WithError(err).WithField("key", key).Error("blob repo: redis del")
		return err
	}
	return nil
}

func (r *redisRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
