package blob

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"storefront/internal/domain"
)

func TestRedis_SetGetRemove(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	repo := NewRedis(client, "storefront-test:", time.Minute, nil)
	if err := repo.(Pinger).Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := repo.Set(ctx, "cart", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := repo.Get(ctx, "cart")
	if err != nil || got != "v1" {
		t.Fatalf("Get: %q %v", got, err)
	}
	ttl, err := client.TTL(ctx, "storefront-test:cart").Result()
	if err != nil || ttl <= 0 {
		t.Fatalf("expected ttl to be set, got %v %v", ttl, err)
	}
	if err := repo.Remove(ctx, "cart"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := repo.Get(ctx, "cart"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
