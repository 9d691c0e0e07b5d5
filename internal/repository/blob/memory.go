package blob

import (
	"context"
	"sync"

	"storefront/internal/domain"
)

type memoryRepo struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns a process-local Repository.
func NewMemory() Repository {
	return &memoryRepo{values: make(map[string]string)}
}

func (r *memoryRepo) Get(_ context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (r *memoryRepo) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

func (r *memoryRepo) Remove(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, key)
	return nil
}

func (r *memoryRepo) Ping(_ context.Context) error {
	return nil
}
