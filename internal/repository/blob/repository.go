package blob

import (
	"context"
	"strings"
)

// Repository is a string-keyed blob store with no transactional guarantees.
// Get returns domain.ErrNotFound for missing keys; Remove of a missing key is
// not an error.
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type scoped struct {
	repo   Repository
	prefix string
}

// Scoped returns a view of repo whose keys are prefixed with namespace.
func Scoped(repo Repository, namespace string) Repository {
	prefix := strings.TrimSuffix(namespace, ":") + ":"
	if s, ok := repo.(*scoped); ok {
		return &scoped{repo: s.repo, prefix: s.prefix + prefix}
	}
	return &scoped{repo: repo, prefix: prefix}
}

func (s *scoped) Get(ctx context.Context, key string) (string, error) {
	return s.repo.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key, value string) error {
	return s.repo.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Remove(ctx context.Context, key string) error {
	return s.repo.Remove(ctx, s.prefix+key)
}
