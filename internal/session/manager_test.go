package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/repository/blob"
)

type stubBasketAPI struct {
	mu      sync.Mutex
	remote  map[string]domain.CustomerBasket
	pushes  int
	deletes []string
}

func (s *stubBasketAPI) GetBasket(ctx context.Context, _, id string) (domain.CustomerBasket, error) {
	if err := ctx.Err(); err != nil {
		return domain.CustomerBasket{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.remote[id]
	if !ok {
		return domain.CustomerBasket{}, domain.ErrNotFound
	}
	return b, nil
}

func (s *stubBasketAPI) UpdateBasket(_ context.Context, _ string, b domain.CustomerBasket) (domain.CustomerBasket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushes++
	s.remote[b.ID] = b.Clone()
	return b, nil
}

func (s *stubBasketAPI) DeleteBasket(_ context.Context, _, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, id)
	return nil
}

var _ cart.BasketAPI = (*stubBasketAPI)(nil)

func TestManagerSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blob.NewMemory(), &stubBasketAPI{remote: map[string]domain.CustomerBasket{}}, Options{Durable: true, SyncTimeout: time.Second}, nil)
	defer m.Close(ctx)

	a := m.Get(ctx, "a")
	b := m.Get(ctx, "b")
	a.Cart.Add(ctx, domain.BasketItem{ID: 1, Price: 100})

	if a.Cart.BasketID() != "basket-a" || b.Cart.BasketID() != "basket-b" {
		t.Fatalf("unexpected basket ids %q %q", a.Cart.BasketID(), b.Cart.BasketID())
	}
	if b.Cart.Count() != 0 {
		t.Fatalf("session b sees %d items", b.Cart.Count())
	}
	if m.Get(ctx, "a") != a {
		t.Fatal("expected the same session instance")
	}
	if m.Len() != 2 {
		t.Fatalf("Len = %d", m.Len())
	}
}

func TestManagerStartPullsRemoteForLoggedInSession(t *testing.T) {
	ctx := context.Background()
	repo := blob.NewMemory()
	api := &stubBasketAPI{remote: map[string]domain.CustomerBasket{
		"basket-s1": {ID: "basket-s1", Items: []domain.BasketItem{{ID: 3, Price: 250, Quantity: 2}}},
	}}
	if err := NewCredentials(blob.Scoped(repo, "session:s1")).Save(ctx, domain.User{Token: "tok", Email: "a@b.c"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	m := NewManager(repo, api, Options{Durable: true}, nil)
	defer m.Close(ctx)

	s := m.Get(ctx, "s1")
	if s.Cart.Count() != 2 || s.Cart.Subtotal() != 500 {
		t.Fatalf("expected remote basket, got count=%d subtotal=%v", s.Cart.Count(), s.Cart.Subtotal())
	}
}

func TestManagerResumesPersistedCart(t *testing.T) {
	ctx := context.Background()
	repo := blob.NewMemory()
	api := &stubBasketAPI{remote: map[string]domain.CustomerBasket{}}

	first := NewManager(repo, api, Options{Durable: true}, nil)
	first.Get(ctx, "s1").Cart.Add(ctx, domain.BasketItem{ID: 9, Price: 120})
	if err := first.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := NewManager(repo, api, Options{Durable: true}, nil)
	defer second.Close(ctx)
	if got := second.Get(ctx, "s1").Cart.Count(); got != 1 {
		t.Fatalf("resumed cart count = %d", got)
	}
}

func TestManagerTeardown(t *testing.T) {
	ctx := context.Background()
	repo := blob.NewMemory()
	api := &stubBasketAPI{remote: map[string]domain.CustomerBasket{}}
	m := NewManager(repo, api, Options{Durable: true, SyncTimeout: time.Second}, nil)
	defer m.Close(ctx)

	s := m.Get(ctx, "s1")
	if err := s.Credentials.Save(ctx, domain.User{Token: "tok", Email: "a@b.c"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Cart.Add(ctx, domain.BasketItem{ID: 1, Price: 100})

	if err := m.Teardown(ctx, "s1"); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("Len = %d", m.Len())
	}
	api.mu.Lock()
	pushes, deletes := api.pushes, len(api.deletes)
	api.mu.Unlock()
	if pushes != 1 || deletes != 0 {
		t.Fatalf("pushes=%d deletes=%d", pushes, deletes)
	}

	fresh := m.Get(ctx, "s1")
	if fresh == s {
		t.Fatal("expected a new session after teardown")
	}
	if fresh.Credentials.IsLoggedIn(ctx) || fresh.Cart.Count() != 0 {
		t.Fatal("expected logged out session with empty cart")
	}
}

func TestManagerNonDurableCart(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blob.NewMemory(), &stubBasketAPI{remote: map[string]domain.CustomerBasket{}}, Options{}, nil)
	defer m.Close(ctx)

	s := m.Get(ctx, "s1")
	s.Cart.Add(ctx, domain.BasketItem{ID: 1, Price: 100})
	if s.Cart.Count() != 0 {
		t.Fatal("non-durable cart must ignore mutations")
	}
}

func TestManagerStartSurvivesCancelledRequest(t *testing.T) {
	repo := blob.NewMemory()
	api := &stubBasketAPI{remote: map[string]domain.CustomerBasket{
		"basket-s1": {ID: "basket-s1", Items: []domain.BasketItem{{ID: 3, Price: 250, Quantity: 2}}},
	}}
	if err := NewCredentials(blob.Scoped(repo, "session:s1")).Save(context.Background(), domain.User{Token: "tok"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	m := NewManager(repo, api, Options{Durable: true, SyncTimeout: time.Second}, nil)
	defer m.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := m.Get(ctx, "s1").Cart.Count(); got != 2 {
		t.Fatalf("expected remote basket despite cancelled request, count=%d", got)
	}
}

func TestManagerSweepEvictsIdleSessions(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx := context.Background()
	repo := blob.NewMemory()
	api := &stubBasketAPI{remote: map[string]domain.CustomerBasket{}}
	m := NewManager(repo, api, Options{Durable: true, SyncTimeout: time.Second, IdleTimeout: 30 * time.Minute}, nil)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	a := m.Get(ctx, "a")
	b := m.Get(ctx, "b")
	b.Cart.Add(ctx, domain.BasketItem{ID: 4, Price: 100})

	clock = clock.Add(20 * time.Minute)
	m.Get(ctx, "a")
	if n := m.Sweep(ctx); n != 0 {
		t.Fatalf("evicted %d sessions before the timeout", n)
	}

	clock = clock.Add(20 * time.Minute)
	if n := m.Sweep(ctx); n != 1 {
		t.Fatalf("evicted %d sessions, want 1", n)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d", m.Len())
	}
	if m.Get(ctx, "a") != a {
		t.Fatal("recently used session was evicted")
	}

	resumed := m.Get(ctx, "b")
	if resumed == b {
		t.Fatal("expected a new session instance after eviction")
	}
	if resumed.Cart.Count() != 1 {
		t.Fatalf("evicted session must resume its persisted cart, count=%d", resumed.Cart.Count())
	}

	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestManagerSweepDisabled(t *testing.T) {
	ctx := context.Background()
	m := NewManager(blob.NewMemory(), &stubBasketAPI{remote: map[string]domain.CustomerBasket{}}, Options{Durable: true}, nil)
	defer m.Close(ctx)
	m.Get(ctx, "a")
	m.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	if n := m.Sweep(ctx); n != 0 || m.Len() != 1 {
		t.Fatalf("sweep without idle timeout evicted %d", n)
	}
}

func TestManagerRunStopsWithContext(t *testing.T) {
	m := NewManager(blob.NewMemory(), &stubBasketAPI{remote: map[string]domain.CustomerBasket{}}, Options{Durable: true, IdleTimeout: time.Millisecond}, nil)
	defer m.Close(context.Background())
	m.Get(context.Background(), "a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for m.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("idle session never evicted")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
