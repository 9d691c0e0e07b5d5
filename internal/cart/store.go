package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/repository/blob"
)

// StorageKey is the blob key the basket is persisted under.
const StorageKey = "cart"

// Store owns the current basket of one session. Every mutation replaces the
// basket value wholesale, persists it, and notifies subscribers with a copy.
//
// A Store built without a blob repository is non-durable: mutations are
// ignored, reads return the initial basket.
type Store struct {
	mu        sync.Mutex
	repo      blob.Repository
	defaultID string
	logger    *logrus.Logger

	current domain.CustomerBasket
	// gen counts basket changes.
	gen     uint64
	subs    map[uint64]chan domain.CustomerBasket
	nextSub uint64
	closed  bool
}

// NewStore creates a Store. initial, when non-nil and valid, seeds the basket;
// otherwise the store starts from the empty default basket.
func NewStore(repo blob.Repository, defaultID string, initial *domain.CustomerBasket, logger *logrus.Logger) *Store {
	current := domain.NewBasket(defaultID)
	if initial != nil && Validate(*initial) == nil {
		current = initial.Clone()
	}
	return &Store{
		repo:      repo,
		defaultID: defaultID,
		logger:    logging.OrDiscard(logger),
		current:   current,
		subs:      make(map[uint64]chan domain.CustomerBasket),
	}
}

// Durable reports whether the store persists its state.
func (s *Store) Durable() bool {
	return s.repo != nil
}

// Load replaces the in-memory basket with the persisted one. A persisted value
// that does not decode or validate is discarded and the default basket is
// written in its place. A missing value leaves the current basket untouched.
func (s *Store) Load(ctx context.Context) {
	if !s.Durable() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	raw, err := s.repo.Get(ctx, StorageKey)
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("cart store: load persisted basket")
		return
	}

	b, err := Decode([]byte(raw))
	if err != nil {
		s.logger.WithError(err).Warn("cart store: discarding malformed persisted basket")
		s.current = domain.NewBasket(s.defaultID)
		s.gen++
		s.persistLocked(ctx)
		s.publishLocked()
		return
	}
	s.current = b
	s.gen++
	s.publishLocked()
}

// AddItem increments the quantity of an existing line by one, or appends the
// candidate as a new line with quantity 1. Candidates without an id or with a
// price outside [0, MaxPrice] are ignored, as is an add to a line already at
// MaxQuantity.
func (s *Store) AddItem(ctx context.Context, candidate domain.BasketItem) (domain.CustomerBasket, bool) {
	if candidate.ID == 0 || candidate.Price < 0 || candidate.Price > domain.MaxPrice {
		return s.Snapshot(), false
	}
	return s.mutate(ctx, func(cur domain.CustomerBasket) (domain.CustomerBasket, bool) {
		next := cur.Clone()
		if next.Items == nil {
			next.Items = []domain.BasketItem{}
		}
		if i := next.IndexOf(candidate.ID); i >= 0 {
			if next.Items[i].Quantity >= domain.MaxQuantity {
				return cur, false
			}
			next.Items[i].Quantity++
			return next, true
		}
		next.Items = append(next.Items, domain.BasketItem{
			ID:          candidate.ID,
			ProductID:   candidate.ProductID,
			ProductName: candidate.ProductName,
			PictureURL:  candidate.PictureURL,
			Price:       candidate.Price,
			Brand:       candidate.Brand,
			Type:        candidate.Type,
			Quantity:    1,
		})
		return next, true
	})
}

// RemoveItem deletes the line with the given id. Unknown ids are a no-op.
func (s *Store) RemoveItem(ctx context.Context, id int) (domain.CustomerBasket, bool) {
	return s.mutate(ctx, func(cur domain.CustomerBasket) (domain.CustomerBasket, bool) {
		i := cur.IndexOf(id)
		if i < 0 {
			return cur, false
		}
		return withoutIndex(cur, i), true
	})
}

// SetQuantity sets the quantity of the line with the given id. A quantity of
// zero or less removes the line; one above MaxQuantity is rejected.
func (s *Store) SetQuantity(ctx context.Context, id, qty int) (domain.CustomerBasket, bool) {
	return s.mutate(ctx, func(cur domain.CustomerBasket) (domain.CustomerBasket, bool) {
		i := cur.IndexOf(id)
		if i < 0 || qty > domain.MaxQuantity {
			return cur, false
		}
		if qty <= 0 {
			return withoutIndex(cur, i), true
		}
		if cur.Items[i].Quantity == qty {
			return cur, false
		}
		next := cur.Clone()
		next.Items[i].Quantity = qty
		return next, true
	})
}

// Clear resets the basket to the empty default basket.
func (s *Store) Clear(ctx context.Context) (domain.CustomerBasket, bool) {
	return s.mutate(ctx, func(domain.CustomerBasket) (domain.CustomerBasket, bool) {
		return domain.NewBasket(s.defaultID), true
	})
}

// Replace adopts b wholesale. Baskets failing validation are rejected.
func (s *Store) Replace(ctx context.Context, b domain.CustomerBasket) bool {
	if err := Validate(b); err != nil {
		s.logger.WithError(err).Warn("cart store: rejecting replacement basket")
		return false
	}
	_, changed := s.mutate(ctx, func(domain.CustomerBasket) (domain.CustomerBasket, bool) {
		return b.Clone(), true
	})
	return changed
}

// Snapshot returns a copy of the current basket.
func (s *Store) Snapshot() domain.CustomerBasket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

func (s *Store) Items() []domain.BasketItem {
	return s.Snapshot().Items
}

func (s *Store) ItemCount() int {
	return s.Snapshot().ItemCount()
}

func (s *Store) Total() domain.Money {
	return s.Snapshot().Total()
}

// Generation increases with every change of the basket.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// BasketID returns the current basket id, falling back to the default id.
func (s *Store) BasketID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.ID == "" {
		return s.defaultID
	}
	return s.current.ID
}

// Subscribe returns a channel that immediately yields the current basket and
// then the latest basket after each change. Slow readers only ever see the
// most recent value. The channel is closed by cancel or by Close.
func (s *Store) Subscribe() (<-chan domain.CustomerBasket, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan domain.CustomerBasket, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.current.Clone()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close drops all subscribers and turns further mutations into no-ops.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) mutate(ctx context.Context, fn func(domain.CustomerBasket) (domain.CustomerBasket, bool)) (domain.CustomerBasket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.Durable() {
		return s.current.Clone(), false
	}
	next, changed := fn(s.current)
	if !changed {
		return s.current.Clone(), false
	}
	s.current = next
	s.gen++
	s.persistLocked(ctx)
	s.publishLocked()
	return next.Clone(), true
}

func (s *Store) persistLocked(ctx context.Context) {
	if err := checkShape(s.current); err != nil {
		s.logger.WithError(err).Debug("cart store: skip persisting basket")
		return
	}
	raw, err := json.Marshal(s.current)
	if err != nil {
		s.logger.WithError(err).Error("cart store: encode basket")
		return
	}
	if err := s.repo.Set(ctx, StorageKey, string(raw)); err != nil {
		s.logger.WithError(err).WithField("basket_id", s.current.ID).Warn("cart store: persist basket")
	}
}

func (s *Store) publishLocked() {
	for _, ch := range s.subs {
		offer(ch, s.current.Clone())
	}
}

// offer replaces whatever is buffered in ch with v. Only the store sends on
// subscriber channels, and always under s.mu, so the second send never blocks.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

func withoutIndex(b domain.CustomerBasket, i int) domain.CustomerBasket {
	items := make([]domain.BasketItem, 0, len(b.Items)-1)
	items = append(items, b.Items[:i]...)
	items = append(items, b.Items[i+1:]...)
	return domain.CustomerBasket{ID: b.ID, Items: items}
}
