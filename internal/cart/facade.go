package cart

import (
	"context"
	"sync"

	"storefront/internal/domain"
)

// Summary is the derived view of a basket handed to the UI layer.
type Summary struct {
	BasketID string              `json:"basketId"`
	Count    int                 `json:"count"`
	Subtotal domain.Money        `json:"subtotal"`
	Items    []domain.BasketItem `json:"items"`
}

// Summarize derives a Summary from b.
func Summarize(b domain.CustomerBasket) Summary {
	items := b.Clone().Items
	if items == nil {
		items = []domain.BasketItem{}
	}
	return Summary{
		BasketID: b.ID,
		Count:    b.ItemCount(),
		Subtotal: b.Total(),
		Items:    items,
	}
}

// Facade is the cart surface used by the rest of the application. It applies
// mutations to the Store and forwards every effective change to the Mirror.
type Facade struct {
	// mu keeps the order of enqueued mirror operations equal to the order of
	// local mutations.
	mu     sync.Mutex
	store  *Store
	mirror *Mirror
}

// NewFacade composes store and mirror. mirror may be nil, in which case the
// cart is local only.
func NewFacade(store *Store, mirror *Mirror) *Facade {
	return &Facade{store: store, mirror: mirror}
}

// Start loads the persisted basket and then reconciles it with the backend.
func (f *Facade) Start(ctx context.Context) {
	f.store.Load(ctx)
	f.Refresh(ctx)
}

// Refresh pulls the remote basket for the current id and adopts it when the
// backend has a valid one. Otherwise the local basket stays. Mutations are not
// held up by the pull; a basket changed locally while the pull was in flight
// keeps its local state.
func (f *Facade) Refresh(ctx context.Context) bool {
	if f.mirror == nil || !f.store.Durable() {
		return false
	}
	gen := f.store.Generation()
	remote, ok := f.mirror.Pull(ctx, f.store.BasketID())
	if !ok {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.store.Generation() != gen {
		return false
	}
	return f.store.Replace(ctx, remote)
}

func (f *Facade) Add(ctx context.Context, candidate domain.BasketItem) Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, changed := f.store.AddItem(ctx, candidate)
	f.pushIf(ctx, b, changed)
	return Summarize(b)
}

func (f *Facade) Remove(ctx context.Context, id int) Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, changed := f.store.RemoveItem(ctx, id)
	f.pushIf(ctx, b, changed)
	return Summarize(b)
}

func (f *Facade) SetQuantity(ctx context.Context, id, qty int) Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, changed := f.store.SetQuantity(ctx, id, qty)
	f.pushIf(ctx, b, changed)
	return Summarize(b)
}

func (f *Facade) pushIf(ctx context.Context, b domain.CustomerBasket, changed bool) {
	if changed && f.mirror != nil {
		f.mirror.Push(ctx, b)
	}
}

// Clear empties the local basket and deletes the remote copy of the basket
// that was current before the call.
func (f *Facade) Clear(ctx context.Context) Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.store.BasketID()
	b, changed := f.store.Clear(ctx)
	if changed && f.mirror != nil {
		f.mirror.Delete(ctx, prev)
	}
	return Summarize(b)
}

func (f *Facade) Items() []domain.BasketItem { return f.store.Items() }

func (f *Facade) Count() int { return f.store.ItemCount() }

func (f *Facade) Subtotal() domain.Money { return f.store.Total() }

func (f *Facade) BasketID() string { return f.store.BasketID() }

func (f *Facade) Snapshot() domain.CustomerBasket { return f.store.Snapshot() }

func (f *Facade) Summary() Summary { return Summarize(f.store.Snapshot()) }

// Watch streams summaries: the current one first, then one per change, with
// slow readers seeing only the latest. The channel closes after cancel, Close
// or Discard.
func (f *Facade) Watch() (<-chan Summary, func()) {
	src, cancel := f.store.Subscribe()
	out := make(chan Summary, 1)
	go func() {
		defer close(out)
		for b := range src {
			offer(out, Summarize(b))
		}
	}()
	return out, cancel
}

// Flush waits for queued backend operations to complete.
func (f *Facade) Flush(ctx context.Context) error {
	if f.mirror == nil {
		return nil
	}
	return f.mirror.Flush(ctx)
}

// Close drains the mirror and releases subscribers. The persisted basket is
// kept.
func (f *Facade) Close(ctx context.Context) error {
	var err error
	if f.mirror != nil {
		err = f.mirror.Close(ctx)
	}
	f.store.Close()
	return err
}

// Discard tears the cart down on logout: pending backend work is flushed, the
// local basket is reset without touching the remote copy, and subscribers are
// released.
func (f *Facade) Discard(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if f.mirror != nil {
		err = f.mirror.Close(ctx)
	}
	f.store.Clear(ctx)
	f.store.Close()
	return err
}
