package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"storefront/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBasketAPI struct {
	mu       sync.Mutex
	remote   map[string]domain.CustomerBasket
	getErr   error
	pushErr  error
	gets     int
	pushes   []domain.CustomerBasket
	deletes  []string
	tokens   []string
	blockOne bool
	entered  chan struct{}
	release  chan struct{}

	// holdGet parks GetBasket until getRelease is closed.
	holdGet    bool
	getEntered chan struct{}
	getRelease chan struct{}
}

func newFakeBasketAPI() *fakeBasketAPI {
	return &fakeBasketAPI{
		remote:     map[string]domain.CustomerBasket{},
		entered:    make(chan struct{}, 1),
		release:    make(chan struct{}),
		getEntered: make(chan struct{}, 1),
		getRelease: make(chan struct{}),
	}
}

func (f *fakeBasketAPI) GetBasket(ctx context.Context, token, id string) (domain.CustomerBasket, error) {
	f.mu.Lock()
	hold := f.holdGet
	f.mu.Unlock()
	if hold {
		f.getEntered <- struct{}{}
		select {
		case <-f.getRelease:
		case <-ctx.Done():
			return domain.CustomerBasket{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	f.tokens = append(f.tokens, token)
	if f.getErr != nil {
		return domain.CustomerBasket{}, f.getErr
	}
	b, ok := f.remote[id]
	if !ok {
		return domain.CustomerBasket{}, domain.ErrNotFound
	}
	return b.Clone(), nil
}

func (f *fakeBasketAPI) UpdateBasket(ctx context.Context, token string, b domain.CustomerBasket) (domain.CustomerBasket, error) {
	f.mu.Lock()
	f.pushes = append(f.pushes, b.Clone())
	f.tokens = append(f.tokens, token)
	block := f.blockOne
	f.blockOne = false
	err := f.pushErr
	f.mu.Unlock()

	if block {
		f.entered <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return domain.CustomerBasket{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.CustomerBasket{}, err
	}
	f.mu.Lock()
	f.remote[b.ID] = b.Clone()
	f.mu.Unlock()
	return b, nil
}

func (f *fakeBasketAPI) DeleteBasket(_ context.Context, token, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	f.tokens = append(f.tokens, token)
	delete(f.remote, id)
	return nil
}

func (f *fakeBasketAPI) pushed() []domain.CustomerBasket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.CustomerBasket(nil), f.pushes...)
}

func (f *fakeBasketAPI) deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

func staticToken(tok string) TokenSource {
	return TokenFunc(func(context.Context) string { return tok })
}

func basketWith(id string, qty int) domain.CustomerBasket {
	return domain.CustomerBasket{ID: id, Items: []domain.BasketItem{{ID: 1, Price: 100, Quantity: qty}}}
}

func closeMirror(t *testing.T, m *Mirror) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))
}

func TestMirrorPushSendsToken(t *testing.T) {
	api := newFakeBasketAPI()
	m := NewMirror(api, staticToken("jwt-1"), time.Second, nil)
	defer closeMirror(t, m)

	m.Push(context.Background(), basketWith("b1", 2))
	require.NoError(t, m.Flush(context.Background()))

	require.Len(t, api.pushed(), 1)
	require.Equal(t, basketWith("b1", 2), api.pushed()[0])
	require.Equal(t, []string{"jwt-1"}, api.tokens)
}

func TestMirrorWithoutTokenMakesNoCalls(t *testing.T) {
	api := newFakeBasketAPI()
	m := NewMirror(api, staticToken(""), time.Second, nil)
	defer closeMirror(t, m)

	ctx := context.Background()
	m.Push(ctx, basketWith("b1", 1))
	m.Delete(ctx, "b1")
	_, ok := m.Pull(ctx, "b1")
	require.False(t, ok)
	require.NoError(t, m.Flush(ctx))

	require.Empty(t, api.pushed())
	require.Empty(t, api.deleted())
	require.Zero(t, api.gets)
}

func TestMirrorShapeCheckBlocksPush(t *testing.T) {
	api := newFakeBasketAPI()
	m := NewMirror(api, staticToken("jwt"), time.Second, nil)
	defer closeMirror(t, m)

	ctx := context.Background()
	m.Push(ctx, domain.CustomerBasket{ID: "", Items: []domain.BasketItem{}})
	m.Push(ctx, domain.CustomerBasket{ID: "b1"})
	require.NoError(t, m.Flush(ctx))
	require.Empty(t, api.pushed())
}

func TestMirrorNewerPushSupersedesPending(t *testing.T) {
	api := newFakeBasketAPI()
	api.blockOne = true
	m := NewMirror(api, staticToken("jwt"), time.Second, nil)
	defer closeMirror(t, m)

	ctx := context.Background()
	m.Push(ctx, basketWith("b1", 1))
	<-api.entered

	m.Push(ctx, basketWith("b1", 2))
	m.Push(ctx, basketWith("other", 5))
	m.Push(ctx, basketWith("b1", 3))
	close(api.release)
	require.NoError(t, m.Flush(ctx))

	got := api.pushed()
	require.Len(t, got, 3)
	require.Equal(t, 1, got[0].Items[0].Quantity)
	require.Equal(t, "other", got[1].ID)
	require.Equal(t, 3, got[2].Items[0].Quantity)
	require.Equal(t, basketWith("b1", 3), api.remote["b1"])
}

func TestMirrorDeleteSupersedesPendingPush(t *testing.T) {
	api := newFakeBasketAPI()
	api.blockOne = true
	m := NewMirror(api, staticToken("jwt"), time.Second, nil)
	defer closeMirror(t, m)

	ctx := context.Background()
	m.Push(ctx, basketWith("seed", 1))
	<-api.entered

	m.Push(ctx, basketWith("b1", 4))
	m.Delete(ctx, "b1")
	close(api.release)
	require.NoError(t, m.Flush(ctx))

	require.Len(t, api.pushed(), 1)
	require.Equal(t, []string{"b1"}, api.deleted())
}

func TestMirrorFailureDoesNotStopWorker(t *testing.T) {
	api := newFakeBasketAPI()
	api.pushErr = errors.New("backend down")
	m := NewMirror(api, staticToken("jwt"), time.Second, nil)
	defer closeMirror(t, m)

	ctx := context.Background()
	m.Push(ctx, basketWith("b1", 1))
	require.NoError(t, m.Flush(ctx))

	api.mu.Lock()
	api.pushErr = nil
	api.mu.Unlock()
	m.Push(ctx, basketWith("b1", 2))
	require.NoError(t, m.Flush(ctx))

	require.Len(t, api.pushed(), 2)
	require.Equal(t, basketWith("b1", 2), api.remote["b1"])
}

func TestMirrorPull(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		api := newFakeBasketAPI()
		m := NewMirror(api, staticToken("jwt"), time.Second, nil)
		defer closeMirror(t, m)
		_, ok := m.Pull(ctx, "b1")
		require.False(t, ok)
		require.Equal(t, 1, api.gets)
	})

	t.Run("transport error", func(t *testing.T) {
		api := newFakeBasketAPI()
		api.getErr = errors.New("connection refused")
		m := NewMirror(api, staticToken("jwt"), time.Second, nil)
		defer closeMirror(t, m)
		_, ok := m.Pull(ctx, "b1")
		require.False(t, ok)
	})

	t.Run("invalid remote", func(t *testing.T) {
		api := newFakeBasketAPI()
		api.remote["b1"] = domain.CustomerBasket{ID: "b1", Items: []domain.BasketItem{{ID: 0, Quantity: 1}}}
		m := NewMirror(api, staticToken("jwt"), time.Second, nil)
		defer closeMirror(t, m)
		_, ok := m.Pull(ctx, "b1")
		require.False(t, ok)
	})

	t.Run("valid remote", func(t *testing.T) {
		api := newFakeBasketAPI()
		api.remote["b1"] = basketWith("b1", 3)
		m := NewMirror(api, staticToken("jwt"), time.Second, nil)
		defer closeMirror(t, m)
		got, ok := m.Pull(ctx, "b1")
		require.True(t, ok)
		require.Equal(t, basketWith("b1", 3), got)
	})
}

func TestMirrorCloseDrainsQueue(t *testing.T) {
	api := newFakeBasketAPI()
	m := NewMirror(api, staticToken("jwt"), time.Second, nil)

	ctx := context.Background()
	m.Push(ctx, basketWith("b1", 1))
	m.Delete(ctx, "b2")
	require.NoError(t, m.Close(ctx))

	require.Len(t, api.pushed(), 1)
	require.Equal(t, []string{"b2"}, api.deleted())

	m.Push(ctx, basketWith("b1", 9))
	require.NoError(t, m.Flush(ctx))
	require.Len(t, api.pushed(), 1, "closed mirror accepts nothing")
	require.NoError(t, m.Close(ctx))
}

func TestMirrorCloseDeadlineCancelsInFlight(t *testing.T) {
	api := newFakeBasketAPI()
	api.blockOne = true
	m := NewMirror(api, staticToken("jwt"), 0, nil)

	m.Push(context.Background(), basketWith("b1", 1))
	<-api.entered
	m.Push(context.Background(), basketWith("b2", 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Close(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, api.pushed(), 1, "queued push dropped after cancel")
}
