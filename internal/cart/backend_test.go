package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/repository/blob"
)

// basketServer is a minimal in-memory stand-in for the backend basket API.
type basketServer struct {
	mu      sync.Mutex
	baskets map[string]string
}

func (s *basketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/baskets/"):
		raw, ok := s.baskets[strings.TrimPrefix(r.URL.Path, "/api/baskets/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(raw))
	case r.Method == http.MethodPost && r.URL.Path == "/api/baskets":
		var b domain.CustomerBasket
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		raw, _ := json.Marshal(b)
		s.baskets[b.ID] = string(raw)
		_, _ = w.Write(raw)
	case r.Method == http.MethodDelete && r.URL.Path == "/api/baskets":
		delete(s.baskets, r.URL.Query().Get("id"))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newBackendFacade(t *testing.T, srv *basketServer) (*Facade, blob.Repository) {
	t.Helper()
	ts := httptest.NewServer(srv)
	repo := blob.NewMemory()
	client := backend.New(ts.URL+"/api", ts.Client(), nil)
	f := NewFacade(NewStore(repo, "basket-s1", nil, nil), NewMirror(client, staticToken("jwt"), time.Second, nil))
	t.Cleanup(func() {
		_ = f.Close(context.Background())
		ts.Close()
	})
	return f, repo
}

func TestBackendPullNotFoundRetainsLocal(t *testing.T) {
	ctx := context.Background()
	f, repo := newBackendFacade(t, &basketServer{baskets: map[string]string{}})
	local := domain.CustomerBasket{ID: "basket-s1", Items: []domain.BasketItem{{ID: 4, Price: 700, Quantity: 2}}}
	raw, _ := json.Marshal(local)
	require.NoError(t, repo.Set(ctx, StorageKey, string(raw)))

	f.Start(ctx)

	require.Equal(t, local, f.Snapshot())
}

func TestBackendPullReplacesAndPersistsExactly(t *testing.T) {
	ctx := context.Background()
	remote := `{"id":"basket-s1","items":[` +
		`{"id":1,"productName":"A","pictureUrl":"a.png","price":10,"brand":"Acme","type":"Tool","quantity":2},` +
		`{"id":2,"productName":"B","pictureUrl":"b.png","price":5.5,"brand":"Acme","type":"Tool","quantity":1}]}`
	f, repo := newBackendFacade(t, &basketServer{baskets: map[string]string{"basket-s1": remote}})

	f.Start(ctx)

	require.Equal(t, 3, f.Count())
	require.Equal(t, domain.NewMoney(25.5), f.Subtotal())
	stored, err := repo.Get(ctx, StorageKey)
	require.NoError(t, err)
	require.JSONEq(t, remote, stored)
}

func TestBackendMutationsReachServer(t *testing.T) {
	ctx := context.Background()
	srv := &basketServer{baskets: map[string]string{}}
	f, _ := newBackendFacade(t, srv)

	f.Add(ctx, domain.BasketItem{ID: 1, ProductName: "A", Price: 1000})
	f.Add(ctx, domain.BasketItem{ID: 1, ProductName: "A", Price: 1000})
	require.NoError(t, f.Flush(ctx))

	srv.mu.Lock()
	got, err := Decode([]byte(srv.baskets["basket-s1"]))
	srv.mu.Unlock()
	require.NoError(t, err)
	require.Equal(t, f.Snapshot(), got)

	f.Clear(ctx)
	require.NoError(t, f.Flush(ctx))
	srv.mu.Lock()
	_, exists := srv.baskets["basket-s1"]
	srv.mu.Unlock()
	require.False(t, exists)
}
