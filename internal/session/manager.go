package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"storefront/internal/cart"
	"storefront/internal/logging"
	"storefront/internal/repository/blob"
)

// Session is the per-visitor state: credentials and cart.
type Session struct {
	ID          string
	Credentials *Credentials
	Cart        *cart.Facade

	start    sync.Once
	lastSeen time.Time
}

// Options tunes a Manager.
type Options struct {
	// SyncTimeout bounds every basket call made by a session's mirror.
	SyncTimeout time.Duration
	// Durable selects a persisting cart store. Without it carts are read-only
	// empty baskets.
	Durable bool
	// IdleTimeout is how long a session may go unused before Sweep evicts it.
	// Zero keeps sessions until logout or Close.
	IdleTimeout time.Duration
}

// Manager owns the live sessions of the process.
type Manager struct {
	repo   blob.Repository
	api    cart.BasketAPI
	opts   Options
	logger *logrus.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(repo blob.Repository, api cart.BasketAPI, opts Options, logger *logrus.Logger) *Manager {
	return &Manager{
		repo:     repo,
		api:      api,
		opts:     opts,
		logger:   logging.OrDiscard(logger),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// DefaultBasketID is the basket id a fresh session starts with.
func DefaultBasketID(sessionID string) string {
	return "basket-" + sessionID
}

// Get returns the session with the given id, creating and starting it on
// first use. Starting loads the persisted cart and reconciles it with the
// backend; it is not cut short when the triggering request goes away.
func (m *Manager) Get(ctx context.Context, id string) *Session {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		s = m.build(id)
		m.sessions[id] = s
	}
	s.lastSeen = m.now()
	m.mu.Unlock()

	s.start.Do(func() {
		s.Cart.Start(context.WithoutCancel(ctx))
		m.logger.WithFields(logrus.Fields{
			"session":   id,
			"basket_id": s.Cart.BasketID(),
			"items":     s.Cart.Count(),
		}).Debug("session started")
	})
	return s
}

func (m *Manager) build(id string) *Session {
	scoped := blob.Scoped(m.repo, "session:"+id)
	creds := NewCredentials(scoped)

	var storeRepo blob.Repository
	if m.opts.Durable {
		storeRepo = scoped
	}
	store := cart.NewStore(storeRepo, DefaultBasketID(id), nil, m.logger)
	mirror := cart.NewMirror(m.api, creds, m.opts.SyncTimeout, m.logger)
	return &Session{ID: id, Credentials: creds, Cart: cart.NewFacade(store, mirror)}
}

// Teardown ends a session on logout: pending cart sync is flushed, the local
// cart is reset, credentials are removed and the session is forgotten.
func (m *Manager) Teardown(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return NewCredentials(blob.Scoped(m.repo, "session:"+id)).Clear(ctx)
	}
	cartErr := s.Cart.Discard(ctx)
	if cartErr != nil {
		m.logger.WithError(cartErr).WithField("session", id).Warn("session teardown: cart sync not drained")
	}
	return errors.Join(cartErr, s.Credentials.Clear(ctx))
}

// Sweep evicts sessions unused for longer than IdleTimeout. Their cart sync is
// drained and their persisted cart and credentials are kept, so a later Get
// resumes them. It returns the number of evicted sessions.
func (m *Manager) Sweep(ctx context.Context) int {
	if m.opts.IdleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.opts.IdleTimeout)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		if err := s.Cart.Close(ctx); err != nil {
			m.logger.WithError(err).WithField("session", s.ID).Warn("session evict: cart sync not drained")
		}
	}
	if len(idle) > 0 {
		m.logger.WithField("evicted", len(idle)).Debug("idle sessions evicted")
	}
	return len(idle)
}

// Run calls Sweep every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if m.opts.IdleTimeout <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close drains every session's cart sync. Persisted carts and credentials are
// kept so sessions resume after a restart.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Cart.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
