package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

// BasketAPI is the subset of the backend client the mirror needs.
type BasketAPI interface {
	GetBasket(ctx context.Context, token, id string) (domain.CustomerBasket, error)
	UpdateBasket(ctx context.Context, token string, basket domain.CustomerBasket) (domain.CustomerBasket, error)
	DeleteBasket(ctx context.Context, token, id string) error
}

// TokenSource yields the current auth token, or "" when there is none.
type TokenSource interface {
	Token(ctx context.Context) string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) string

func (f TokenFunc) Token(ctx context.Context) string { return f(ctx) }

type opKind int

const (
	opPush opKind = iota
	opDelete
	opBarrier
)

func (k opKind) String() string {
	switch k {
	case opPush:
		return "push"
	case opDelete:
		return "delete"
	default:
		return "barrier"
	}
}

type syncOp struct {
	kind     opKind
	version  uint64
	token    string
	basketID string
	basket   domain.CustomerBasket
	reached  chan struct{}
}

// Mirror keeps the backend copy of a basket in step with local changes.
//
// Pushes and deletes are queued and sent by a single worker goroutine in the
// order they were issued. Every operation carries a version; the worker never
// sends an operation older than one it already sent, and a newer operation for
// a basket id supersedes pending pushes for that id. Failures are logged, never
// retried and never surfaced to the caller.
type Mirror struct {
	api     BasketAPI
	tokens  TokenSource
	timeout time.Duration
	logger  *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	queue    []syncOp
	version  uint64
	lastSent uint64
	closed   bool

	wake      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewMirror starts the mirror's worker. timeout bounds each backend call; zero
// means no per-call bound. Call Close to stop the worker.
func NewMirror(api BasketAPI, tokens TokenSource, timeout time.Duration, logger *logrus.Logger) *Mirror {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Mirror{
		api:     api,
		tokens:  tokens,
		timeout: timeout,
		logger:  logging.OrDiscard(logger),
		ctx:     ctx,
		cancel:  cancel,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go m.run()
	return m
}

// Push schedules a remote upsert of basket. Baskets failing the shape check,
// or pushes without an auth token, are dropped without contacting the backend.
func (m *Mirror) Push(ctx context.Context, basket domain.CustomerBasket) {
	if err := checkShape(basket); err != nil {
		m.logger.WithError(err).Debug("cart mirror: skip push")
		return
	}
	token := m.tokens.Token(ctx)
	if token == "" {
		m.logger.WithField("basket_id", basket.ID).Debug("cart mirror: no token, push skipped")
		return
	}
	m.enqueue(syncOp{kind: opPush, token: token, basketID: basket.ID, basket: basket.Clone()})
}

// Delete schedules a remote delete of the basket with the given id.
func (m *Mirror) Delete(ctx context.Context, id string) {
	if id == "" {
		return
	}
	token := m.tokens.Token(ctx)
	if token == "" {
		m.logger.WithField("basket_id", id).Debug("cart mirror: no token, delete skipped")
		return
	}
	m.enqueue(syncOp{kind: opDelete, token: token, basketID: id})
}

// Pull fetches the remote basket with the given id. It reports false when
// there is no token, the backend has no such basket, the call fails, or the
// returned basket does not validate.
func (m *Mirror) Pull(ctx context.Context, id string) (domain.CustomerBasket, bool) {
	token := m.tokens.Token(ctx)
	if token == "" || id == "" {
		return domain.CustomerBasket{}, false
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()

	log := m.logger.WithField("basket_id", id)
	remote, err := m.api.GetBasket(ctx, token, id)
	if errors.Is(err, domain.ErrNotFound) {
		log.Debug("cart mirror: no remote basket")
		return domain.CustomerBasket{}, false
	}
	if err != nil {
		log.WithError(err).Error("cart mirror: pull failed")
		return domain.CustomerBasket{}, false
	}
	if err := Validate(remote); err != nil {
		log.WithError(err).Warn("cart mirror: rejecting remote basket")
		return domain.CustomerBasket{}, false
	}
	return remote, true
}

// Flush blocks until every operation queued before the call has been handled,
// or ctx is done.
func (m *Mirror) Flush(ctx context.Context) error {
	reached := make(chan struct{})
	if !m.enqueue(syncOp{kind: opBarrier, reached: reached}) {
		return nil
	}
	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting operations and waits for the worker to drain the
// queue. When ctx ends first, in-flight calls are cancelled, the remaining
// queue is dropped and ctx's error is returned.
func (m *Mirror) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.done)
	})

	var err error
	select {
	case <-m.stopped:
	case <-ctx.Done():
		err = ctx.Err()
		m.cancel()
		<-m.stopped
	}
	m.cancel()
	return err
}

func (m *Mirror) enqueue(op syncOp) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.version++
	op.version = m.version

	kept := make([]syncOp, 0, len(m.queue)+1)
	for _, pending := range m.queue {
		if op.kind != opBarrier && pending.kind == opPush && pending.basketID == op.basketID {
			m.logger.WithFields(logrus.Fields{
				"basket_id": pending.basketID,
				"version":   pending.version,
			}).Debug("cart mirror: superseded pending push")
			continue
		}
		kept = append(kept, pending)
	}
	m.queue = append(kept, op)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

func (m *Mirror) next() (syncOp, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return syncOp{}, false
	}
	op := m.queue[0]
	m.queue = m.queue[1:]
	return op, true
}

func (m *Mirror) run() {
	defer close(m.stopped)
	for {
		m.drain()
		select {
		case <-m.wake:
		case <-m.done:
			m.drain()
			m.releaseBarriers()
			return
		}
	}
}

func (m *Mirror) drain() {
	for {
		if m.ctx.Err() != nil {
			return
		}
		op, ok := m.next()
		if !ok {
			return
		}
		m.handle(op)
	}
}

// releaseBarriers unblocks Flush callers whose barrier was dropped because the
// mirror was cancelled.
func (m *Mirror) releaseBarriers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range m.queue {
		if op.kind == opBarrier {
			close(op.reached)
		}
	}
	m.queue = nil
}

func (m *Mirror) handle(op syncOp) {
	if op.kind == opBarrier {
		close(op.reached)
		return
	}

	log := m.logger.WithFields(logrus.Fields{
		"basket_id": op.basketID,
		"version":   op.version,
		"op":        op.kind.String(),
	})

	m.mu.Lock()
	stale := op.version <= m.lastSent
	if !stale {
		m.lastSent = op.version
	}
	m.mu.Unlock()
	if stale {
		log.Debug("cart mirror: stale operation dropped")
		return
	}

	ctx, cancel := m.callContext(m.ctx)
	defer cancel()

	switch op.kind {
	case opPush:
		stored, err := m.api.UpdateBasket(ctx, op.token, op.basket)
		if err != nil {
			log.WithError(err).Error("cart mirror: push failed")
			return
		}
		if err := Validate(stored); err != nil {
			log.WithError(err).Warn("cart mirror: backend echoed an unexpected basket")
			return
		}
		log.Debug("cart mirror: pushed")
	case opDelete:
		if err := m.api.DeleteBasket(ctx, op.token, op.basketID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.WithError(err).Error("cart mirror: delete failed")
			return
		}
		log.Debug("cart mirror: deleted")
	}
}

func (m *Mirror) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, m.timeout)
}
