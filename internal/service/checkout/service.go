package checkout

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/validation"
)

var (
	ErrLoginRequired         = fmt.Errorf("%w: please log in to place an order", domain.ErrUnauthorized)
	ErrEmptyCart             = domain.Invalid("Your cart is empty")
	ErrNoBasket              = domain.Invalid("No valid basket found. Please try refreshing the page.")
	ErrUnknownDeliveryMethod = domain.Invalid("Please select a delivery method.")
)

type orderAPI interface {
	DeliveryMethods(ctx context.Context) ([]domain.DeliveryMethod, error)
	CreateOrder(ctx context.Context, token string, req domain.OrderRequest) (domain.Order, error)
	Orders(ctx context.Context, token string) ([]domain.Order, error)
}

// Identity yields the caller's auth token.
type Identity interface {
	Token(ctx context.Context) string
}

// Cart is the part of the session cart checkout needs.
type Cart interface {
	Snapshot() domain.CustomerBasket
	Flush(ctx context.Context) error
	Clear(ctx context.Context) cart.Summary
}

type Service struct {
	api    orderAPI
	logger *logrus.Logger
}

func New(api orderAPI, logger *logrus.Logger) *Service {
	return &Service{api: api, logger: logging.OrDiscard(logger)}
}

func (s *Service) DeliveryMethods(ctx context.Context) ([]domain.DeliveryMethod, error) {
	methods, err := s.api.DeliveryMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("delivery methods: %w", err)
	}
	if methods == nil {
		methods = []domain.DeliveryMethod{}
	}
	return methods, nil
}

// Quote is the cart subtotal plus the chosen delivery cost.
type Quote struct {
	Subtotal       domain.Money           `json:"subtotal"`
	Shipping       domain.Money           `json:"shipping"`
	Total          domain.Money           `json:"total"`
	DeliveryMethod *domain.DeliveryMethod `json:"deliveryMethod,omitempty"`
}

// Quote prices the cart. methodID 0 quotes without delivery.
func (s *Service) Quote(ctx context.Context, c Cart, methodID int) (Quote, error) {
	q := Quote{Subtotal: c.Snapshot().Total()}
	if methodID != 0 {
		m, err := s.method(ctx, methodID)
		if err != nil {
			return Quote{}, err
		}
		q.DeliveryMethod = &m
		q.Shipping = m.Cost
	}
	q.Total = q.Subtotal + q.Shipping
	return q, nil
}

type PlaceOrderInput struct {
	DeliveryMethodID int                    `json:"deliveryMethodId"`
	ShippingAddress  domain.ShippingAddress `json:"shippingAddress"`
}

// PlaceOrder turns the session's basket into an order. The cart is cleared
// once the backend accepts the order.
func (s *Service) PlaceOrder(ctx context.Context, who Identity, c Cart, in PlaceOrderInput) (domain.Order, error) {
	token := who.Token(ctx)
	if token == "" {
		return domain.Order{}, ErrLoginRequired
	}
	basket := c.Snapshot()
	if len(basket.Items) == 0 {
		return domain.Order{}, ErrEmptyCart
	}
	if err := validation.Struct(in.ShippingAddress); err != nil {
		return domain.Order{}, err
	}
	if basket.ID == "" {
		return domain.Order{}, ErrNoBasket
	}
	method, err := s.method(ctx, in.DeliveryMethodID)
	if err != nil {
		return domain.Order{}, err
	}

	// The backend builds the order from its copy of the basket.
	if err := c.Flush(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("sync basket: %w", err)
	}

	order, err := s.api.CreateOrder(ctx, token, domain.OrderRequest{
		BasketID:         basket.ID,
		DeliveryMethodID: method.ID,
		ShippingAddress:  in.ShippingAddress,
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	c.Clear(ctx)

	s.logger.WithFields(logrus.Fields{
		"order_id":  order.ID,
		"basket_id": basket.ID,
		"total":     order.Total.String(),
	}).Info("order placed")
	return order, nil
}

// Orders lists the caller's orders.
func (s *Service) Orders(ctx context.Context, who Identity) ([]domain.Order, error) {
	token := who.Token(ctx)
	if token == "" {
		return nil, ErrLoginRequired
	}
	orders, err := s.api.Orders(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

func (s *Service) method(ctx context.Context, id int) (domain.DeliveryMethod, error) {
	methods, err := s.DeliveryMethods(ctx)
	if err != nil {
		return domain.DeliveryMethod{}, err
	}
	for _, m := range methods {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.DeliveryMethod{}, ErrUnknownDeliveryMethod
}
