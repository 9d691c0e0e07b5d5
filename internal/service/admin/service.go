package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/validation"
)

var (
	ErrLoginRequired = fmt.Errorf("%w: please log in", domain.ErrUnauthorized)
	ErrAdminRequired = fmt.Errorf("%w: administrator access required", domain.ErrForbidden)
	ErrBrandAndType  = domain.Invalid("Please select both a brand and a type")
)

// statusTag lists the order statuses an administrator may set.
var statusTag = "oneof=" + strings.Join([]string{
	domain.OrderStatusPending,
	domain.OrderStatusProcessing,
	domain.OrderStatusShipped,
	domain.OrderStatusDelivered,
	domain.OrderStatusCancelled,
}, " ")

type adminAPI interface {
	VerifyAdmin(ctx context.Context, token string) error
	Stats(ctx context.Context, token string) (domain.DashboardStats, error)
	Brands(ctx context.Context, token string) ([]domain.ProductBrand, error)
	Types(ctx context.Context, token string) ([]domain.ProductType, error)
	AllProducts(ctx context.Context, token string) ([]domain.Product, error)
	SaveProduct(ctx context.Context, token string, form backend.ProductForm) error
	DeleteProduct(ctx context.Context, token string, id int) error
	Orders(ctx context.Context, token string) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, token string, id int, status string) error
}

// Identity is the caller as seen by the admin console.
type Identity interface {
	Token(ctx context.Context) string
	IsAdmin(ctx context.Context) bool
}

type Service struct {
	api    adminAPI
	logger *logrus.Logger
}

func New(api adminAPI, logger *logrus.Logger) *Service {
	return &Service{api: api, logger: logging.OrDiscard(logger)}
}

func (s *Service) authorize(ctx context.Context, who Identity) (string, error) {
	token := who.Token(ctx)
	if token == "" {
		return "", ErrLoginRequired
	}
	if !who.IsAdmin(ctx) {
		return "", ErrAdminRequired
	}
	return token, nil
}

// Verify asks the backend to confirm the caller's admin role.
func (s *Service) Verify(ctx context.Context, who Identity) error {
	token, err := s.authorize(ctx, who)
	if err != nil {
		return err
	}
	if err := s.api.VerifyAdmin(ctx, token); err != nil {
		return fmt.Errorf("verify admin: %w", err)
	}
	return nil
}

func (s *Service) Stats(ctx context.Context, who Identity) (domain.DashboardStats, error) {
	token, err := s.authorize(ctx, who)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	stats, err := s.api.Stats(ctx, token)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	return stats, nil
}

// Catalog is what the product console shows: the pick lists and every product.
type Catalog struct {
	Brands   []domain.ProductBrand `json:"brands"`
	Types    []domain.ProductType  `json:"types"`
	Products []domain.Product      `json:"products"`
}

// Catalog fetches brands, types and products concurrently. Any failure fails
// the whole call.
func (s *Service) Catalog(ctx context.Context, who Identity) (Catalog, error) {
	token, err := s.authorize(ctx, who)
	if err != nil {
		return Catalog{}, err
	}

	var out Catalog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		brands, err := s.api.Brands(gctx, token)
		if err != nil {
			return fmt.Errorf("brands: %w", err)
		}
		out.Brands = brands
		return nil
	})
	g.Go(func() error {
		types, err := s.api.Types(gctx, token)
		if err != nil {
			return fmt.Errorf("types: %w", err)
		}
		out.Types = types
		return nil
	})
	g.Go(func() error {
		products, err := s.api.AllProducts(gctx, token)
		if err != nil {
			return fmt.Errorf("products: %w", err)
		}
		out.Products = products
		return nil
	})
	if err := g.Wait(); err != nil {
		return Catalog{}, err
	}

	if out.Brands == nil {
		out.Brands = []domain.ProductBrand{}
	}
	if out.Types == nil {
		out.Types = []domain.ProductType{}
	}
	if out.Products == nil {
		out.Products = []domain.Product{}
	}
	return out, nil
}

// ProductInput is a create (ID 0) or update of a product.
type ProductInput struct {
	ID             int             `json:"id"`
	Name           string          `json:"name" validate:"required"`
	Description    string          `json:"description"`
	Price          domain.Money    `json:"price" validate:"gte=0"`
	ProductBrandID int             `json:"productBrandId"`
	ProductTypeID  int             `json:"productTypeId"`
	Quantity       int             `json:"quantity" validate:"gte=0"`
	Picture        *backend.Upload `json:"-"`
}

func (s *Service) SaveProduct(ctx context.Context, who Identity, in ProductInput) error {
	token, err := s.authorize(ctx, who)
	if err != nil {
		return err
	}
	if in.ProductBrandID <= 0 || in.ProductTypeID <= 0 {
		return ErrBrandAndType
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return err
	}
	err = s.api.SaveProduct(ctx, token, backend.ProductForm{
		ID:             in.ID,
		Name:           in.Name,
		Description:    in.Description,
		Price:          in.Price,
		ProductBrandID: in.ProductBrandID,
		ProductTypeID:  in.ProductTypeID,
		Quantity:       in.Quantity,
		Picture:        in.Picture,
	})
	if err != nil {
		return fmt.Errorf("save product: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"product_id": in.ID, "name": in.Name}).Info("product saved")
	return nil
}

func (s *Service) DeleteProduct(ctx context.Context, who Identity, id int) error {
	token, err := s.authorize(ctx, who)
	if err != nil {
		return err
	}
	if err := s.api.DeleteProduct(ctx, token, id); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	s.logger.WithField("product_id", id).Info("product deleted")
	return nil
}

func (s *Service) Orders(ctx context.Context, who Identity) ([]domain.Order, error) {
	token, err := s.authorize(ctx, who)
	if err != nil {
		return nil, err
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

func (s *Service) UpdateOrderStatus(ctx context.Context, who Identity, id int, status string) error {
	token, err := s.authorize(ctx, who)
	if err != nil {
		return err
	}
	if err := validation.Var(status, "required,"+statusTag, "status"); err != nil {
		return err
	}
	if err := s.api.UpdateOrderStatus(ctx, token, id, status); err != nil {
		return fmt.Errorf("update order %d: %w", id, err)
	}
	s.logger.WithFields(logrus.Fields{"order_id": id, "status": status}).Info("order status updated")
	return nil
}
