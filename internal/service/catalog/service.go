package catalog

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/backend"
	"storefront/internal/cart"
	"storefront/internal/domain"
)

const (
	DefaultPageSize = 5
	MaxPageSize     = 50
)

// ErrLoginRequired is returned when an anonymous visitor adds to the cart.
var ErrLoginRequired = fmt.Errorf("%w: please log in to add items to your cart", domain.ErrUnauthorized)

type productAPI interface {
	Products(ctx context.Context, q backend.ProductQuery) (domain.Pagination[domain.Product], error)
	Product(ctx context.Context, id int) (domain.Product, error)
}

// Identity reports whether the caller is logged in.
type Identity interface {
	IsLoggedIn(ctx context.Context) bool
}

// Cart receives products added from the catalog.
type Cart interface {
	Add(ctx context.Context, candidate domain.BasketItem) cart.Summary
}

type Service struct {
	api productAPI
}

func New(api productAPI) *Service {
	return &Service{api: api}
}

type Query struct {
	PageIndex int    `form:"pageIndex"`
	PageSize  int    `form:"pageSize"`
	Search    string `form:"search"`
}

// Page is one page of the product list with its pager.
type Page struct {
	Products   []domain.Product `json:"products"`
	PageIndex  int              `json:"pageIndex"`
	PageSize   int              `json:"pageSize"`
	Count      int              `json:"count"`
	TotalPages int              `json:"totalPages"`
	Pages      []int            `json:"pages"`
}

func (q Query) normalize() Query {
	if q.PageIndex < 1 {
		q.PageIndex = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

func (s *Service) List(ctx context.Context, q Query) (Page, error) {
	q = q.normalize()
	res, err := s.api.Products(ctx, backend.ProductQuery{PageIndex: q.PageIndex, PageSize: q.PageSize, Search: q.Search})
	if err != nil {
		return Page{}, fmt.Errorf("list products: %w", err)
	}
	products := res.Data
	if products == nil {
		products = []domain.Product{}
	}
	total := TotalPages(res.Count, q.PageSize)
	pages := make([]int, total)
	for i := range pages {
		pages[i] = i + 1
	}
	return Page{
		Products:   products,
		PageIndex:  q.PageIndex,
		PageSize:   q.PageSize,
		Count:      res.Count,
		TotalPages: total,
		Pages:      pages,
	}, nil
}

// TotalPages is ceil(count / pageSize).
func TotalPages(count, pageSize int) int {
	if count <= 0 || pageSize <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}

func (s *Service) Get(ctx context.Context, id int) (domain.Product, error) {
	if id <= 0 {
		return domain.Product{}, domain.ErrNotFound
	}
	return s.api.Product(ctx, id)
}

// AddToCart adds one unit of the product to c. Anonymous callers are refused.
func (s *Service) AddToCart(ctx context.Context, who Identity, c Cart, productID int) (cart.Summary, error) {
	if !who.IsLoggedIn(ctx) {
		return cart.Summary{}, ErrLoginRequired
	}
	p, err := s.Get(ctx, productID)
	if err != nil {
		return cart.Summary{}, err
	}
	return c.Add(ctx, Candidate(p)), nil
}

// Candidate maps a product to the basket line it becomes.
func Candidate(p domain.Product) domain.BasketItem {
	return domain.BasketItem{
		ID:          p.ID,
		ProductID:   p.ID,
		ProductName: p.Name,
		PictureURL:  p.Img,
		Price:       p.Price,
		Brand:       p.ProductBrand,
		Type:        p.ProductType,
		Quantity:    1,
	}
}
