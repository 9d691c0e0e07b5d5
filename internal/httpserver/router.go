package httpserver

import (
	"context"
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/repository/blob"
	"storefront/internal/service/account"
	"storefront/internal/service/admin"
	"storefront/internal/service/catalog"
	"storefront/internal/service/checkout"
	"storefront/internal/session"
)

type SessionStore interface {
	Get(ctx context.Context, id string) *session.Session
}

type CatalogService interface {
	List(ctx context.Context, q catalog.Query) (catalog.Page, error)
	Get(ctx context.Context, id int) (domain.Product, error)
	AddToCart(ctx context.Context, who catalog.Identity, c catalog.Cart, productID int) (cart.Summary, error)
}

type AccountService interface {
	Login(ctx context.Context, sessionID string, in account.LoginInput) (session.Identity, error)
	Register(ctx context.Context, in account.RegisterInput) (domain.User, error)
	Logout(ctx context.Context, sessionID string) error
	Me(ctx context.Context, sessionID string) session.Identity
}

type CheckoutService interface {
	DeliveryMethods(ctx context.Context) ([]domain.DeliveryMethod, error)
	Quote(ctx context.Context, c checkout.Cart, methodID int) (checkout.Quote, error)
	PlaceOrder(ctx context.Context, who checkout.Identity, c checkout.Cart, in checkout.PlaceOrderInput) (domain.Order, error)
	Orders(ctx context.Context, who checkout.Identity) ([]domain.Order, error)
}

type AdminService interface {
	Verify(ctx context.Context, who admin.Identity) error
	Stats(ctx context.Context, who admin.Identity) (domain.DashboardStats, error)
	Catalog(ctx context.Context, who admin.Identity) (admin.Catalog, error)
	SaveProduct(ctx context.Context, who admin.Identity, in admin.ProductInput) error
	DeleteProduct(ctx context.Context, who admin.Identity, id int) error
	Orders(ctx context.Context, who admin.Identity) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, who admin.Identity, id int, status string) error
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Sessions    SessionStore
	CatalogSvc  CatalogService
	AccountSvc  AccountService
	CheckoutSvc CheckoutService
	AdminSvc    AdminService
	Ready       blob.Pinger
}

// Options are the HTTP-level settings.
type Options struct {
	SessionCookie string
	SessionTTL    time.Duration
	CORSOrigins   []string
	// StreamHeartbeat is the interval of keep-alive events on the cart stream.
	StreamHeartbeat time.Duration
}

func (o Options) withDefaults() Options {
	if o.SessionCookie == "" {
		o.SessionCookie = "sf_session"
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 7 * 24 * time.Hour
	}
	if o.StreamHeartbeat <= 0 {
		o.StreamHeartbeat = 15 * time.Second
	}
	return o
}

// buildRouter wires routes for the API.
func buildRouter(logger *logrus.Logger, deps Deps, opts Options) (*gin.Engine, error) {
	if deps.Sessions == nil {
		return nil, errors.New("session store required")
	}
	if deps.CatalogSvc == nil || deps.AccountSvc == nil || deps.CheckoutSvc == nil || deps.AdminSvc == nil {
		return nil, errors.New("all services required")
	}
	opts = opts.withDefaults()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	if len(opts.CORSOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = opts.CORSOrigins
		cfg.AllowCredentials = true
		cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
		router.Use(cors.New(cfg))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Ready))

	h := &handlers{deps: deps, opts: opts, logger: logger}

	api := router.Group("/api", sessionMiddleware(opts.SessionCookie, opts.SessionTTL))

	api.GET("/products", h.listProducts)
	api.GET("/products/:id", h.getProduct)

	api.GET("/cart", h.getCart)
	api.GET("/cart/stream", h.streamCart)
	api.POST("/cart/items", h.addCartItem)
	api.PUT("/cart/items/:id", h.setCartItemQuantity)
	api.DELETE("/cart/items/:id", h.removeCartItem)
	api.DELETE("/cart", h.clearCart)

	api.POST("/account/login", h.login)
	api.POST("/account/register", h.register)
	api.POST("/account/logout", h.logout)
	api.GET("/account/me", h.me)

	api.GET("/checkout/delivery-methods", h.deliveryMethods)
	api.GET("/checkout/quote", h.quote)
	api.POST("/orders", h.requireLogin, h.placeOrder)
	api.GET("/orders", h.requireLogin, h.listOrders)

	adm := api.Group("/admin", h.requireAdmin)
	adm.GET("/verify", h.adminVerify)
	adm.GET("/stats", h.adminStats)
	adm.GET("/catalog", h.adminCatalog)
	adm.POST("/products", h.adminSaveProduct)
	adm.PUT("/products/:id", h.adminSaveProduct)
	adm.DELETE("/products/:id", h.adminDeleteProduct)
	adm.GET("/orders", h.adminOrders)
	adm.PUT("/orders/:id/status", h.adminUpdateOrderStatus)

	return router, nil
}
