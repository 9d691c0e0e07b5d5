package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Client talks to the shop backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logrus.Logger
}

// New returns a Client for baseURL (for example http://localhost:5229/api).
// A nil httpClient is replaced by one with a 10 second timeout.
func New(baseURL string, httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logging.OrDiscard(logger),
	}
}

type request struct {
	method    string
	path      string
	query     url.Values
	token     string
	needsAuth bool
	payload   any
	body      io.Reader
	ctype     string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	if r.needsAuth && r.token == "" {
		return ErrNoToken
	}

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	body, ctype := r.body, r.ctype
	if r.payload != nil {
		raw, err := json.Marshal(r.payload)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", r.method, r.path, err)
		}
		body, ctype = bytes.NewReader(raw), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", r.method, r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"method":   r.method,
		"path":     r.path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return parseAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

// GetBasket fetches the basket with the given id.
func (c *Client) GetBasket(ctx context.Context, token, id string) (domain.CustomerBasket, error) {
	var b domain.CustomerBasket
	err := c.do(ctx, request{method: http.MethodGet, path: "/baskets/" + url.PathEscape(id), token: token, needsAuth: true}, &b)
	return b, err
}

// UpdateBasket creates or replaces a basket and returns the stored copy.
func (c *Client) UpdateBasket(ctx context.Context, token string, basket domain.CustomerBasket) (domain.CustomerBasket, error) {
	var b domain.CustomerBasket
	err := c.do(ctx, request{method: http.MethodPost, path: "/baskets", token: token, needsAuth: true, payload: basket}, &b)
	return b, err
}

func (c *Client) DeleteBasket(ctx context.Context, token, id string) error {
	return c.do(ctx, request{
		method:    http.MethodDelete,
		path:      "/baskets",
		query:     url.Values{"id": {id}},
		token:     token,
		needsAuth: true,
	}, nil)
}

// ProductQuery selects one page of the public product list.
type ProductQuery struct {
	PageIndex int
	PageSize  int
	Search    string
}

func (c *Client) Products(ctx context.Context, q ProductQuery) (domain.Pagination[domain.Product], error) {
	query := url.Values{
		"pageSize":  {strconv.Itoa(q.PageSize)},
		"pageIndex": {strconv.Itoa(q.PageIndex)},
	}
	if q.Search != "" {
		query.Set("search", q.Search)
	}
	var page domain.Pagination[domain.Product]
	err := c.do(ctx, request{method: http.MethodGet, path: "/product", query: query}, &page)
	return page, err
}

func (c *Client) Product(ctx context.Context, id int) (domain.Product, error) {
	var p domain.Product
	err := c.do(ctx, request{method: http.MethodGet, path: "/product/" + strconv.Itoa(id)}, &p)
	return p, err
}

func (c *Client) Brands(ctx context.Context, token string) ([]domain.ProductBrand, error) {
	var out []domain.ProductBrand
	err := c.do(ctx, request{method: http.MethodGet, path: "/Product/Brands", token: token, needsAuth: true}, &out)
	return out, err
}

func (c *Client) Types(ctx context.Context, token string) ([]domain.ProductType, error) {
	var out []domain.ProductType
	err := c.do(ctx, request{method: http.MethodGet, path: "/Product/Types", token: token, needsAuth: true}, &out)
	return out, err
}

// AllProducts returns the unpaged product list used by the admin console.
func (c *Client) AllProducts(ctx context.Context, token string) ([]domain.Product, error) {
	var out []domain.Product
	err := c.do(ctx, request{method: http.MethodGet, path: "/Product", token: token, needsAuth: true}, &out)
	return out, err
}

// Upload is a file attached to a multipart product form.
type Upload struct {
	Filename string
	Content  io.Reader
}

// ProductForm is the multipart payload for creating or updating a product.
type ProductForm struct {
	ID             int
	Name           string
	Description    string
	Price          domain.Money
	ProductBrandID int
	ProductTypeID  int
	Quantity       int
	Picture        *Upload
}

func (f ProductForm) encode() (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	fields := [][2]string{
		{"name", f.Name},
		{"description", f.Description},
		{"price", f.Price.String()},
		{"productBrandId", strconv.Itoa(f.ProductBrandID)},
		{"productTypeId", strconv.Itoa(f.ProductTypeID)},
		{"quantity", strconv.Itoa(f.Quantity)},
	}
	if f.ID > 0 {
		fields = append(fields, [2]string{"id", strconv.Itoa(f.ID)})
	}
	for _, kv := range fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	if f.Picture != nil {
		part, err := w.CreateFormFile("PictureUrl", f.Picture.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Picture.Content); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// SaveProduct creates the product when form.ID is zero and updates it otherwise.
func (c *Client) SaveProduct(ctx context.Context, token string, form ProductForm) error {
	if token == "" {
		return ErrNoToken
	}
	body, ctype, err := form.encode()
	if err != nil {
		return fmt.Errorf("encode product form: %w", err)
	}
	r := request{method: http.MethodPost, path: "/Product", token: token, needsAuth: true, body: body, ctype: ctype}
	if form.ID > 0 {
		r.method = http.MethodPut
		r.path = "/Product/" + strconv.Itoa(form.ID)
	}
	return c.do(ctx, r, nil)
}

func (c *Client) DeleteProduct(ctx context.Context, token string, id int) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/Product/" + strconv.Itoa(id), token: token, needsAuth: true}, nil)
}

func (c *Client) Login(ctx context.Context, req domain.LoginRequest) (domain.User, error) {
	var u domain.User
	err := c.do(ctx, request{method: http.MethodPost, path: "/account/login", payload: req}, &u)
	return u, err
}

func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error) {
	var u domain.User
	err := c.do(ctx, request{method: http.MethodPost, path: "/account/Register", payload: req}, &u)
	return u, err
}

// Logout notifies the backend. The token is sent when present but not required.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/account/logout", token: token, payload: struct{}{}}, nil)
}

func (c *Client) DeliveryMethods(ctx context.Context) ([]domain.DeliveryMethod, error) {
	var out []domain.DeliveryMethod
	err := c.do(ctx, request{method: http.MethodGet, path: "/orders/DeliveryMethods"}, &out)
	return out, err
}

func (c *Client) CreateOrder(ctx context.Context, token string, req domain.OrderRequest) (domain.Order, error) {
	var o domain.Order
	err := c.do(ctx, request{method: http.MethodPost, path: "/orders", token: token, needsAuth: true, payload: req}, &o)
	return o, err
}

// Orders lists orders visible to the token's user. For administrators the
// backend returns every order.
func (c *Client) Orders(ctx context.Context, token string) ([]domain.Order, error) {
	var out []domain.Order
	err := c.do(ctx, request{method: http.MethodGet, path: "/orders", token: token, needsAuth: true}, &out)
	return out, err
}

func (c *Client) UpdateOrderStatus(ctx context.Context, token string, id int, status string) error {
	return c.do(ctx, request{
		method:    http.MethodPut,
		path:      "/orders/" + strconv.Itoa(id) + "/status",
		token:     token,
		needsAuth: true,
		payload:   map[string]string{"status": status},
	}, nil)
}

// VerifyAdmin succeeds when the backend accepts token as an administrator.
func (c *Client) VerifyAdmin(ctx context.Context, token string) error {
	return c.do(ctx, request{method: http.MethodGet, path: "/admin/verify", token: token, needsAuth: true}, nil)
}

func (c *Client) Stats(ctx context.Context, token string) (domain.DashboardStats, error) {
	var s domain.DashboardStats
	err := c.do(ctx, request{method: http.MethodGet, path: "/admin/stats", token: token, needsAuth: true}, &s)
	return s, err
}
