package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/service/admin"
)

// productRequest accepts either JSON or a multipart form with an optional
// "picture" file.
type productRequest struct {
	Name           string  `json:"name" form:"name"`
	Description    string  `json:"description" form:"description"`
	Price          float64 `json:"price" form:"price"`
	ProductBrandID int     `json:"productBrandId" form:"productBrandId"`
	ProductTypeID  int     `json:"productTypeId" form:"productTypeId"`
	Quantity       int     `json:"quantity" form:"quantity"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *handlers) adminVerify(c *gin.Context) {
	if err := h.deps.AdminSvc.Verify(c.Request.Context(), h.session(c).Credentials); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": true})
}

func (h *handlers) adminStats(c *gin.Context) {
	stats, err := h.deps.AdminSvc.Stats(c.Request.Context(), h.session(c).Credentials)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *handlers) adminCatalog(c *gin.Context) {
	cat, err := h.deps.AdminSvc.Catalog(c.Request.Context(), h.session(c).Credentials)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// adminSaveProduct creates a product on POST and updates it on PUT /:id.
func (h *handlers) adminSaveProduct(c *gin.Context) {
	in := admin.ProductInput{}
	if c.Param("id") != "" {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		in.ID = id
	}

	var req productRequest
	multipartBody := strings.HasPrefix(c.ContentType(), "multipart/")
	var err error
	if multipartBody {
		err = c.ShouldBind(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		badRequest(c, err)
		return
	}
	in.Name = req.Name
	in.Description = req.Description
	in.Price = domain.NewMoney(req.Price)
	in.ProductBrandID = req.ProductBrandID
	in.ProductTypeID = req.ProductTypeID
	in.Quantity = req.Quantity

	if multipartBody {
		if fh, err := c.FormFile("picture"); err == nil {
			f, err := fh.Open()
			if err != nil {
				badRequest(c, fmt.Errorf("open picture: %w", err))
				return
			}
			defer f.Close()
			in.Picture = &backend.Upload{Filename: fh.Filename, Content: f}
		}
	}

	if err := h.deps.AdminSvc.SaveProduct(c.Request.Context(), h.session(c).Credentials, in); err != nil {
		h.fail(c, err)
		return
	}
	if in.ID == 0 {
		c.Status(http.StatusCreated)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) adminDeleteProduct(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	if err := h.deps.AdminSvc.DeleteProduct(c.Request.Context(), h.session(c).Credentials, id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) adminOrders(c *gin.Context) {
	orders, err := h.deps.AdminSvc.Orders(c.Request.Context(), h.session(c).Credentials)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *handlers) adminUpdateOrderStatus(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.deps.AdminSvc.UpdateOrderStatus(c.Request.Context(), h.session(c).Credentials, id, req.Status); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
