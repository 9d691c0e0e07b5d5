package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"storefront/internal/service/catalog"
)

func (h *handlers) listProducts(c *gin.Context) {
	var q catalog.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.deps.CatalogSvc.List(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handlers) getProduct(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	p, err := h.deps.CatalogSvc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
