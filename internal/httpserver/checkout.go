package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"storefront/internal/service/checkout"
)

type quoteQuery struct {
	DeliveryMethodID int `form:"deliveryMethodId"`
}

func (h *handlers) deliveryMethods(c *gin.Context) {
	methods, err := h.deps.CheckoutSvc.DeliveryMethods(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, methods)
}

func (h *handlers) quote(c *gin.Context) {
	var q quoteQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	quote, err := h.deps.CheckoutSvc.Quote(c.Request.Context(), h.session(c).Cart, q.DeliveryMethodID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *handlers) placeOrder(c *gin.Context) {
	var in checkout.PlaceOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	sess := h.session(c)
	order, err := h.deps.CheckoutSvc.PlaceOrder(c.Request.Context(), sess.Credentials, sess.Cart, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *handlers) listOrders(c *gin.Context) {
	orders, err := h.deps.CheckoutSvc.Orders(c.Request.Context(), h.session(c).Credentials)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}
