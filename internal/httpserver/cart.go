package httpserver

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type addItemRequest struct {
	ProductID int `json:"productId" binding:"required,gt=0"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required,lte=1000"`
}

func (h *handlers) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, h.session(c).Cart.Summary())
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess := h.session(c)
	sum, err := h.deps.CatalogSvc.AddToCart(c.Request.Context(), sess.Credentials, sess.Cart, req.ProductID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// setCartItemQuantity sets a line's quantity; zero or less removes the line.
func (h *handlers) setCartItemQuantity(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session(c).Cart.SetQuantity(c.Request.Context(), id, *req.Quantity))
}

func (h *handlers) removeCartItem(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.session(c).Cart.Remove(c.Request.Context(), id))
}

func (h *handlers) clearCart(c *gin.Context) {
	c.JSON(http.StatusOK, h.session(c).Cart.Clear(c.Request.Context()))
}

// streamCart pushes a "cart" event with the current summary and another after
// every change, until the client goes away or the session ends.
func (h *handlers) streamCart(c *gin.Context) {
	updates, cancel := h.session(c).Cart.Watch()
	defer cancel()

	heartbeat := time.NewTicker(h.opts.StreamHeartbeat)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case sum, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("cart", sum)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
