package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"storefront/internal/service/account"
)

func (h *handlers) login(c *gin.Context) {
	var in account.LoginInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	id, err := h.deps.AccountSvc.Login(c.Request.Context(), sessionID(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, id)
}

func (h *handlers) register(c *gin.Context) {
	var in account.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.deps.AccountSvc.Register(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"displayName": user.DisplayName, "email": user.Email})
}

func (h *handlers) logout(c *gin.Context) {
	if err := h.deps.AccountSvc.Logout(c.Request.Context(), sessionID(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) me(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.AccountSvc.Me(c.Request.Context(), sessionID(c)))
}
