package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type handlers struct {
	deps   Deps
	opts   Options
	logger *logrus.Logger
}

// intParam reads a positive integer path parameter.
func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "invalid " + name})
		return 0, false
	}
	return v, true
}
