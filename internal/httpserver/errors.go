package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"storefront/internal/backend"
	"storefront/internal/domain"
)

type errorResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors,omitempty"`
}

// statusFor maps an error to the HTTP status and body returned to the browser.
func statusFor(err error) (int, errorResponse) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, errorResponse{Error: "invalid input", Errors: verr.Messages}
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
		return http.StatusBadRequest, errorResponse{Error: "rejected by backend", Errors: apiErr.Messages()}
	}
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "not found"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, backend.ErrNoToken):
		return http.StatusUnauthorized, errorResponse{Error: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorResponse{Error: "backend timed out"}
	}
	if apiErr != nil && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return apiErr.StatusCode, errorResponse{Error: apiErr.Message, Errors: apiErr.Errors}
	}
	return http.StatusBadGateway, errorResponse{Error: "backend unavailable"}
}

func (h *handlers) fail(c *gin.Context, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"path":   c.FullPath(),
			"status": status,
		}).Error("request failed")
	}
	c.AbortWithStatusJSON(status, body)
}

func abortError(c *gin.Context, kind error, msg string) {
	status, _ := statusFor(kind)
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

// badRequest reports a request body or parameter that did not bind.
func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "invalid request", Errors: []string{err.Error()}})
}
