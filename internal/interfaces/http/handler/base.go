// Package handler implements the gin handlers of the sync HTTP surface.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prostor/erpsync/internal/interfaces/http/dto"
	"github.com/prostor/erpsync/internal/interfaces/http/middleware"
)

// BaseHandler provides common response helpers
type BaseHandler struct{}

// OK sends a 200 with body as-is
func (h *BaseHandler) OK(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}

// Error sends {message, error}
func (h *BaseHandler) Error(c *gin.Context, status int, message string, err error) {
	c.JSON(status, dto.NewErrorResponse(message, err))
}

// BadRequest sends a 400 with message only
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, message, nil)
}

// NotFound sends a 404 with message only
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, message, nil)
}

// ValidationError sends the binding failure details
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}
