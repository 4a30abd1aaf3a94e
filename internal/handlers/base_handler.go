package handlers

import (
	"net/http"

	"commhub_backend/internal/logger"
	"commhub_backend/internal/validator"
	"commhub_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

type BaseHandler struct {
	validator *validator.Validator
}

func NewBaseHandler(v *validator.Validator) *BaseHandler {
	return &BaseHandler{validator: v}
}

// BindAndValidate decodes the JSON body and runs struct validation. It writes
// the error response itself and reports whether the handler should continue.
func (h *BaseHandler) BindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	if err := h.validator.Validate(req); err != nil {
		if verr, ok := err.(*validator.ValidationError); ok {
			c.JSON(http.StatusBadRequest, apperrors.ValidationError(verr.Errors))
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// HandleError maps service errors to HTTP responses. Unknown errors become
// opaque 500s; AppErrors keep their code and message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		if appErr.HTTPCode >= http.StatusInternalServerError {
			logger.WithError(err).Error("internal error", "path", c.FullPath())
		}
		c.JSON(appErr.HTTPCode, appErr)
		return
	}

	logger.WithError(err).Error("unhandled error", "path", c.FullPath())
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
