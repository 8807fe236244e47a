// Package handler exposes the fiscal services over HTTP. Every response
// uses the dto envelope and every error is mapped from its domain code.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	fiscalapp "github.com/kwanza/fiscal/internal/application/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/kwanza/fiscal/internal/infrastructure/logger"
	"github.com/kwanza/fiscal/internal/interfaces/http/dto"
	"github.com/kwanza/fiscal/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader lets clients retry create requests safely
const IdempotencyKeyHeader = "Idempotency-Key"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	middleware.SetErrorCode(c, code)
	c.JSON(statusCode, dto.NewErrorResponse(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// HandleError maps err onto its HTTP status. Domain errors keep their
// message; anything else is logged and reported as an internal error so
// no implementation detail leaks to clients.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, code := dto.StatusForError(err)
	message := "An unexpected error occurred"
	var de *shared.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}
	if status >= http.StatusInternalServerError {
		logger.Ctx(c.Request.Context()).Error("Request failed",
			zap.String("error_code", code),
			zap.Error(err))
	}
	h.Error(c, status, code, message)
}

// principal returns the authenticated caller; it writes a 401 and
// returns false when the route was not behind JWTAuth.
func (h *BaseHandler) principal(c *gin.Context) (fiscalapp.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		h.Error(c, http.StatusUnauthorized, shared.CodeUnauthorized, "Authentication required")
		return fiscalapp.Principal{}, false
	}
	return p, true
}

// pathID parses the :id path parameter
func (h *BaseHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, http.StatusBadRequest, shared.CodeValidation, "Invalid document ID")
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes the body into req and writes a 400 on failure.
// An empty body is accepted for requests whose fields are all optional.
func (h *BaseHandler) bindJSON(c *gin.Context, req any, optional bool) bool {
	if optional && c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.SetErrorCode(c, shared.CodeValidation)
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}
