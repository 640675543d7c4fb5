// Package response writes the JSON envelope shared by all HTTP handlers.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sweepstar/service-booking/internal/pkg/apperror"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    any         `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Pagination `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Paginated writes a page of items with its pagination metadata.
func Paginated(c *gin.Context, items any, total int64, page, limit int) {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    items,
		Meta:    &Pagination{Total: total, Page: page, Limit: limit, TotalPages: totalPages},
	})
}

func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, ErrorBody{Code: string(apperror.CodeValidation), Message: message})
}

func Unauthorized(c *gin.Context, message string) {
	abort(c, http.StatusUnauthorized, ErrorBody{Code: string(apperror.CodeUnauthorized), Message: message})
}

func Forbidden(c *gin.Context, message string) {
	abort(c, http.StatusForbidden, ErrorBody{Code: string(apperror.CodeForbidden), Message: message})
}

// Error maps err to an HTTP status. Errors outside the taxonomy become a 500
// without leaking their text.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		_ = c.Error(err)
		abort(c, http.StatusInternalServerError, ErrorBody{
			Code:    string(apperror.CodeInternal),
			Message: "internal server error",
		})
		return
	}
	if appErr.Err != nil {
		_ = c.Error(appErr.Err)
	}

	message := appErr.Message
	if appErr.Code == apperror.CodeInternal {
		message = "internal server error"
	}
	abort(c, StatusFor(appErr.Code), ErrorBody{
		Code:    string(appErr.Code),
		Message: message,
		Details: appErr.Details,
	})
}

// StatusFor returns the HTTP status for an error code.
func StatusFor(code apperror.Code) int {
	switch code {
	case apperror.CodeValidation:
		return http.StatusBadRequest
	case apperror.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperror.CodeForbidden:
		return http.StatusForbidden
	case apperror.CodeNotFound:
		return http.StatusNotFound
	case apperror.CodeInvalidSelection, apperror.CodeInvalidMultiplier:
		return http.StatusUnprocessableEntity
	case apperror.CodeConflict, apperror.CodeIllegalTransition, apperror.CodeStaleWrite, apperror.CodeAlreadyClaimed:
		return http.StatusConflict
	case apperror.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, status int, body ErrorBody) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: &body})
}
