package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jensholdgaard/claim-market/internal/economy"
	"github.com/jensholdgaard/claim-market/internal/market"
)

// ErrorCode is the machine-readable part of an error body.
type ErrorCode string

const (
	ErrCodeBadRequest        ErrorCode = "bad_request"
	ErrCodeInvalidFormat     ErrorCode = "invalid_format"
	ErrCodeValidationFailed  ErrorCode = "validation_failed"
	ErrCodeNotFound          ErrorCode = "not_found"
	ErrCodeInsufficientFunds ErrorCode = "insufficient_funds"
	ErrCodeStaleListing      ErrorCode = "stale_listing"
	ErrCodeTradeCancelled    ErrorCode = "transaction_cancelled"
	ErrCodeNotReady          ErrorCode = "not_ready"
	ErrCodeInternalError     ErrorCode = "internal_error"
)

// APIError is the JSON body of every non-2xx response.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e *APIError) Error() string { return string(e.Code) + ": " + e.Message }

func respondWithError(c *gin.Context, status int, code ErrorCode, message string, details ...string) {
	body := &APIError{Code: code, Message: message}
	if len(details) > 0 {
		body.Details = details[0]
	}
	c.AbortWithStatusJSON(status, body)
}

func respondBadRequest(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusBadRequest, ErrCodeBadRequest, message, details...)
}

func respondNotFound(c *gin.Context, message string) {
	respondWithError(c, http.StatusNotFound, ErrCodeNotFound, message)
}

// respondMarketError maps a market failure class onto a status code. Saga
// failures get a generic message: the step that failed is an internal detail.
func (s *Server) respondMarketError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, market.ErrSagaStep):
		respondWithError(c, http.StatusConflict, ErrCodeTradeCancelled, "transaction cancelled, no money or claims changed hands")
	case errors.Is(err, market.ErrInvalidFormat):
		respondWithError(c, http.StatusBadRequest, ErrCodeInvalidFormat, err.Error())
	case errors.Is(err, economy.ErrInvalidAmount):
		respondWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, market.ErrNotFound):
		respondWithError(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, market.ErrValidation):
		respondWithError(c, http.StatusUnprocessableEntity, ErrCodeValidationFailed, err.Error())
	case errors.Is(err, market.ErrInsufficientFunds):
		respondWithError(c, http.StatusPaymentRequired, ErrCodeInsufficientFunds, "you cannot afford this")
	case errors.Is(err, market.ErrStaleListing):
		respondWithError(c, http.StatusConflict, ErrCodeStaleListing, err.Error())
	default:
		s.logger.ErrorContext(c.Request.Context(), "request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Any("error", err),
		)
		respondWithError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
	}
}
