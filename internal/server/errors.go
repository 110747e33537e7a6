package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/orderbridge/internal/catalog/domain"
	ledgerdomain "github.com/smallbiznis/orderbridge/internal/ledger/domain"
	"github.com/smallbiznis/orderbridge/internal/ordersource"
	"github.com/smallbiznis/orderbridge/internal/pos"
	promodomain "github.com/smallbiznis/orderbridge/internal/promo/domain"
	reconcilerdomain "github.com/smallbiznis/orderbridge/internal/reconciler/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	errType, _ := classifyErrorForLog(err)
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ordersource.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, reconcilerdomain.ErrRetryExhausted),
		errors.Is(err, reconcilerdomain.ErrOrderNotRetryable):
		return http.StatusConflict, errorPayload{
			Type:    errType,
			Message: err.Error(),
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, pos.ErrRequestFailed),
		errors.Is(err, ordersource.ErrRequestFailed),
		errors.Is(err, catalogdomain.ErrItemCreationFailed),
		errors.Is(err, promodomain.ErrDiscountSyncFailed):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "upstream request failed",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ledgerdomain.ErrInvalidOrderID),
		errors.Is(err, catalogdomain.ErrInvalidName),
		errors.Is(err, promodomain.ErrInvalidPromo):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ledgerdomain.ErrNotFound),
		errors.Is(err, reconcilerdomain.ErrOrderNotFound),
		errors.Is(err, catalogdomain.ErrNoMapping),
		errors.Is(err, ordersource.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func classifyErrorForLog(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case isValidationError(err):
		return "validation_error", err.Error()
	case isNotFoundError(err):
		return "not_found", err.Error()
	case errors.Is(err, reconcilerdomain.ErrRetryExhausted):
		return "retry_exhausted", err.Error()
	case errors.Is(err, reconcilerdomain.ErrOrderNotRetryable):
		return "order_not_retryable", err.Error()
	case errors.Is(err, ordersource.ErrInvalidSignature):
		return "unauthorized", err.Error()
	case errors.Is(err, pos.ErrRequestFailed),
		errors.Is(err, ordersource.ErrRequestFailed):
		return "upstream_error", err.Error()
	default:
		return "internal_error", err.Error()
	}
}
