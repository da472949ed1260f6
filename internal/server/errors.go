package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	documentdomain "github.com/ledgerline/billing/internal/document/domain"
	documentsdomain "github.com/ledgerline/billing/internal/documents/domain"
	tokendomain "github.com/ledgerline/billing/internal/downloadtoken/domain"
	invoicedomain "github.com/ledgerline/billing/internal/invoice/domain"
	"github.com/ledgerline/billing/internal/money"
	receiptdomain "github.com/ledgerline/billing/internal/receipt/domain"
	sequencedomain "github.com/ledgerline/billing/internal/sequence/domain"
	"github.com/ledgerline/billing/pkg/db/pagination"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

// ErrorHandlingMiddleware turns domain sentinels collected on the gin
// context into a uniform error payload.
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
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    err.Error(),
			Message: "validation error",
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, invoicedomain.ErrInvalidUser),
		errors.Is(err, tokendomain.ErrInvalidUser):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isNotFoundError(err):
		// Dead download tokens land here too: an invalid secret is
		// indistinguishable from a missing resource.
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, documentdomain.ErrInvalidState),
		errors.Is(err, invoicedomain.ErrInvoiceNotEditable),
		errors.Is(err, invoicedomain.ErrInvoiceNotDraft):
		return http.StatusConflict, errorPayload{
			Type:    "invalid_state",
			Code:    err.Error(),
			Message: "illegal lifecycle transition",
		}
	case errors.Is(err, documentsdomain.ErrResourceNotReady):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "not_ready",
			Code:    err.Error(),
			Message: "document is not ready to be served",
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
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrInvalidQuantity),
		errors.Is(err, money.ErrInvalidRate),
		errors.Is(err, money.ErrInvalidTaxRate),
		errors.Is(err, money.ErrInvalidDiscount),
		errors.Is(err, money.ErrDiscountExceedsTotal),
		errors.Is(err, invoicedomain.ErrInvalidInvoiceID),
		errors.Is(err, invoicedomain.ErrMissingClientName),
		errors.Is(err, invoicedomain.ErrNoLineItems),
		errors.Is(err, receiptdomain.ErrInvalidReceiptID),
		errors.Is(err, receiptdomain.ErrInvalidReceiptType),
		errors.Is(err, receiptdomain.ErrInvalidTotal),
		errors.Is(err, receiptdomain.ErrMissingCustomer),
		errors.Is(err, sequencedomain.ErrInvalidScope),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, tokendomain.ErrInvalidResource),
		errors.Is(err, tokendomain.ErrInvalidPolicy),
		errors.Is(err, documentsdomain.ErrMissingRecipient):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, invoicedomain.ErrItemNotFound),
		errors.Is(err, receiptdomain.ErrReceiptNotFound),
		errors.Is(err, tokendomain.ErrTokenInvalid),
		errors.Is(err, tokendomain.ErrTokenNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
