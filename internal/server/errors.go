package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/railzwaylabs/cargoledger/internal/invoice/domain"
	jobdomain "github.com/railzwaylabs/cargoledger/internal/job/domain"
	paymentdomain "github.com/railzwaylabs/cargoledger/internal/payment/domain"
	quotedomain "github.com/railzwaylabs/cargoledger/internal/quote/domain"
	ratingservice "github.com/railzwaylabs/cargoledger/internal/rating/service"
	recomputedomain "github.com/railzwaylabs/cargoledger/internal/recompute/domain"
	waybilldomain "github.com/railzwaylabs/cargoledger/internal/waybill/domain"
	"github.com/railzwaylabs/cargoledger/pkg/db/pagination"
)

// APIError is the body of every failed response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func invalidRequestError() *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "request body is not valid JSON for this endpoint"}
}

func newValidationError(field, code, message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: code, Message: message, Field: field}
}

var notFoundErrors = []error{
	quotedomain.ErrNotFound,
	waybilldomain.ErrNotFound,
	invoicedomain.ErrNotFound,
	paymentdomain.ErrNotFound,
	jobdomain.ErrNotFound,
}

var conflictErrors = []error{
	quotedomain.ErrDuplicateName,
	waybilldomain.ErrDuplicateOrderNo,
}

var badRequestErrors = []error{
	quotedomain.ErrInvalidConfiguration,
	quotedomain.ErrInvalidID,
	waybilldomain.ErrInvalidID,
	waybilldomain.ErrInvalidOrderNo,
	waybilldomain.ErrInvalidOrderTime,
	waybilldomain.ErrInvalidWeight,
	waybilldomain.ErrUnknownProduct,
	waybilldomain.ErrInvalidReference,
	invoicedomain.ErrInvalidID,
	invoicedomain.ErrInvalidPeriod,
	invoicedomain.ErrInvalidSide,
	invoicedomain.ErrInvalidScope,
	invoicedomain.ErrInvalidFeeType,
	paymentdomain.ErrInvalidID,
	paymentdomain.ErrInvalidDirection,
	paymentdomain.ErrInvalidCounterparty,
	paymentdomain.ErrInvalidAmount,
	paymentdomain.ErrInvalidPaidAt,
	paymentdomain.ErrInvalidInvoice,
	paymentdomain.ErrInvoiceNotFound,
	paymentdomain.ErrInvoiceSideMismatch,
	paymentdomain.ErrCounterpartyMismatch,
	paymentdomain.ErrMultipleInvoicesLinked,
	jobdomain.ErrInvalidID,
	jobdomain.ErrUnknownKind,
	jobdomain.ErrInvalidPayload,
	recomputedomain.ErrInvalidRequest,
	ratingservice.ErrInvalidPreview,
	pagination.ErrInvalidPageToken,
}

// AbortWithError writes the error envelope and stops the handler chain. The
// error is attached to the context so the request logger records it.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	apiErr := toAPIError(err)
	c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
}

func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var cfgErr *quotedomain.ConfigError
	if errors.As(err, &cfgErr) {
		status := http.StatusBadRequest
		if errors.Is(cfgErr.Err, quotedomain.ErrDuplicateName) {
			status = http.StatusConflict
		}
		return &APIError{
			Status:  status,
			Code:    cfgErr.Err.Error(),
			Message: err.Error(),
			Field:   cfgErr.Field,
		}
	}

	if status, code, ok := classify(err); ok {
		return &APIError{Status: status, Code: code, Message: err.Error()}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{Status: http.StatusGatewayTimeout, Code: "timeout", Message: "request timed out"}
	case errors.Is(err, context.Canceled):
		return &APIError{Status: http.StatusServiceUnavailable, Code: "canceled", Message: "request canceled"}
	}
	return &APIError{Status: http.StatusInternalServerError, Code: "internal_error", Message: "internal server error"}
}

func classify(err error) (int, string, bool) {
	groups := []struct {
		status int
		errs   []error
	}{
		{http.StatusNotFound, notFoundErrors},
		{http.StatusConflict, conflictErrors},
		{http.StatusBadRequest, badRequestErrors},
	}
	for _, g := range groups {
		for _, target := range g.errs {
			if errors.Is(err, target) {
				return g.status, target.Error(), true
			}
		}
	}
	return 0, "", false
}
