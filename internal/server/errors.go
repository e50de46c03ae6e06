package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	affiliatedomain "github.com/domijob/domijob/internal/affiliate/domain"
	"github.com/domijob/domijob/internal/authorization"
	creditdomain "github.com/domijob/domijob/internal/credit/domain"
	notificationdomain "github.com/domijob/domijob/internal/notification/domain"
	paymentdomain "github.com/domijob/domijob/internal/payment/domain"
	payoutdomain "github.com/domijob/domijob/internal/payout/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}

	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, payoutdomain.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}

	case errors.Is(err, affiliatedomain.ErrAlreadyRegistered),
		errors.Is(err, paymentdomain.ErrEventAlreadyProcessed):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}

	case errors.Is(err, affiliatedomain.ErrNotFound),
		errors.Is(err, payoutdomain.ErrNotFound),
		errors.Is(err, creditdomain.ErrNotFound),
		errors.Is(err, notificationdomain.ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}

	// Business-rule shortfalls are expected and user-facing: the client
	// prompts "buy more credits" / "insufficient balance" on 402.
	case errors.Is(err, creditdomain.ErrInsufficientCredits),
		errors.Is(err, payoutdomain.ErrInsufficientPending):
		return http.StatusPaymentRequired, errorPayload{
			Type:    err.Error(),
			Message: err.Error(),
		}

	case errors.Is(err, affiliatedomain.ErrUnknownCode),
		errors.Is(err, affiliatedomain.ErrInactiveAffiliate),
		errors.Is(err, affiliatedomain.ErrInvalidUser),
		errors.Is(err, affiliatedomain.ErrInvalidAmount),
		errors.Is(err, affiliatedomain.ErrInvalidPaymentMethod),
		errors.Is(err, affiliatedomain.ErrMissingPaymentDetails),
		errors.Is(err, payoutdomain.ErrInvalidAmount),
		errors.Is(err, payoutdomain.ErrInvalidTransition),
		errors.Is(err, payoutdomain.ErrMissingPaymentDetails),
		errors.Is(err, creditdomain.ErrInvalidUser),
		errors.Is(err, creditdomain.ErrInvalidAmount),
		errors.Is(err, creditdomain.ErrUnknownFeature),
		errors.Is(err, paymentdomain.ErrUnknownProvider),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent),
		errors.Is(err, paymentdomain.ErrEventIgnored):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: err.Error(),
		}

	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "invalid_signature",
			Message: "invalid signature",
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}
