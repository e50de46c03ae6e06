package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/domijob/domijob/pkg/db/pagination"
)

type RequestPayoutRequest struct {
	UserID snowflake.ID
	// Amount in cents; nil withdraws the full pending balance.
	Amount *int64
}

type TransitionRequest struct {
	PayoutID      snowflake.ID
	NewStatus     Status
	TransactionID string
}

type ListRequest struct {
	UserID    snowflake.ID
	PageToken string
	PageSize  int
}

type ListResponse struct {
	pagination.PageInfo
	Payouts []Payout `json:"payouts"`
}

type Service interface {
	Request(ctx context.Context, req RequestPayoutRequest) (Payout, error)
	Transition(ctx context.Context, req TransitionRequest) (Payout, error)
	Get(ctx context.Context, userID, payoutID snowflake.ID) (Payout, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrNotFound              = errors.New("not_found")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInsufficientPending   = errors.New("insufficient_pending")
	ErrMissingPaymentDetails = errors.New("missing_payment_details")
	ErrInvalidTransition     = errors.New("invalid_transition")
)
