package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/domijob/domijob/pkg/db/pagination"
)

type GrantSignupBonusRequest struct {
	UserID snowflake.ID
	// GuestCarryOver is the leftover guest allowance transferred into the
	// authoritative ledger; this is the only path by which a guest counter
	// becomes real credits.
	GuestCarryOver int64
}

type GrantSignupBonusResponse struct {
	// Granted is false when the bonus was already granted; the call is
	// idempotent and reports the existing balance instead of failing.
	Granted bool  `json:"granted"`
	Balance int64 `json:"balance"`
}

type DebitRequest struct {
	UserID  snowflake.ID
	Feature string
}

type DebitResponse struct {
	Cost      int64 `json:"cost"`
	Remaining int64 `json:"remaining"`
}

type CreditRequest struct {
	UserID      snowflake.ID
	Amount      int64
	Type        TransactionType
	Description string
}

type ListTransactionsRequest struct {
	UserID    snowflake.ID
	PageToken string
	PageSize  int
}

type ListTransactionsResponse struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
}

type Service interface {
	GrantSignupBonus(ctx context.Context, req GrantSignupBonusRequest) (GrantSignupBonusResponse, error)
	Debit(ctx context.Context, req DebitRequest) (DebitResponse, error)
	Credit(ctx context.Context, req CreditRequest) (Balance, error)
	BalanceOf(ctx context.Context, userID snowflake.ID) (Balance, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrUnknownFeature      = errors.New("unknown_feature")
	ErrInsufficientCredits = errors.New("insufficient_credits")
	ErrNotFound            = errors.New("not_found")
)
