package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/domijob/domijob/pkg/db/pagination"
)

type ClickMeta struct {
	IP          string
	UserAgent   string
	Referrer    string
	Source      string
	Campaign    string
	LandingPage string
}

type RecordConversionRequest struct {
	Code           string
	ReferredUserID snowflake.ID
	// BaseAmount is the qualifying amount in cents: the checkout total for a
	// purchase conversion, or zero to fall back to the fixed per-signup amount.
	BaseAmount int64
}

type RecordConversionResponse struct {
	Referral Referral `json:"referral"`
	// AlreadyRecorded is true when this (affiliate, user) pair converted
	// before; no balance was touched.
	AlreadyRecorded bool `json:"already_recorded"`
}

type UpdatePaymentDetailsRequest struct {
	UserID            snowflake.ID
	Method            PaymentMethod
	PaypalEmail       string
	BankName          string
	BankAccountName   string
	BankAccountNumber string
}

type Stats struct {
	Code            string  `json:"code"`
	CommissionRate  float64 `json:"commission_rate"`
	Active          bool    `json:"active"`
	TotalEarnings   int64   `json:"total_earnings"`
	PendingEarnings int64   `json:"pending_earnings"`
	PaidEarnings    int64   `json:"paid_earnings"`
	ClickCount      int64   `json:"click_count"`
	ConversionCount int64   `json:"conversion_count"`
}

type ListClicksRequest struct {
	UserID    snowflake.ID
	PageToken string
	PageSize  int
}

type ListClicksResponse struct {
	pagination.PageInfo
	Clicks []Click `json:"clicks"`
}

type ListReferralsRequest struct {
	UserID    snowflake.ID
	PageToken string
	PageSize  int
}

type ListReferralsResponse struct {
	pagination.PageInfo
	Referrals []Referral `json:"referrals"`
}

type Service interface {
	Register(ctx context.Context, userID snowflake.ID) (Affiliate, error)
	RecordClick(ctx context.Context, code string, meta ClickMeta) error
	RecordConversion(ctx context.Context, req RecordConversionRequest) (RecordConversionResponse, error)
	GetByUserID(ctx context.Context, userID snowflake.ID) (Affiliate, error)
	Stats(ctx context.Context, userID snowflake.ID) (Stats, error)
	ListClicks(ctx context.Context, req ListClicksRequest) (ListClicksResponse, error)
	ListReferrals(ctx context.Context, req ListReferralsRequest) (ListReferralsResponse, error)
	UpdatePaymentDetails(ctx context.Context, req UpdatePaymentDetailsRequest) (Affiliate, error)
	SetActive(ctx context.Context, affiliateID snowflake.ID, active bool) error
}

var (
	ErrAlreadyRegistered     = errors.New("already_registered")
	ErrUnknownCode           = errors.New("unknown_code")
	ErrInactiveAffiliate     = errors.New("inactive_affiliate")
	ErrNotFound              = errors.New("not_found")
	ErrInvalidUser           = errors.New("invalid_user")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidPaymentMethod  = errors.New("invalid_payment_method")
	ErrMissingPaymentDetails = errors.New("missing_payment_details")
	ErrCodeExhausted         = errors.New("code_generation_exhausted")
)
