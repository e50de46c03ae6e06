package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord stores every accepted webhook delivery. The unique index on
// (provider, provider_event_id) makes redelivered events no-ops.
type EventRecord struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	Provider        string         `gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event,priority:1" json:"provider"`
	ProviderEventID string         `gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event,priority:2" json:"provider_event_id"`
	EventType       string         `gorm:"type:text;not null" json:"event_type"`
	UserID          snowflake.ID   `gorm:"not null;index" json:"user_id"`
	Payload         datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	ReceivedAt      time.Time      `gorm:"not null" json:"received_at"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
}

func (EventRecord) TableName() string { return "payment_events" }

// Checkout kinds discriminated by the session metadata the storefront sets.
const (
	CheckoutKindCreditPack = "credit_pack"
	CheckoutKindJobPost    = "job_post"
)

// CheckoutEvent is the canonical checkout-completed event parsed by adapters.
type CheckoutEvent struct {
	Provider        string
	ProviderEventID string
	Kind            string
	UserID          snowflake.ID
	// AmountTotal is the checkout total in cents.
	AmountTotal int64
	// Credits purchased, for credit_pack checkouts.
	Credits int64
	// ReferralCode attributes the checkout to an affiliate, when present.
	ReferralCode string
	OccurredAt   time.Time
	RawPayload   []byte
}

// Adapter verifies and parses one provider's webhook deliveries.
type Adapter interface {
	Provider() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*CheckoutEvent, error)
}

type Service interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}

var (
	ErrUnknownProvider       = errors.New("unknown_provider")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
)
