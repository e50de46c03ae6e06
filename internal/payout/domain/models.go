package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	affiliatedomain "github.com/domijob/domijob/internal/affiliate/domain"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusRejected   Status = "rejected"
)

// Payout is one withdrawal request. Funds leave pending_earnings the moment
// the request is filed and come back only through the rejected transition.
type Payout struct {
	ID            snowflake.ID                  `gorm:"primaryKey" json:"id"`
	AffiliateID   snowflake.ID                  `gorm:"not null;index" json:"affiliate_id"`
	Amount        int64                         `gorm:"not null" json:"amount"`
	Method        affiliatedomain.PaymentMethod `gorm:"type:text;not null" json:"method"`
	Status        Status                        `gorm:"type:text;not null;index" json:"status"`
	TransactionID *string                       `gorm:"type:text" json:"transaction_id,omitempty"`
	PaidAt        *time.Time                    `json:"paid_at,omitempty"`
	CreatedAt     time.Time                     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time                     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Payout) TableName() string { return "affiliate_payouts" }

// CanTransition reports whether the one-directional state machine allows
// moving from s to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusPaid || next == StatusRejected
	case StatusProcessing:
		return next == StatusPaid || next == StatusRejected
	default:
		return false
	}
}
