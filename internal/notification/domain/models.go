package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type NotificationType string

const (
	TypeAffiliateConversion NotificationType = "affiliate_conversion"
	TypePayoutPaid          NotificationType = "payout_paid"
	TypePayoutRejected      NotificationType = "payout_rejected"
	TypeCreditsLow          NotificationType = "credits_low"
)

// Notification is a human-readable record of a meaningful ledger change.
type Notification struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID      `gorm:"not null;index" json:"user_id"`
	Type      NotificationType  `gorm:"type:text;not null" json:"type"`
	Title     string            `gorm:"type:text;not null" json:"title"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	Read      bool              `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
