package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type TransactionType string

const (
	TxSignupBonus   TransactionType = "signup_bonus"
	TxGuestTransfer TransactionType = "guest_transfer"
	TxUsage         TransactionType = "usage"
	TxPurchase      TransactionType = "purchase"
	TxAdjustment    TransactionType = "adjustment"
)

// Balance is the authoritative spendable credit balance of one registered
// user. Invariant: Balance >= 0 and Balance == sum of the user's transaction
// amounts; both are maintained transactionally.
type Balance struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;uniqueIndex" json:"user_id"`
	Balance   int64        `gorm:"not null;default:0" json:"balance"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Balance) TableName() string { return "credit_balances" }

// Transaction is an append-only ledger entry; positive amounts credit,
// negative amounts debit.
type Transaction struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID      snowflake.ID    `gorm:"not null;index" json:"user_id"`
	Amount      int64           `gorm:"not null" json:"amount"`
	Type        TransactionType `gorm:"type:text;not null;index" json:"type"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Transaction) TableName() string { return "credit_transactions" }
