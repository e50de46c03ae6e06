package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PaymentMethod selects where payout funds are sent. At most one method's
// details are materialized on the affiliate at a time.
type PaymentMethod string

const (
	MethodPayPal       PaymentMethod = "paypal"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusActive    ReferralStatus = "active"
	ReferralStatusConverted ReferralStatus = "converted"
	ReferralStatusExpired   ReferralStatus = "expired"
)

// Affiliate is the commission ledger row for one referring user.
// Invariant: TotalEarnings == PendingEarnings + PaidEarnings after every
// mutating operation; all paired updates run in one transaction.
type Affiliate struct {
	ID                snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID            snowflake.ID  `gorm:"not null;uniqueIndex" json:"user_id"`
	Code              string        `gorm:"type:text;not null;uniqueIndex" json:"code"`
	CommissionRate    float64       `gorm:"not null" json:"commission_rate"`
	Active            bool          `gorm:"not null;default:true" json:"active"`
	TotalEarnings     int64         `gorm:"not null;default:0" json:"total_earnings"`
	PendingEarnings   int64         `gorm:"not null;default:0" json:"pending_earnings"`
	PaidEarnings      int64         `gorm:"not null;default:0" json:"paid_earnings"`
	ClickCount        int64         `gorm:"not null;default:0" json:"click_count"`
	ConversionCount   int64         `gorm:"not null;default:0" json:"conversion_count"`
	PaymentMethod     PaymentMethod `gorm:"type:text" json:"payment_method,omitempty"`
	PaypalEmail       string        `gorm:"type:text" json:"paypal_email,omitempty"`
	BankName          string        `gorm:"type:text" json:"bank_name,omitempty"`
	BankAccountName   string        `gorm:"type:text" json:"bank_account_name,omitempty"`
	BankAccountNumber string        `gorm:"type:text" json:"bank_account_number,omitempty"`
	CreatedAt         time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Affiliate) TableName() string { return "affiliates" }

// HasPaymentDetails reports whether the selected method's details are present.
func (a Affiliate) HasPaymentDetails() bool {
	switch a.PaymentMethod {
	case MethodPayPal:
		return a.PaypalEmail != ""
	case MethodBankTransfer:
		return a.BankName != "" && a.BankAccountName != "" && a.BankAccountNumber != ""
	default:
		return false
	}
}

// Click is one tracked visit with a referral code. Append-only.
type Click struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	AffiliateID snowflake.ID      `gorm:"not null;index" json:"affiliate_id"`
	Source      string            `gorm:"type:text" json:"source,omitempty"`
	Campaign    string            `gorm:"type:text" json:"campaign,omitempty"`
	LandingPage string            `gorm:"type:text" json:"landing_page,omitempty"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;index;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Click) TableName() string { return "affiliate_clicks" }

// Referral is one referred user that converted. The unique index on
// (affiliate_id, referred_user_id) backs conversion idempotency.
type Referral struct {
	ID               snowflake.ID   `gorm:"primaryKey" json:"id"`
	AffiliateID      snowflake.ID   `gorm:"not null;uniqueIndex:ux_referrals_affiliate_user,priority:1" json:"affiliate_id"`
	ReferredUserID   snowflake.ID   `gorm:"not null;uniqueIndex:ux_referrals_affiliate_user,priority:2" json:"referred_user_id"`
	CommissionAmount int64          `gorm:"not null" json:"commission_amount"`
	Status           ReferralStatus `gorm:"type:text;not null" json:"status"`
	ConvertedAt      *time.Time     `json:"converted_at,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Referral) TableName() string { return "affiliate_referrals" }
