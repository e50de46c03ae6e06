package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/domijob/domijob/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payout *Payout) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payout, error)
	List(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, page pagination.Pagination) ([]*Payout, error)

	// UpdateStatus flips status guarded by the current value; it reports
	// whether a row matched so concurrent transitions lose cleanly.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, update StatusUpdate) (int64, error)

	// DecrementPending escrows amount out of pending_earnings guarded by a
	// sufficient balance; it reports whether a row matched.
	DecrementPending(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, amount int64) (int64, error)
	RestorePending(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, amount int64) error
	CreditPaid(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, amount int64) error
}

// StatusUpdate carries the optional fields set alongside a transition.
type StatusUpdate struct {
	TransactionID *string
	PaidAt        *time.Time
}
