package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/domijob/domijob/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, affiliate *Affiliate) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Affiliate, error)
	FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Affiliate, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Affiliate, error)
	CodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error)
	Update(ctx context.Context, db *gorm.DB, affiliate *Affiliate) error
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) (int64, error)

	InsertClick(ctx context.Context, db *gorm.DB, click *Click) error
	IncrementClickCount(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	ListClicks(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, page pagination.Pagination) ([]*Click, error)

	// InsertReferralIgnoreConflict inserts the referral unless one already
	// exists for (affiliate_id, referred_user_id); it reports whether a row
	// was inserted.
	InsertReferralIgnoreConflict(ctx context.Context, db *gorm.DB, referral *Referral) (bool, error)
	FindReferral(ctx context.Context, db *gorm.DB, affiliateID, referredUserID snowflake.ID) (*Referral, error)
	ListReferrals(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, page pagination.Pagination) ([]*Referral, error)

	// ApplyConversion credits the commission and bumps the conversion counter
	// in one statement so total == pending + paid cannot drift.
	ApplyConversion(ctx context.Context, db *gorm.DB, id snowflake.ID, commission int64) error
}
