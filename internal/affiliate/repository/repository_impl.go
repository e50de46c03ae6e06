package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/domijob/domijob/internal/affiliate/domain"
	"github.com/domijob/domijob/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, affiliate *domain.Affiliate) error {
	return db.WithContext(ctx).Create(affiliate).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Affiliate, error) {
	var affiliate domain.Affiliate
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Take(&affiliate).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &affiliate, nil
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Affiliate, error) {
	var affiliate domain.Affiliate
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&affiliate).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &affiliate, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Affiliate, error) {
	var affiliate domain.Affiliate
	err := db.WithContext(ctx).
		Where("code = ?", code).
		Take(&affiliate).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &affiliate, nil
}

func (r *repo) CodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Affiliate{}).
		Where("code = ?", code).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, affiliate *domain.Affiliate) error {
	affiliate.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(affiliate).Error
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Affiliate{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"active":     active,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

func (r *repo) InsertClick(ctx context.Context, db *gorm.DB, click *domain.Click) error {
	return db.WithContext(ctx).Create(click).Error
}

func (r *repo) IncrementClickCount(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).
		Model(&domain.Affiliate{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"click_count": gorm.Expr("click_count + 1"),
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *repo) ListClicks(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, page pagination.Pagination) ([]*domain.Click, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Click{}).
		Where("affiliate_id = ?", affiliateID)
	stmt = applyCursor(stmt, page)

	var clicks []*domain.Click
	err := stmt.
		Order("created_at desc, id desc").
		Limit(page.PageSize + 1).
		Find(&clicks).Error
	if err != nil {
		return nil, err
	}
	return clicks, nil
}

func (r *repo) InsertReferralIgnoreConflict(ctx context.Context, db *gorm.DB, referral *domain.Referral) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "affiliate_id"}, {Name: "referred_user_id"}},
			DoNothing: true,
		}).
		Create(referral)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindReferral(ctx context.Context, db *gorm.DB, affiliateID, referredUserID snowflake.ID) (*domain.Referral, error) {
	var referral domain.Referral
	err := db.WithContext(ctx).
		Where("affiliate_id = ? AND referred_user_id = ?", affiliateID, referredUserID).
		Take(&referral).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}

func (r *repo) ListReferrals(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, page pagination.Pagination) ([]*domain.Referral, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Referral{}).
		Where("affiliate_id = ?", affiliateID)
	stmt = applyCursor(stmt, page)

	var referrals []*domain.Referral
	err := stmt.
		Order("created_at desc, id desc").
		Limit(page.PageSize + 1).
		Find(&referrals).Error
	if err != nil {
		return nil, err
	}
	return referrals, nil
}

func (r *repo) ApplyConversion(ctx context.Context, db *gorm.DB, id snowflake.ID, commission int64) error {
	return db.WithContext(ctx).
		Model(&domain.Affiliate{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_earnings":   gorm.Expr("total_earnings + ?", commission),
			"pending_earnings": gorm.Expr("pending_earnings + ?", commission),
			"conversion_count": gorm.Expr("conversion_count + 1"),
			"updated_at":       time.Now().UTC(),
		}).Error
}

// applyCursor pages by snowflake ID, which is generation-time ordered.
func applyCursor(stmt *gorm.DB, page pagination.Pagination) *gorm.DB {
	if page.PageToken == "" {
		return stmt
	}
	cursor, err := pagination.DecodeCursor(page.PageToken)
	if err != nil || cursor.ID == "" {
		return stmt
	}
	id, err := snowflake.ParseString(cursor.ID)
	if err != nil {
		return stmt
	}
	return stmt.Where("id < ?", id)
}
