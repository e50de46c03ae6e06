package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	affiliatedomain "github.com/domijob/domijob/internal/affiliate/domain"
	"github.com/domijob/domijob/internal/payout/domain"
	"github.com/domijob/domijob/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payout *domain.Payout) error {
	return db.WithContext(ctx).Create(payout).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payout, error) {
	var payout domain.Payout
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Take(&payout).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, page pagination.Pagination) ([]*domain.Payout, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Payout{}).
		Where("affiliate_id = ?", affiliateID)
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err == nil && cursor.ID != "" {
			if id, err := snowflake.ParseString(cursor.ID); err == nil {
				stmt = stmt.Where("id < ?", id)
			}
		}
	}

	var payouts []*domain.Payout
	err := stmt.
		Order("created_at desc, id desc").
		Limit(page.PageSize + 1).
		Find(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, update domain.StatusUpdate) (int64, error) {
	values := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if update.TransactionID != nil {
		values["transaction_id"] = *update.TransactionID
	}
	if update.PaidAt != nil {
		values["paid_at"] = *update.PaidAt
	}

	result := db.WithContext(ctx).
		Model(&domain.Payout{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	return result.RowsAffected, result.Error
}

func (r *repo) DecrementPending(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, amount int64) (int64, error) {
	result := db.WithContext(ctx).
		Model(&affiliatedomain.Affiliate{}).
		Where("id = ? AND pending_earnings >= ?", affiliateID, amount).
		Updates(map[string]any{
			"pending_earnings": gorm.Expr("pending_earnings - ?", amount),
			"updated_at":       time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

func (r *repo) RestorePending(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, amount int64) error {
	return db.WithContext(ctx).
		Model(&affiliatedomain.Affiliate{}).
		Where("id = ?", affiliateID).
		Updates(map[string]any{
			"pending_earnings": gorm.Expr("pending_earnings + ?", amount),
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (r *repo) CreditPaid(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, amount int64) error {
	return db.WithContext(ctx).
		Model(&affiliatedomain.Affiliate{}).
		Where("id = ?", affiliateID).
		Updates(map[string]any{
			"paid_earnings": gorm.Expr("paid_earnings + ?", amount),
			"updated_at":    time.Now().UTC(),
		}).Error
}
