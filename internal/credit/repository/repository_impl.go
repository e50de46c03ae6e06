package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/domijob/domijob/internal/credit/domain"
	"github.com/domijob/domijob/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindBalance(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Balance, error) {
	var balance domain.Balance
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&balance).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &balance, nil
}

func (r *repo) InsertBalance(ctx context.Context, db *gorm.DB, balance *domain.Balance) error {
	return db.WithContext(ctx).Create(balance).Error
}

func (r *repo) IncrementBalance(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Balance{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

func (r *repo) DecrementBalanceGuarded(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Balance{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, tx *domain.Transaction) error {
	return db.WithContext(ctx).Create(tx).Error
}

func (r *repo) HasTransactionOfType(ctx context.Context, db *gorm.DB, userID snowflake.ID, txType domain.TransactionType) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("user_id = ? AND type = ?", userID, txType).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, userID snowflake.ID, page pagination.Pagination) ([]*domain.Transaction, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("user_id = ?", userID)
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err == nil && cursor.ID != "" {
			if id, err := snowflake.ParseString(cursor.ID); err == nil {
				stmt = stmt.Where("id < ?", id)
			}
		}
	}

	var txs []*domain.Transaction
	err := stmt.
		Order("created_at desc, id desc").
		Limit(page.PageSize + 1).
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}
