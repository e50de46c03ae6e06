package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/domijob/domijob/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	FindBalance(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Balance, error)
	InsertBalance(ctx context.Context, db *gorm.DB, balance *Balance) error

	// IncrementBalance adds amount unconditionally (credits).
	IncrementBalance(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64) (int64, error)
	// DecrementBalanceGuarded subtracts amount only while the balance covers
	// it; it reports whether a row matched.
	DecrementBalanceGuarded(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64) (int64, error)

	InsertTransaction(ctx context.Context, db *gorm.DB, tx *Transaction) error
	HasTransactionOfType(ctx context.Context, db *gorm.DB, userID snowflake.ID, txType TransactionType) (bool, error)
	ListTransactions(ctx context.Context, db *gorm.DB, userID snowflake.ID, page pagination.Pagination) ([]*Transaction, error)
}
