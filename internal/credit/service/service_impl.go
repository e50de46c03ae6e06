package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/domijob/domijob/internal/clock"
	"github.com/domijob/domijob/internal/config"
	"github.com/domijob/domijob/internal/credit/domain"
	notificationdomain "github.com/domijob/domijob/internal/notification/domain"
	"github.com/domijob/domijob/internal/observability"
	"github.com/domijob/domijob/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Cfg      config.Config
	Clock    clock.Clock
	Notifier notificationdomain.Service `optional:"true"`
	Metrics  *observability.Metrics     `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	cfg      config.Config
	clock    clock.Clock
	notifier notificationdomain.Service
	metrics  *observability.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("credit.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		cfg:      p.Cfg,
		clock:    p.Clock,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

func (s *Service) GrantSignupBonus(ctx context.Context, req domain.GrantSignupBonusRequest) (domain.GrantSignupBonusResponse, error) {
	if req.UserID == 0 {
		return domain.GrantSignupBonusResponse{}, domain.ErrInvalidUser
	}
	if req.GuestCarryOver < 0 {
		return domain.GrantSignupBonusResponse{}, domain.ErrInvalidAmount
	}

	bonus := s.cfg.Credit.SignupBonus
	var resultBalance int64
	granted := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The existence check and grant run inside one transaction so two
		// concurrent signup calls cannot both pass the check.
		already, err := s.repo.HasTransactionOfType(ctx, tx, req.UserID, domain.TxSignupBonus)
		if err != nil {
			return err
		}
		if already {
			balance, err := s.repo.FindBalance(ctx, tx, req.UserID)
			if err != nil {
				return err
			}
			if balance != nil {
				resultBalance = balance.Balance
			}
			return nil
		}

		total := bonus + req.GuestCarryOver
		newBalance, err := s.applyCredit(ctx, tx, req.UserID, total)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if err := s.repo.InsertTransaction(ctx, tx, &domain.Transaction{
			ID:          s.genID.Generate(),
			UserID:      req.UserID,
			Amount:      bonus,
			Type:        domain.TxSignupBonus,
			Description: "Welcome bonus credits",
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		if req.GuestCarryOver > 0 {
			if err := s.repo.InsertTransaction(ctx, tx, &domain.Transaction{
				ID:          s.genID.Generate(),
				UserID:      req.UserID,
				Amount:      req.GuestCarryOver,
				Type:        domain.TxGuestTransfer,
				Description: "Guest credits carried over at signup",
				CreatedAt:   now,
			}); err != nil {
				return err
			}
		}

		granted = true
		resultBalance = newBalance
		return nil
	})
	if err != nil {
		return domain.GrantSignupBonusResponse{}, err
	}

	if granted {
		if s.metrics != nil {
			s.metrics.CreditGrants.WithLabelValues(string(domain.TxSignupBonus)).Inc()
		}
		s.log.Info("signup bonus granted",
			zap.String("user_id", req.UserID.String()),
			zap.Int64("carry_over", req.GuestCarryOver))
	}

	return domain.GrantSignupBonusResponse{Granted: granted, Balance: resultBalance}, nil
}

func (s *Service) Debit(ctx context.Context, req domain.DebitRequest) (domain.DebitResponse, error) {
	if req.UserID == 0 {
		return domain.DebitResponse{}, domain.ErrInvalidUser
	}

	cost, ok := domain.FeatureCost(req.Feature)
	if !ok {
		return domain.DebitResponse{}, domain.ErrUnknownFeature
	}

	var remaining int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.repo.DecrementBalanceGuarded(ctx, tx, req.UserID, cost)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrInsufficientCredits
		}

		if err := s.repo.InsertTransaction(ctx, tx, &domain.Transaction{
			ID:          s.genID.Generate(),
			UserID:      req.UserID,
			Amount:      -cost,
			Type:        domain.TxUsage,
			Description: fmt.Sprintf("Used %s", req.Feature),
			CreatedAt:   s.clock.Now(),
		}); err != nil {
			return err
		}

		balance, err := s.repo.FindBalance(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if balance != nil {
			remaining = balance.Balance
		}
		return nil
	})
	if err != nil {
		return domain.DebitResponse{}, err
	}

	if s.metrics != nil {
		s.metrics.CreditDebits.WithLabelValues(req.Feature).Inc()
	}
	if s.notifier != nil && remaining <= s.cfg.Credit.LowBalanceWarning {
		s.notifier.Notify(ctx, notificationdomain.NotifyRequest{
			UserID:  req.UserID,
			Type:    notificationdomain.TypeCreditsLow,
			Title:   "Credits running low",
			Message: fmt.Sprintf("You have %d credits left.", remaining),
			Metadata: map[string]any{
				"remaining": remaining,
			},
		})
	}

	return domain.DebitResponse{Cost: cost, Remaining: remaining}, nil
}

func (s *Service) Credit(ctx context.Context, req domain.CreditRequest) (domain.Balance, error) {
	if req.UserID == 0 {
		return domain.Balance{}, domain.ErrInvalidUser
	}
	if req.Amount <= 0 {
		return domain.Balance{}, domain.ErrInvalidAmount
	}
	txType := req.Type
	if txType == "" {
		txType = domain.TxAdjustment
	}

	var out domain.Balance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.applyCredit(ctx, tx, req.UserID, req.Amount); err != nil {
			return err
		}

		if err := s.repo.InsertTransaction(ctx, tx, &domain.Transaction{
			ID:          s.genID.Generate(),
			UserID:      req.UserID,
			Amount:      req.Amount,
			Type:        txType,
			Description: req.Description,
			CreatedAt:   s.clock.Now(),
		}); err != nil {
			return err
		}

		balance, err := s.repo.FindBalance(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if balance == nil {
			return domain.ErrNotFound
		}
		out = *balance
		return nil
	})
	if err != nil {
		return domain.Balance{}, err
	}

	if s.metrics != nil {
		s.metrics.CreditGrants.WithLabelValues(string(txType)).Inc()
	}
	return out, nil
}

func (s *Service) BalanceOf(ctx context.Context, userID snowflake.ID) (domain.Balance, error) {
	if userID == 0 {
		return domain.Balance{}, domain.ErrInvalidUser
	}
	balance, err := s.repo.FindBalance(ctx, s.db, userID)
	if err != nil {
		return domain.Balance{}, err
	}
	if balance == nil {
		// A user who never earned or bought credits has a zero balance, not
		// a missing one.
		return domain.Balance{UserID: userID}, nil
	}
	return *balance, nil
}

func (s *Service) ListTransactions(ctx context.Context, req domain.ListTransactionsRequest) (domain.ListTransactionsResponse, error) {
	if req.UserID == 0 {
		return domain.ListTransactionsResponse{}, domain.ErrInvalidUser
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	items, err := s.repo.ListTransactions(ctx, s.db, req.UserID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListTransactionsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(t *domain.Transaction) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        t.ID.String(),
			CreatedAt: t.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	txs := make([]domain.Transaction, 0, len(items))
	for _, item := range items {
		txs = append(txs, *item)
	}
	return domain.ListTransactionsResponse{PageInfo: *pageInfo, Transactions: txs}, nil
}

// applyCredit increments the balance row, creating it when absent, and
// returns the post-increment balance.
func (s *Service) applyCredit(ctx context.Context, tx *gorm.DB, userID snowflake.ID, amount int64) (int64, error) {
	rows, err := s.repo.IncrementBalance(ctx, tx, userID, amount)
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		now := s.clock.Now()
		if err := s.repo.InsertBalance(ctx, tx, &domain.Balance{
			ID:        s.genID.Generate(),
			UserID:    userID,
			Balance:   amount,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return 0, err
		}
		return amount, nil
	}

	balance, err := s.repo.FindBalance(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	if balance == nil {
		return 0, domain.ErrNotFound
	}
	return balance.Balance, nil
}
