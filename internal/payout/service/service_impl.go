package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	affiliatedomain "github.com/domijob/domijob/internal/affiliate/domain"
	"github.com/domijob/domijob/internal/clock"
	notificationdomain "github.com/domijob/domijob/internal/notification/domain"
	"github.com/domijob/domijob/internal/observability"
	"github.com/domijob/domijob/internal/payout/domain"
	"github.com/domijob/domijob/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	AffiliateRepo affiliatedomain.Repository
	Clock         clock.Clock
	Notifier      notificationdomain.Service `optional:"true"`
	Metrics       *observability.Metrics     `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	affiliateRepo affiliatedomain.Repository
	clock         clock.Clock
	notifier      notificationdomain.Service
	metrics       *observability.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payout.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		affiliateRepo: p.AffiliateRepo,
		clock:         p.Clock,
		notifier:      p.Notifier,
		metrics:       p.Metrics,
	}
}

func (s *Service) Request(ctx context.Context, req domain.RequestPayoutRequest) (domain.Payout, error) {
	affiliate, err := s.affiliateRepo.FindByUserID(ctx, s.db, req.UserID)
	if err != nil {
		return domain.Payout{}, err
	}
	if affiliate == nil {
		return domain.Payout{}, domain.ErrNotFound
	}

	amount := affiliate.PendingEarnings
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount <= 0 {
		return domain.Payout{}, domain.ErrInvalidAmount
	}
	if amount > affiliate.PendingEarnings {
		return domain.Payout{}, domain.ErrInsufficientPending
	}
	if !affiliate.HasPaymentDetails() {
		return domain.Payout{}, domain.ErrMissingPaymentDetails
	}

	now := s.clock.Now()
	payout := domain.Payout{
		ID:          s.genID.Generate(),
		AffiliateID: affiliate.ID,
		Amount:      amount,
		Method:      affiliate.PaymentMethod,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Guarded decrement: a concurrent request for the same balance makes
		// the second one miss and fail instead of driving pending negative.
		rows, err := s.repo.DecrementPending(ctx, tx, affiliate.ID, amount)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrInsufficientPending
		}
		return s.repo.Insert(ctx, tx, &payout)
	})
	if err != nil {
		return domain.Payout{}, err
	}

	s.log.Info("payout requested",
		zap.String("payout_id", payout.ID.String()),
		zap.Int64("amount", amount))
	return payout, nil
}

func (s *Service) Transition(ctx context.Context, req domain.TransitionRequest) (domain.Payout, error) {
	payout, err := s.repo.FindByID(ctx, s.db, req.PayoutID)
	if err != nil {
		return domain.Payout{}, err
	}
	if payout == nil {
		return domain.Payout{}, domain.ErrNotFound
	}
	if !payout.Status.CanTransition(req.NewStatus) {
		return domain.Payout{}, domain.ErrInvalidTransition
	}

	update := domain.StatusUpdate{}
	if txnID := strings.TrimSpace(req.TransactionID); txnID != "" {
		update.TransactionID = &txnID
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.NewStatus == domain.StatusPaid {
			update.PaidAt = &now
		}

		rows, err := s.repo.UpdateStatus(ctx, tx, payout.ID, payout.Status, req.NewStatus, update)
		if err != nil {
			return err
		}
		if rows == 0 {
			// Someone transitioned the payout between our read and write.
			return domain.ErrInvalidTransition
		}

		switch req.NewStatus {
		case domain.StatusPaid:
			return s.repo.CreditPaid(ctx, tx, payout.AffiliateID, payout.Amount)
		case domain.StatusRejected:
			return s.repo.RestorePending(ctx, tx, payout.AffiliateID, payout.Amount)
		default:
			return nil
		}
	})
	if err != nil {
		return domain.Payout{}, err
	}

	payout.Status = req.NewStatus
	payout.TransactionID = update.TransactionID
	payout.PaidAt = update.PaidAt
	payout.UpdatedAt = now

	if s.metrics != nil {
		s.metrics.PayoutTransitions.WithLabelValues(string(req.NewStatus)).Inc()
	}
	s.notifyTransition(ctx, payout)

	s.log.Info("payout transitioned",
		zap.String("payout_id", payout.ID.String()),
		zap.String("status", string(req.NewStatus)))
	return *payout, nil
}

func (s *Service) Get(ctx context.Context, userID, payoutID snowflake.ID) (domain.Payout, error) {
	affiliate, err := s.affiliateRepo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return domain.Payout{}, err
	}
	if affiliate == nil {
		return domain.Payout{}, domain.ErrNotFound
	}

	payout, err := s.repo.FindByID(ctx, s.db, payoutID)
	if err != nil {
		return domain.Payout{}, err
	}
	if payout == nil {
		return domain.Payout{}, domain.ErrNotFound
	}
	if payout.AffiliateID != affiliate.ID {
		return domain.Payout{}, domain.ErrForbidden
	}
	return *payout, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	affiliate, err := s.affiliateRepo.FindByUserID(ctx, s.db, req.UserID)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if affiliate == nil {
		return domain.ListResponse{}, domain.ErrNotFound
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	items, err := s.repo.List(ctx, s.db, affiliate.ID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(p *domain.Payout) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        p.ID.String(),
			CreatedAt: p.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	payouts := make([]domain.Payout, 0, len(items))
	for _, item := range items {
		payouts = append(payouts, *item)
	}
	return domain.ListResponse{PageInfo: *pageInfo, Payouts: payouts}, nil
}

func (s *Service) notifyTransition(ctx context.Context, payout *domain.Payout) {
	if s.notifier == nil {
		return
	}

	affiliate, err := s.affiliateRepo.FindByID(ctx, s.db, payout.AffiliateID)
	if err != nil || affiliate == nil {
		return
	}

	switch payout.Status {
	case domain.StatusPaid:
		s.notifier.Notify(ctx, notificationdomain.NotifyRequest{
			UserID:  affiliate.UserID,
			Type:    notificationdomain.TypePayoutPaid,
			Title:   "Payout sent",
			Message: fmt.Sprintf("Your payout of %d cents has been sent.", payout.Amount),
			Metadata: map[string]any{
				"payout_id": payout.ID.String(),
				"amount":    payout.Amount,
			},
		})
	case domain.StatusRejected:
		s.notifier.Notify(ctx, notificationdomain.NotifyRequest{
			UserID:  affiliate.UserID,
			Type:    notificationdomain.TypePayoutRejected,
			Title:   "Payout rejected",
			Message: fmt.Sprintf("Your payout of %d cents was rejected; the funds are back in your pending balance.", payout.Amount),
			Metadata: map[string]any{
				"payout_id": payout.ID.String(),
				"amount":    payout.Amount,
			},
		})
	}
}
