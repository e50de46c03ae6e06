package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/domijob/domijob/internal/affiliate/domain"
	"github.com/domijob/domijob/internal/cache"
	"github.com/domijob/domijob/internal/clock"
	"github.com/domijob/domijob/internal/config"
	notificationdomain "github.com/domijob/domijob/internal/notification/domain"
	"github.com/domijob/domijob/internal/observability"
	pkgdb "github.com/domijob/domijob/pkg/db"
	"github.com/domijob/domijob/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// codeAlphabet omits 0/O and 1/I to keep codes readable in referral links.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 8
	codeAttempts = 5
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Cfg      config.Config
	Clock    clock.Clock
	Codes    cache.CodeResolverCache
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
	codes    cache.CodeResolverCache
	notifier notificationdomain.Service
	metrics  *observability.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("affiliate.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		cfg:      p.Cfg,
		clock:    p.Clock,
		codes:    p.Codes,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

func (s *Service) Register(ctx context.Context, userID snowflake.ID) (domain.Affiliate, error) {
	if userID == 0 {
		return domain.Affiliate{}, domain.ErrInvalidUser
	}

	existing, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return domain.Affiliate{}, err
	}
	if existing != nil {
		return domain.Affiliate{}, domain.ErrAlreadyRegistered
	}

	code, err := s.generateCode(ctx)
	if err != nil {
		return domain.Affiliate{}, err
	}

	now := s.clock.Now()
	affiliate := domain.Affiliate{
		ID:             s.genID.Generate(),
		UserID:         userID,
		Code:           code,
		CommissionRate: s.cfg.Affiliate.DefaultCommissionRate,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &affiliate); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.Affiliate{}, domain.ErrAlreadyRegistered
		}
		return domain.Affiliate{}, err
	}

	s.log.Info("affiliate registered",
		zap.String("affiliate_id", affiliate.ID.String()),
		zap.String("code", affiliate.Code))
	return affiliate, nil
}

func (s *Service) RecordClick(ctx context.Context, code string, meta domain.ClickMeta) error {
	affiliateID, err := s.resolveCode(ctx, code)
	if err != nil {
		return err
	}

	metadata := datatypes.JSONMap{}
	if meta.IP != "" {
		metadata["ip"] = meta.IP
	}
	if meta.UserAgent != "" {
		metadata["user_agent"] = meta.UserAgent
	}
	if meta.Referrer != "" {
		metadata["referrer"] = meta.Referrer
	}

	click := domain.Click{
		ID:          s.genID.Generate(),
		AffiliateID: affiliateID,
		Source:      strings.TrimSpace(meta.Source),
		Campaign:    strings.TrimSpace(meta.Campaign),
		LandingPage: strings.TrimSpace(meta.LandingPage),
		Metadata:    metadata,
		CreatedAt:   s.clock.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertClick(ctx, tx, &click); err != nil {
			return err
		}
		return s.repo.IncrementClickCount(ctx, tx, affiliateID)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.Clicks.Inc()
	}
	return nil
}

func (s *Service) RecordConversion(ctx context.Context, req domain.RecordConversionRequest) (domain.RecordConversionResponse, error) {
	if req.ReferredUserID == 0 {
		return domain.RecordConversionResponse{}, domain.ErrInvalidUser
	}
	if req.BaseAmount < 0 {
		return domain.RecordConversionResponse{}, domain.ErrInvalidAmount
	}

	affiliate, err := s.repo.FindByCode(ctx, s.db, normalizeCode(req.Code))
	if err != nil {
		return domain.RecordConversionResponse{}, err
	}
	if affiliate == nil {
		return domain.RecordConversionResponse{}, domain.ErrUnknownCode
	}
	if !affiliate.Active {
		return domain.RecordConversionResponse{}, domain.ErrInactiveAffiliate
	}

	baseAmount := req.BaseAmount
	if baseAmount == 0 {
		baseAmount = s.cfg.Affiliate.SignupBaseAmount
	}
	commission := int64(math.Round(float64(baseAmount) * affiliate.CommissionRate))

	now := s.clock.Now()
	referral := domain.Referral{
		ID:               s.genID.Generate(),
		AffiliateID:      affiliate.ID,
		ReferredUserID:   req.ReferredUserID,
		CommissionAmount: commission,
		Status:           domain.ReferralStatusConverted,
		ConvertedAt:      &now,
		CreatedAt:        now,
	}

	inserted := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.InsertReferralIgnoreConflict(ctx, tx, &referral)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		inserted = true
		return s.repo.ApplyConversion(ctx, tx, affiliate.ID, commission)
	})
	if err != nil {
		return domain.RecordConversionResponse{}, err
	}

	if !inserted {
		existing, err := s.repo.FindReferral(ctx, s.db, affiliate.ID, req.ReferredUserID)
		if err != nil {
			return domain.RecordConversionResponse{}, err
		}
		if existing == nil {
			return domain.RecordConversionResponse{}, domain.ErrNotFound
		}
		return domain.RecordConversionResponse{Referral: *existing, AlreadyRecorded: true}, nil
	}

	if s.metrics != nil {
		s.metrics.Conversions.Inc()
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, notificationdomain.NotifyRequest{
			UserID:  affiliate.UserID,
			Type:    notificationdomain.TypeAffiliateConversion,
			Title:   "New referral conversion",
			Message: fmt.Sprintf("You earned %d cents commission from a new referral.", commission),
			Metadata: map[string]any{
				"referral_id":       referral.ID.String(),
				"commission_amount": commission,
			},
		})
	}

	s.log.Info("conversion recorded",
		zap.String("affiliate_id", affiliate.ID.String()),
		zap.Int64("commission", commission))
	return domain.RecordConversionResponse{Referral: referral}, nil
}

func (s *Service) GetByUserID(ctx context.Context, userID snowflake.ID) (domain.Affiliate, error) {
	affiliate, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return domain.Affiliate{}, err
	}
	if affiliate == nil {
		return domain.Affiliate{}, domain.ErrNotFound
	}
	return *affiliate, nil
}

func (s *Service) Stats(ctx context.Context, userID snowflake.ID) (domain.Stats, error) {
	affiliate, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{
		Code:            affiliate.Code,
		CommissionRate:  affiliate.CommissionRate,
		Active:          affiliate.Active,
		TotalEarnings:   affiliate.TotalEarnings,
		PendingEarnings: affiliate.PendingEarnings,
		PaidEarnings:    affiliate.PaidEarnings,
		ClickCount:      affiliate.ClickCount,
		ConversionCount: affiliate.ConversionCount,
	}, nil
}

func (s *Service) ListClicks(ctx context.Context, req domain.ListClicksRequest) (domain.ListClicksResponse, error) {
	affiliate, err := s.GetByUserID(ctx, req.UserID)
	if err != nil {
		return domain.ListClicksResponse{}, err
	}

	pageSize := normalizePageSize(req.PageSize)
	items, err := s.repo.ListClicks(ctx, s.db, affiliate.ID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListClicksResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(c *domain.Click) string {
		return encodeCursor(c.ID.String(), c.CreatedAt)
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	clicks := make([]domain.Click, 0, len(items))
	for _, item := range items {
		clicks = append(clicks, *item)
	}
	return domain.ListClicksResponse{PageInfo: *pageInfo, Clicks: clicks}, nil
}

func (s *Service) ListReferrals(ctx context.Context, req domain.ListReferralsRequest) (domain.ListReferralsResponse, error) {
	affiliate, err := s.GetByUserID(ctx, req.UserID)
	if err != nil {
		return domain.ListReferralsResponse{}, err
	}

	pageSize := normalizePageSize(req.PageSize)
	items, err := s.repo.ListReferrals(ctx, s.db, affiliate.ID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListReferralsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(r *domain.Referral) string {
		return encodeCursor(r.ID.String(), r.CreatedAt)
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	referrals := make([]domain.Referral, 0, len(items))
	for _, item := range items {
		referrals = append(referrals, *item)
	}
	return domain.ListReferralsResponse{PageInfo: *pageInfo, Referrals: referrals}, nil
}

func (s *Service) UpdatePaymentDetails(ctx context.Context, req domain.UpdatePaymentDetailsRequest) (domain.Affiliate, error) {
	affiliate, err := s.repo.FindByUserID(ctx, s.db, req.UserID)
	if err != nil {
		return domain.Affiliate{}, err
	}
	if affiliate == nil {
		return domain.Affiliate{}, domain.ErrNotFound
	}

	switch req.Method {
	case domain.MethodPayPal:
		email := strings.TrimSpace(req.PaypalEmail)
		if email == "" || !strings.Contains(email, "@") {
			return domain.Affiliate{}, domain.ErrMissingPaymentDetails
		}
		affiliate.PaymentMethod = domain.MethodPayPal
		affiliate.PaypalEmail = email
		affiliate.BankName = ""
		affiliate.BankAccountName = ""
		affiliate.BankAccountNumber = ""
	case domain.MethodBankTransfer:
		bankName := strings.TrimSpace(req.BankName)
		accountName := strings.TrimSpace(req.BankAccountName)
		accountNumber := strings.TrimSpace(req.BankAccountNumber)
		if bankName == "" || accountName == "" || accountNumber == "" {
			return domain.Affiliate{}, domain.ErrMissingPaymentDetails
		}
		affiliate.PaymentMethod = domain.MethodBankTransfer
		affiliate.BankName = bankName
		affiliate.BankAccountName = accountName
		affiliate.BankAccountNumber = accountNumber
		affiliate.PaypalEmail = ""
	default:
		return domain.Affiliate{}, domain.ErrInvalidPaymentMethod
	}

	if err := s.repo.Update(ctx, s.db, affiliate); err != nil {
		return domain.Affiliate{}, err
	}
	return *affiliate, nil
}

func (s *Service) SetActive(ctx context.Context, affiliateID snowflake.ID, active bool) error {
	rows, err := s.repo.SetActive(ctx, s.db, affiliateID, active)
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) resolveCode(ctx context.Context, code string) (snowflake.ID, error) {
	code = normalizeCode(code)
	if code == "" {
		return 0, domain.ErrUnknownCode
	}

	if id, ok := s.codes.GetAffiliateID(code); ok {
		return snowflake.ID(id), nil
	}

	affiliate, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return 0, err
	}
	if affiliate == nil {
		return 0, domain.ErrUnknownCode
	}

	s.codes.SetAffiliateID(code, int64(affiliate.ID))
	return affiliate.ID, nil
}

func (s *Service) generateCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := randomCode(codeLength)
		if err != nil {
			return "", err
		}
		exists, err := s.repo.CodeExists(ctx, s.db, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", domain.ErrCodeExhausted
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizePageSize(size int) int {
	if size <= 0 {
		return 20
	}
	if size > 250 {
		return 250
	}
	return size
}

func encodeCursor(id string, createdAt time.Time) string {
	token, err := pagination.EncodeCursor(pagination.Cursor{
		ID:        id,
		CreatedAt: createdAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return ""
	}
	return token
}
