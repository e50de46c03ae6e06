package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	affiliatedomain "github.com/domijob/domijob/internal/affiliate/domain"
	creditdomain "github.com/domijob/domijob/internal/credit/domain"
	"github.com/domijob/domijob/internal/observability"
	"github.com/domijob/domijob/internal/payment/domain"
	pkgdb "github.com/domijob/domijob/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Adapters     []domain.Adapter `group:"payment.adapters"`
	CreditSvc    creditdomain.Service
	AffiliateSvc affiliatedomain.Service
	Metrics      *observability.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	adapters     map[string]domain.Adapter
	creditSvc    creditdomain.Service
	affiliateSvc affiliatedomain.Service
	metrics      *observability.Metrics
}

func New(p Params) domain.Service {
	adapters := make(map[string]domain.Adapter, len(p.Adapters))
	for _, adapter := range p.Adapters {
		if adapter == nil {
			continue
		}
		adapters[adapter.Provider()] = adapter
	}

	return &Service{
		db:           p.DB,
		log:          p.Log.Named("payment.service"),
		genID:        p.GenID,
		adapters:     adapters,
		creditSvc:    p.CreditSvc,
		affiliateSvc: p.AffiliateSvc,
		metrics:      p.Metrics,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	adapter, ok := s.adapters[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return domain.ErrUnknownProvider
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.recordOutcome("invalid_signature")
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			s.recordOutcome("ignored")
		} else {
			s.recordOutcome("invalid")
		}
		return err
	}

	record := domain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Kind,
		UserID:          event.UserID,
		Payload:         datatypes.JSON(event.RawPayload),
		ReceivedAt:      event.OccurredAt,
	}
	stored := &record
	inserted := true
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if !pkgdb.IsDuplicateKeyErr(err) {
			return err
		}
		// At-least-once delivery: a redelivered event only counts as a
		// duplicate once its side effects landed. An unprocessed record
		// means the first attempt failed mid-flight, so re-apply it.
		inserted = false
		prior, err := s.loadEvent(ctx, event.Provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if prior.ProcessedAt != nil {
			s.recordOutcome("duplicate")
			return domain.ErrEventAlreadyProcessed
		}
		stored = prior
	}

	if err := s.apply(ctx, event); err != nil {
		s.recordOutcome("failed")
		return err
	}

	now := event.OccurredAt
	if err := s.db.WithContext(ctx).
		Model(&domain.EventRecord{}).
		Where("id = ?", stored.ID).
		Update("processed_at", &now).Error; err != nil {
		return err
	}

	if inserted {
		s.recordOutcome("processed")
	}
	return nil
}

func (s *Service) loadEvent(ctx context.Context, provider, providerEventID string) (*domain.EventRecord, error) {
	var record domain.EventRecord
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Service) apply(ctx context.Context, event *domain.CheckoutEvent) error {
	switch event.Kind {
	case domain.CheckoutKindCreditPack:
		_, err := s.creditSvc.Credit(ctx, creditdomain.CreditRequest{
			UserID:      event.UserID,
			Amount:      event.Credits,
			Type:        creditdomain.TxPurchase,
			Description: "Credit pack purchase",
		})
		return err
	case domain.CheckoutKindJobPost:
		if event.ReferralCode == "" {
			return nil
		}
		_, err := s.affiliateSvc.RecordConversion(ctx, affiliatedomain.RecordConversionRequest{
			Code:           event.ReferralCode,
			ReferredUserID: event.UserID,
			BaseAmount:     event.AmountTotal,
		})
		// A stale or deactivated code is not a delivery failure; the
		// checkout itself succeeded.
		if errors.Is(err, affiliatedomain.ErrUnknownCode) || errors.Is(err, affiliatedomain.ErrInactiveAffiliate) {
			s.log.Info("checkout referral not credited",
				zap.String("code", event.ReferralCode),
				zap.Error(err))
			return nil
		}
		return err
	default:
		return domain.ErrEventIgnored
	}
}

func (s *Service) recordOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.WebhookEvents.WithLabelValues(outcome).Inc()
	}
}
