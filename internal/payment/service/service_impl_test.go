package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	affiliatedomain "github.com/domijob/domijob/internal/affiliate/domain"
	affiliaterepo "github.com/domijob/domijob/internal/affiliate/repository"
	affiliateservice "github.com/domijob/domijob/internal/affiliate/service"
	"github.com/domijob/domijob/internal/cache"
	"github.com/domijob/domijob/internal/clock"
	"github.com/domijob/domijob/internal/config"
	creditdomain "github.com/domijob/domijob/internal/credit/domain"
	creditrepo "github.com/domijob/domijob/internal/credit/repository"
	creditservice "github.com/domijob/domijob/internal/credit/service"
	"github.com/domijob/domijob/internal/payment/adapters/stripe"
	"github.com/domijob/domijob/internal/payment/domain"
)

const webhookSecret = "whsec_test"

type webhookFixture struct {
	svc          domain.Service
	affiliateSvc affiliatedomain.Service
	creditSvc    creditdomain.Service
	db           *gorm.DB
	node         *snowflake.Node
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&affiliatedomain.Affiliate{},
		&affiliatedomain.Click{},
		&affiliatedomain.Referral{},
		&creditdomain.Balance{},
		&creditdomain.Transaction{},
		&domain.EventRecord{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		Affiliate: config.AffiliateConfig{
			DefaultCommissionRate: 0.10,
			SignupBaseAmount:      10000,
		},
		Credit: config.CreditConfig{
			SignupBonus:       50,
			GuestAllowance:    50,
			LowBalanceWarning: 10,
		},
	}
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	affiliateSvc := affiliateservice.New(affiliateservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  affiliaterepo.Provide(),
		Cfg:   cfg,
		Clock: fakeClock,
		Codes: cache.NewCodeResolverCache(),
	})
	creditSvc := creditservice.New(creditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  creditrepo.Provide(),
		Cfg:   cfg,
		Clock: fakeClock,
	})

	svc := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Adapters:     []domain.Adapter{stripe.NewAdapter(webhookSecret)},
		CreditSvc:    creditSvc,
		AffiliateSvc: affiliateSvc,
	})

	return &webhookFixture{
		svc:          svc,
		affiliateSvc: affiliateSvc,
		creditSvc:    creditSvc,
		db:           db,
		node:         node,
	}
}

func stripeHeaders(payload []byte) http.Header {
	timestamp := "1750000000"
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(timestamp + "." + string(payload)))

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil))))
	return headers
}

func creditPackPayload(eventID string, userID snowflake.ID, credits int64) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"created": 1750000000,
		"data": {"object": {
			"id": "cs_1",
			"amount_total": 1999,
			"metadata": {"type": "credit_pack", "user_id": %q, "credits": "%d"}
		}}
	}`, eventID, userID.String(), credits))
}

func jobPostPayload(eventID string, userID snowflake.ID, amountTotal int64, ref string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"created": 1750000000,
		"data": {"object": {
			"id": "cs_2",
			"amount_total": %d,
			"metadata": {"type": "job_post", "user_id": %q, "ref": %q}
		}}
	}`, eventID, amountTotal, userID.String(), ref))
}

func TestIngestWebhook_CreditPack(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	buyer := f.node.Generate()

	payload := creditPackPayload("evt_1", buyer, 100)
	require.NoError(t, f.svc.IngestWebhook(ctx, "stripe", payload, stripeHeaders(payload)))

	balance, err := f.creditSvc.BalanceOf(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Balance)

	var record domain.EventRecord
	require.NoError(t, f.db.First(&record, "provider_event_id = ?", "evt_1").Error)
	assert.Equal(t, "stripe", record.Provider)
	assert.NotNil(t, record.ProcessedAt)
}

func TestIngestWebhook_RedeliveryIsNoOp(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	buyer := f.node.Generate()

	payload := creditPackPayload("evt_dup", buyer, 100)
	require.NoError(t, f.svc.IngestWebhook(ctx, "stripe", payload, stripeHeaders(payload)))

	err := f.svc.IngestWebhook(ctx, "stripe", payload, stripeHeaders(payload))
	assert.ErrorIs(t, err, domain.ErrEventAlreadyProcessed)

	balance, err := f.creditSvc.BalanceOf(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Balance)
}

func TestIngestWebhook_RedeliveryAfterFailureReapplies(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	buyer := f.node.Generate()

	// First delivery records the event but fails while crediting.
	require.NoError(t, f.db.Migrator().DropTable(&creditdomain.Transaction{}))
	payload := creditPackPayload("evt_retry", buyer, 100)
	require.Error(t, f.svc.IngestWebhook(ctx, "stripe", payload, stripeHeaders(payload)))

	var record domain.EventRecord
	require.NoError(t, f.db.First(&record, "provider_event_id = ?", "evt_retry").Error)
	assert.Nil(t, record.ProcessedAt)

	// The provider retries once the store is healthy again; the stored
	// but unprocessed event must be applied, not rejected as a duplicate.
	require.NoError(t, f.db.AutoMigrate(&creditdomain.Transaction{}))
	require.NoError(t, f.svc.IngestWebhook(ctx, "stripe", payload, stripeHeaders(payload)))

	balance, err := f.creditSvc.BalanceOf(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Balance)

	require.NoError(t, f.db.First(&record, "provider_event_id = ?", "evt_retry").Error)
	assert.NotNil(t, record.ProcessedAt)

	// A third delivery is now a true duplicate.
	err = f.svc.IngestWebhook(ctx, "stripe", payload, stripeHeaders(payload))
	assert.ErrorIs(t, err, domain.ErrEventAlreadyProcessed)
	balance, err = f.creditSvc.BalanceOf(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Balance)
}

func TestIngestWebhook_JobPostCreditsReferrer(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	referrerUser := f.node.Generate()
	aff, err := f.affiliateSvc.Register(ctx, referrerUser)
	require.NoError(t, err)

	buyer := f.node.Generate()
	payload := jobPostPayload("evt_jp", buyer, 9900, aff.Code)
	require.NoError(t, f.svc.IngestWebhook(ctx, "stripe", payload, stripeHeaders(payload)))

	stats, err := f.affiliateSvc.Stats(ctx, referrerUser)
	require.NoError(t, err)
	assert.Equal(t, int64(990), stats.PendingEarnings)
	assert.Equal(t, int64(1), stats.ConversionCount)
}

func TestIngestWebhook_UnknownReferralCodeStillSucceeds(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	payload := jobPostPayload("evt_stale", f.node.Generate(), 9900, "GONECODE")
	assert.NoError(t, f.svc.IngestWebhook(ctx, "stripe", payload, stripeHeaders(payload)))
}

func TestIngestWebhook_BadSignature(t *testing.T) {
	f := newWebhookFixture(t)

	payload := creditPackPayload("evt_bad", f.node.Generate(), 100)
	headers := http.Header{}
	headers.Set("Stripe-Signature", "t=1750000000,v1=deadbeef")

	err := f.svc.IngestWebhook(context.Background(), "stripe", payload, headers)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	var count int64
	require.NoError(t, f.db.Model(&domain.EventRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestIngestWebhook_UnknownProvider(t *testing.T) {
	f := newWebhookFixture(t)

	err := f.svc.IngestWebhook(context.Background(), "paypal", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestIngestWebhook_IgnoredEventType(t *testing.T) {
	f := newWebhookFixture(t)

	payload := []byte(`{"id":"evt_sub","type":"customer.subscription.updated"}`)
	err := f.svc.IngestWebhook(context.Background(), "stripe", payload, stripeHeaders(payload))
	assert.ErrorIs(t, err, domain.ErrEventIgnored)
}
