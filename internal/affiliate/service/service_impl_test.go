package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/domijob/domijob/internal/affiliate/domain"
	"github.com/domijob/domijob/internal/affiliate/repository"
	"github.com/domijob/domijob/internal/cache"
	"github.com/domijob/domijob/internal/clock"
	"github.com/domijob/domijob/internal/config"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Affiliate{}, &domain.Click{}, &domain.Referral{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		Affiliate: config.AffiliateConfig{
			DefaultCommissionRate: 0.10,
			SignupBaseAmount:      10000,
			ReferralCookieTTLDays: 30,
		},
	}

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Cfg:   cfg,
		Clock: clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		Codes: cache.NewCodeResolverCache(),
	}).(*Service)

	return svc, db, node
}

func TestRegister_GeneratesCodeAndDefaults(t *testing.T) {
	svc, _, node := newTestService(t)
	ctx := context.Background()

	aff, err := svc.Register(ctx, node.Generate())
	require.NoError(t, err)

	assert.Len(t, aff.Code, 8)
	assert.Equal(t, 0.10, aff.CommissionRate)
	assert.True(t, aff.Active)
	assert.Zero(t, aff.TotalEarnings)
	assert.Zero(t, aff.PendingEarnings)
	assert.Zero(t, aff.PaidEarnings)
}

func TestRegister_SecondCallFails(t *testing.T) {
	svc, _, node := newTestService(t)
	ctx := context.Background()
	userID := node.Generate()

	_, err := svc.Register(ctx, userID)
	require.NoError(t, err)

	_, err = svc.Register(ctx, userID)
	assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)
}

func TestRecordClick_IncrementsClickCount(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()

	aff, err := svc.Register(ctx, node.Generate())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err := svc.RecordClick(ctx, aff.Code, domain.ClickMeta{
			IP:          "203.0.113.7",
			UserAgent:   "test-agent",
			Source:      "newsletter",
			LandingPage: "/jobs",
		})
		require.NoError(t, err)
	}

	var stored domain.Affiliate
	require.NoError(t, db.First(&stored, "id = ?", aff.ID).Error)
	assert.Equal(t, int64(3), stored.ClickCount)

	var clicks int64
	require.NoError(t, db.Model(&domain.Click{}).Where("affiliate_id = ?", aff.ID).Count(&clicks).Error)
	assert.Equal(t, int64(3), clicks)
}

func TestRecordClick_UnknownCode(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.RecordClick(context.Background(), "NOPE1234", domain.ClickMeta{})
	assert.ErrorIs(t, err, domain.ErrUnknownCode)
}

func TestRecordConversion_CommissionRounding(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()

	aff, err := svc.Register(ctx, node.Generate())
	require.NoError(t, err)

	resp, err := svc.RecordConversion(ctx, domain.RecordConversionRequest{
		Code:           aff.Code,
		ReferredUserID: node.Generate(),
		BaseAmount:     100,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10), resp.Referral.CommissionAmount)
	assert.False(t, resp.AlreadyRecorded)
	assert.Equal(t, domain.ReferralStatusConverted, resp.Referral.Status)
	require.NotNil(t, resp.Referral.ConvertedAt)

	var stored domain.Affiliate
	require.NoError(t, db.First(&stored, "id = ?", aff.ID).Error)
	assert.Equal(t, int64(10), stored.TotalEarnings)
	assert.Equal(t, int64(10), stored.PendingEarnings)
	assert.Equal(t, int64(1), stored.ConversionCount)
}

func TestRecordConversion_SignupFallbackAmount(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()

	aff, err := svc.Register(ctx, node.Generate())
	require.NoError(t, err)

	// Zero base amount means a signup conversion at the configured fixed
	// amount: 10% of 10000 cents.
	resp, err := svc.RecordConversion(ctx, domain.RecordConversionRequest{
		Code:           aff.Code,
		ReferredUserID: node.Generate(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), resp.Referral.CommissionAmount)

	var stored domain.Affiliate
	require.NoError(t, db.First(&stored, "id = ?", aff.ID).Error)
	assert.Equal(t, stored.PendingEarnings+stored.PaidEarnings, stored.TotalEarnings)
}

func TestRecordConversion_IdempotentPerReferredUser(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()

	aff, err := svc.Register(ctx, node.Generate())
	require.NoError(t, err)
	referredUser := node.Generate()

	first, err := svc.RecordConversion(ctx, domain.RecordConversionRequest{
		Code:           aff.Code,
		ReferredUserID: referredUser,
		BaseAmount:     5000,
	})
	require.NoError(t, err)
	require.False(t, first.AlreadyRecorded)

	second, err := svc.RecordConversion(ctx, domain.RecordConversionRequest{
		Code:           aff.Code,
		ReferredUserID: referredUser,
		BaseAmount:     5000,
	})
	require.NoError(t, err)
	assert.True(t, second.AlreadyRecorded)
	assert.Equal(t, first.Referral.ID, second.Referral.ID)

	var stored domain.Affiliate
	require.NoError(t, db.First(&stored, "id = ?", aff.ID).Error)
	assert.Equal(t, int64(500), stored.TotalEarnings)
	assert.Equal(t, int64(1), stored.ConversionCount)
}

func TestRecordConversion_InactiveAffiliate(t *testing.T) {
	svc, _, node := newTestService(t)
	ctx := context.Background()

	aff, err := svc.Register(ctx, node.Generate())
	require.NoError(t, err)
	require.NoError(t, svc.SetActive(ctx, aff.ID, false))

	_, err = svc.RecordConversion(ctx, domain.RecordConversionRequest{
		Code:           aff.Code,
		ReferredUserID: node.Generate(),
		BaseAmount:     100,
	})
	assert.ErrorIs(t, err, domain.ErrInactiveAffiliate)
}

func TestRecordConversion_UnknownCode(t *testing.T) {
	svc, _, node := newTestService(t)

	_, err := svc.RecordConversion(context.Background(), domain.RecordConversionRequest{
		Code:           "MISSING1",
		ReferredUserID: node.Generate(),
		BaseAmount:     100,
	})
	assert.ErrorIs(t, err, domain.ErrUnknownCode)
}

func TestUpdatePaymentDetails(t *testing.T) {
	svc, _, node := newTestService(t)
	ctx := context.Background()
	userID := node.Generate()

	_, err := svc.Register(ctx, userID)
	require.NoError(t, err)

	t.Run("paypal requires email", func(t *testing.T) {
		_, err := svc.UpdatePaymentDetails(ctx, domain.UpdatePaymentDetailsRequest{
			UserID: userID,
			Method: domain.MethodPayPal,
		})
		assert.ErrorIs(t, err, domain.ErrMissingPaymentDetails)
	})

	t.Run("paypal clears bank fields", func(t *testing.T) {
		_, err := svc.UpdatePaymentDetails(ctx, domain.UpdatePaymentDetailsRequest{
			UserID:            userID,
			Method:            domain.MethodBankTransfer,
			BankName:          "First Bank",
			BankAccountName:   "Jane Doe",
			BankAccountNumber: "12345678",
		})
		require.NoError(t, err)

		aff, err := svc.UpdatePaymentDetails(ctx, domain.UpdatePaymentDetailsRequest{
			UserID:      userID,
			Method:      domain.MethodPayPal,
			PaypalEmail: "jane@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.MethodPayPal, aff.PaymentMethod)
		assert.Empty(t, aff.BankName)
		assert.Empty(t, aff.BankAccountNumber)
		assert.True(t, aff.HasPaymentDetails())
	})

	t.Run("unknown method", func(t *testing.T) {
		_, err := svc.UpdatePaymentDetails(ctx, domain.UpdatePaymentDetailsRequest{
			UserID: userID,
			Method: "crypto",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)
	})
}

func TestStats_ReflectsLedger(t *testing.T) {
	svc, _, node := newTestService(t)
	ctx := context.Background()
	userID := node.Generate()

	aff, err := svc.Register(ctx, userID)
	require.NoError(t, err)

	_, err = svc.RecordConversion(ctx, domain.RecordConversionRequest{
		Code:           aff.Code,
		ReferredUserID: node.Generate(),
		BaseAmount:     2500,
	})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, aff.Code, stats.Code)
	assert.Equal(t, int64(250), stats.TotalEarnings)
	assert.Equal(t, int64(250), stats.PendingEarnings)
	assert.Equal(t, int64(1), stats.ConversionCount)
	assert.Equal(t, stats.PendingEarnings+stats.PaidEarnings, stats.TotalEarnings)
}

func TestListReferrals_Pagination(t *testing.T) {
	svc, _, node := newTestService(t)
	ctx := context.Background()
	userID := node.Generate()

	aff, err := svc.Register(ctx, userID)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.RecordConversion(ctx, domain.RecordConversionRequest{
			Code:           aff.Code,
			ReferredUserID: node.Generate(),
			BaseAmount:     1000,
		})
		require.NoError(t, err)
	}

	page, err := svc.ListReferrals(ctx, domain.ListReferralsRequest{UserID: userID, PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, page.Referrals, 3)
	assert.True(t, page.HasMore)
	assert.NotEmpty(t, page.NextPageToken)

	rest, err := svc.ListReferrals(ctx, domain.ListReferralsRequest{
		UserID:    userID,
		PageSize:  3,
		PageToken: page.NextPageToken,
	})
	require.NoError(t, err)
	assert.Len(t, rest.Referrals, 2)
	assert.False(t, rest.HasMore)
}

func TestSetActive_NotFound(t *testing.T) {
	svc, _, node := newTestService(t)

	err := svc.SetActive(context.Background(), node.Generate(), false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
