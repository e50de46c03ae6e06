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

	affiliatedomain "github.com/domijob/domijob/internal/affiliate/domain"
	affiliaterepo "github.com/domijob/domijob/internal/affiliate/repository"
	"github.com/domijob/domijob/internal/clock"
	"github.com/domijob/domijob/internal/payout/domain"
	"github.com/domijob/domijob/internal/payout/repository"
)

type payoutFixture struct {
	svc       *Service
	db        *gorm.DB
	node      *snowflake.Node
	userID    snowflake.ID
	affiliate affiliatedomain.Affiliate
}

func newPayoutFixture(t *testing.T, pending int64) *payoutFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&affiliatedomain.Affiliate{}, &domain.Payout{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	userID := node.Generate()
	affiliate := affiliatedomain.Affiliate{
		ID:              node.Generate(),
		UserID:          userID,
		Code:            "TESTCODE",
		CommissionRate:  0.10,
		Active:          true,
		TotalEarnings:   pending,
		PendingEarnings: pending,
		PaymentMethod:   affiliatedomain.MethodPayPal,
		PaypalEmail:     "payee@example.com",
	}
	require.NoError(t, db.Create(&affiliate).Error)

	svc := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Repo:          repository.Provide(),
		AffiliateRepo: affiliaterepo.Provide(),
		Clock:         clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}).(*Service)

	return &payoutFixture{svc: svc, db: db, node: node, userID: userID, affiliate: affiliate}
}

func (f *payoutFixture) reload(t *testing.T) affiliatedomain.Affiliate {
	t.Helper()
	var stored affiliatedomain.Affiliate
	require.NoError(t, f.db.First(&stored, "id = ?", f.affiliate.ID).Error)
	return stored
}

func TestRequest_FullPendingByDefault(t *testing.T) {
	f := newPayoutFixture(t, 5000)
	ctx := context.Background()

	payout, err := f.svc.Request(ctx, domain.RequestPayoutRequest{UserID: f.userID})
	require.NoError(t, err)

	assert.Equal(t, int64(5000), payout.Amount)
	assert.Equal(t, domain.StatusPending, payout.Status)
	assert.Equal(t, affiliatedomain.MethodPayPal, payout.Method)

	stored := f.reload(t)
	assert.Zero(t, stored.PendingEarnings)
	assert.Equal(t, int64(5000), stored.TotalEarnings)
}

func TestRequest_PartialAmount(t *testing.T) {
	f := newPayoutFixture(t, 5000)
	ctx := context.Background()

	amount := int64(2000)
	payout, err := f.svc.Request(ctx, domain.RequestPayoutRequest{UserID: f.userID, Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), payout.Amount)

	stored := f.reload(t)
	assert.Equal(t, int64(3000), stored.PendingEarnings)
}

func TestRequest_BoundaryAmounts(t *testing.T) {
	tests := []struct {
		name    string
		pending int64
		amount  int64
		wantErr error
	}{
		{"exactly pending succeeds", 1000, 1000, nil},
		{"one over pending fails", 1000, 1001, domain.ErrInsufficientPending},
		{"zero fails", 1000, 0, domain.ErrInvalidAmount},
		{"negative fails", 1000, -5, domain.ErrInvalidAmount},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newPayoutFixture(t, tc.pending)

			amount := tc.amount
			_, err := f.svc.Request(context.Background(), domain.RequestPayoutRequest{
				UserID: f.userID,
				Amount: &amount,
			})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				stored := f.reload(t)
				assert.Equal(t, tc.pending, stored.PendingEarnings)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequest_MissingPaymentDetails(t *testing.T) {
	f := newPayoutFixture(t, 5000)
	require.NoError(t, f.db.Model(&affiliatedomain.Affiliate{}).
		Where("id = ?", f.affiliate.ID).
		Updates(map[string]any{"payment_method": "", "paypal_email": ""}).Error)

	_, err := f.svc.Request(context.Background(), domain.RequestPayoutRequest{UserID: f.userID})
	assert.ErrorIs(t, err, domain.ErrMissingPaymentDetails)
}

func TestRequest_ZeroPendingBalance(t *testing.T) {
	f := newPayoutFixture(t, 0)

	_, err := f.svc.Request(context.Background(), domain.RequestPayoutRequest{UserID: f.userID})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestRequest_NoAffiliate(t *testing.T) {
	f := newPayoutFixture(t, 1000)

	_, err := f.svc.Request(context.Background(), domain.RequestPayoutRequest{UserID: f.node.Generate()})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransition_PaidMovesToPaidEarnings(t *testing.T) {
	f := newPayoutFixture(t, 5000)
	ctx := context.Background()

	payout, err := f.svc.Request(ctx, domain.RequestPayoutRequest{UserID: f.userID})
	require.NoError(t, err)

	updated, err := f.svc.Transition(ctx, domain.TransitionRequest{
		PayoutID:      payout.ID,
		NewStatus:     domain.StatusPaid,
		TransactionID: "txn_123",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, updated.Status)
	require.NotNil(t, updated.TransactionID)
	assert.Equal(t, "txn_123", *updated.TransactionID)
	require.NotNil(t, updated.PaidAt)

	stored := f.reload(t)
	assert.Zero(t, stored.PendingEarnings)
	assert.Equal(t, int64(5000), stored.PaidEarnings)
	assert.Equal(t, stored.PendingEarnings+stored.PaidEarnings, stored.TotalEarnings)
}

func TestTransition_RejectedRestoresPending(t *testing.T) {
	f := newPayoutFixture(t, 5000)
	ctx := context.Background()

	payout, err := f.svc.Request(ctx, domain.RequestPayoutRequest{UserID: f.userID})
	require.NoError(t, err)

	updated, err := f.svc.Transition(ctx, domain.TransitionRequest{
		PayoutID:  payout.ID,
		NewStatus: domain.StatusRejected,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, updated.Status)

	stored := f.reload(t)
	assert.Equal(t, int64(5000), stored.PendingEarnings)
	assert.Zero(t, stored.PaidEarnings)
	assert.Equal(t, stored.PendingEarnings+stored.PaidEarnings, stored.TotalEarnings)
}

func TestTransition_ProcessingThenPaid(t *testing.T) {
	f := newPayoutFixture(t, 5000)
	ctx := context.Background()

	payout, err := f.svc.Request(ctx, domain.RequestPayoutRequest{UserID: f.userID})
	require.NoError(t, err)

	processing, err := f.svc.Transition(ctx, domain.TransitionRequest{
		PayoutID:  payout.ID,
		NewStatus: domain.StatusProcessing,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, processing.Status)

	// No balance change while processing.
	stored := f.reload(t)
	assert.Zero(t, stored.PendingEarnings)
	assert.Zero(t, stored.PaidEarnings)

	paid, err := f.svc.Transition(ctx, domain.TransitionRequest{
		PayoutID:  payout.ID,
		NewStatus: domain.StatusPaid,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)

	stored = f.reload(t)
	assert.Equal(t, int64(5000), stored.PaidEarnings)
}

func TestTransition_TerminalStatesAreFinal(t *testing.T) {
	f := newPayoutFixture(t, 5000)
	ctx := context.Background()

	payout, err := f.svc.Request(ctx, domain.RequestPayoutRequest{UserID: f.userID})
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, domain.TransitionRequest{PayoutID: payout.ID, NewStatus: domain.StatusPaid})
	require.NoError(t, err)

	for _, next := range []domain.Status{domain.StatusPending, domain.StatusProcessing, domain.StatusRejected, domain.StatusPaid} {
		_, err := f.svc.Transition(ctx, domain.TransitionRequest{PayoutID: payout.ID, NewStatus: next})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	}

	// The affiliate balance was not touched again.
	stored := f.reload(t)
	assert.Equal(t, int64(5000), stored.PaidEarnings)
}

func TestGet_OwnershipEnforced(t *testing.T) {
	f := newPayoutFixture(t, 5000)
	ctx := context.Background()

	payout, err := f.svc.Request(ctx, domain.RequestPayoutRequest{UserID: f.userID})
	require.NoError(t, err)

	otherUser := f.node.Generate()
	other := affiliatedomain.Affiliate{
		ID:     f.node.Generate(),
		UserID: otherUser,
		Code:   "OTHERCDE",
		Active: true,
	}
	require.NoError(t, f.db.Create(&other).Error)

	_, err = f.svc.Get(ctx, otherUser, payout.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.svc.Get(ctx, f.userID, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.ID, got.ID)
}

func TestList_ReturnsOwnPayouts(t *testing.T) {
	f := newPayoutFixture(t, 9000)
	ctx := context.Background()

	for _, amount := range []int64{1000, 2000, 3000} {
		a := amount
		_, err := f.svc.Request(ctx, domain.RequestPayoutRequest{UserID: f.userID, Amount: &a})
		require.NoError(t, err)
	}

	resp, err := f.svc.List(ctx, domain.ListRequest{UserID: f.userID, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, resp.Payouts, 3)
	assert.False(t, resp.HasMore)
}
