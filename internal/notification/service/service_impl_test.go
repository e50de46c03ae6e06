package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/domijob/domijob/internal/notification/domain"
)

func newNotificationService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Notification{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{DB: db, Log: zap.NewNop(), GenID: node})
	return svc, db, node
}

func TestNotify_WritesRow(t *testing.T) {
	svc, db, node := newNotificationService(t)
	userID := node.Generate()

	svc.Notify(context.Background(), domain.NotifyRequest{
		UserID:  userID,
		Type:    domain.TypeAffiliateConversion,
		Title:   "New referral conversion",
		Message: "You earned 1000 cents commission.",
		Metadata: map[string]any{
			"commission_amount": 1000,
		},
	})

	var stored domain.Notification
	require.NoError(t, db.First(&stored, "user_id = ?", userID).Error)
	assert.Equal(t, domain.TypeAffiliateConversion, stored.Type)
	assert.False(t, stored.Read)
}

func TestNotify_DropsInvalidRequests(t *testing.T) {
	svc, db, node := newNotificationService(t)

	svc.Notify(context.Background(), domain.NotifyRequest{Type: domain.TypeCreditsLow})
	svc.Notify(context.Background(), domain.NotifyRequest{UserID: node.Generate()})

	var count int64
	require.NoError(t, db.Model(&domain.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestList_UnreadOnly(t *testing.T) {
	svc, _, node := newNotificationService(t)
	ctx := context.Background()
	userID := node.Generate()

	for i := 0; i < 3; i++ {
		svc.Notify(ctx, domain.NotifyRequest{
			UserID:  userID,
			Type:    domain.TypeCreditsLow,
			Title:   "Credits running low",
			Message: "You have 5 credits left.",
		})
	}

	all, err := svc.List(ctx, domain.ListRequest{UserID: userID, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, all.Notifications, 3)

	require.NoError(t, svc.MarkRead(ctx, userID, all.Notifications[0].ID))

	unread, err := svc.List(ctx, domain.ListRequest{UserID: userID, UnreadOnly: true, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, unread.Notifications, 2)
}

func TestMarkRead_OwnershipEnforced(t *testing.T) {
	svc, _, node := newNotificationService(t)
	ctx := context.Background()
	owner := node.Generate()

	svc.Notify(ctx, domain.NotifyRequest{
		UserID:  owner,
		Type:    domain.TypePayoutPaid,
		Title:   "Payout sent",
		Message: "Your payout has been sent.",
	})

	list, err := svc.List(ctx, domain.ListRequest{UserID: owner, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, list.Notifications, 1)

	err = svc.MarkRead(ctx, node.Generate(), list.Notifications[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, svc.MarkRead(ctx, owner, list.Notifications[0].ID))
}
