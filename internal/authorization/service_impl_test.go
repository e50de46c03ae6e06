package authorization

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
)

func newAuthzService(t *testing.T) (Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&UserRole{}))

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Enforcer: enforcer,
	})
	return svc, db, node
}

func assignRole(t *testing.T, db *gorm.DB, userID snowflake.ID, role string) {
	t.Helper()
	require.NoError(t, db.Save(&UserRole{
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}).Error)
}

func TestAuthorize_AdminAllowed(t *testing.T) {
	svc, db, node := newAuthzService(t)
	ctx := context.Background()

	admin := node.Generate()
	assignRole(t, db, admin, RoleAdmin)

	assert.NoError(t, svc.Authorize(ctx, admin, ObjectPayout, ActionPayoutTransition))
	assert.NoError(t, svc.Authorize(ctx, admin, ObjectCredit, ActionCreditGrant))
	assert.NoError(t, svc.Authorize(ctx, admin, ObjectAffiliate, ActionAffiliateModerate))
}

func TestAuthorize_MemberDenied(t *testing.T) {
	svc, db, node := newAuthzService(t)
	ctx := context.Background()

	member := node.Generate()
	assignRole(t, db, member, RoleMember)

	err := svc.Authorize(ctx, member, ObjectPayout, ActionPayoutTransition)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorize_NoRoleDenied(t *testing.T) {
	svc, _, node := newAuthzService(t)

	err := svc.Authorize(context.Background(), node.Generate(), ObjectCredit, ActionCreditGrant)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorize_InvalidInputs(t *testing.T) {
	svc, db, node := newAuthzService(t)
	ctx := context.Background()

	admin := node.Generate()
	assignRole(t, db, admin, RoleAdmin)

	assert.ErrorIs(t, svc.Authorize(ctx, 0, ObjectPayout, ActionPayoutTransition), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, admin, " ", ActionPayoutTransition), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, admin, ObjectPayout, ""), ErrInvalidAction)
}

func TestAuthorize_RoleDowngradeRevokes(t *testing.T) {
	svc, db, node := newAuthzService(t)
	ctx := context.Background()

	user := node.Generate()
	assignRole(t, db, user, RoleAdmin)
	require.NoError(t, svc.Authorize(ctx, user, ObjectPayout, ActionPayoutTransition))

	assignRole(t, db, user, RoleMember)
	err := svc.Authorize(ctx, user, ObjectPayout, ActionPayoutTransition)
	assert.ErrorIs(t, err, ErrForbidden)
}
