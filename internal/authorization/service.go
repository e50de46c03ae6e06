package authorization

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidActor  = errors.New("invalid actor")
	ErrInvalidObject = errors.New("invalid object")
	ErrInvalidAction = errors.New("invalid action")
	ErrForbidden     = errors.New("forbidden")
)

const (
	ObjectPayout    = "payout"
	ObjectCredit    = "credit"
	ObjectAffiliate = "affiliate"
)

const (
	ActionPayoutTransition  = "payout.transition"
	ActionCreditGrant       = "credit.grant"
	ActionAffiliateModerate = "affiliate.moderate"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// UserRole assigns a platform role to a user. Users without a row are
// ordinary members and hold no administrative permissions.
type UserRole struct {
	UserID    snowflake.ID `gorm:"column:user_id;primaryKey"`
	Role      string       `gorm:"column:role;not null"`
	CreatedAt time.Time    `gorm:"column:created_at"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

type Service interface {
	Authorize(ctx context.Context, userID snowflake.ID, object string, action string) error
}
