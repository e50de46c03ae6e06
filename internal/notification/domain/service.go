package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/domijob/domijob/pkg/db/pagination"
)

type NotifyRequest struct {
	UserID   snowflake.ID
	Type     NotificationType
	Title    string
	Message  string
	Metadata map[string]any
}

type ListRequest struct {
	UserID     snowflake.ID
	UnreadOnly bool
	PageToken  string
	PageSize   int
}

type ListResponse struct {
	pagination.PageInfo
	Notifications []Notification `json:"notifications"`
}

// Service is a fire-and-forget sink: Notify never returns an error to the
// caller's ledger path; failures are logged and dropped.
type Service interface {
	Notify(ctx context.Context, req NotifyRequest)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	MarkRead(ctx context.Context, userID, notificationID snowflake.ID) error
}

var (
	ErrNotFound = errors.New("not_found")
)
