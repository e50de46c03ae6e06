package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/domijob/domijob/internal/notification/domain"
	"github.com/domijob/domijob/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("notification.service"),
		genID: p.GenID,
	}
}

// Notify inserts a notification row. Errors are logged and swallowed so a
// failed insert never rolls back the ledger mutation that triggered it.
func (s *Service) Notify(ctx context.Context, req domain.NotifyRequest) {
	if req.UserID == 0 || req.Type == "" {
		return
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	n := domain.Notification{
		ID:        s.genID.Generate(),
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		s.log.Warn("failed to write notification",
			zap.String("type", string(req.Type)),
			zap.String("user_id", req.UserID.String()),
			zap.Error(err))
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	stmt := s.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ?", req.UserID)
	if req.UnreadOnly {
		stmt = stmt.Where("read = ?", false)
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err == nil && cursor.ID != "" {
			if id, err := snowflake.ParseString(cursor.ID); err == nil {
				stmt = stmt.Where("id < ?", id)
			}
		}
	}

	var items []*domain.Notification
	if err := stmt.
		Order("created_at desc, id desc").
		Limit(pageSize + 1).
		Find(&items).Error; err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(n *domain.Notification) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        n.ID.String(),
			CreatedAt: n.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	notifications := make([]domain.Notification, 0, len(items))
	for _, item := range items {
		notifications = append(notifications, *item)
	}

	return domain.ListResponse{
		PageInfo:      *pageInfo,
		Notifications: notifications,
	}, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID snowflake.ID) error {
	result := s.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
