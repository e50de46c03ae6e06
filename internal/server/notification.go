package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	notificationdomain "github.com/domijob/domijob/internal/notification/domain"
)

func (s *Server) ListNotifications(c *gin.Context) {
	user, _ := userID(c)

	resp, err := s.notificationSvc.List(c.Request.Context(), notificationdomain.ListRequest{
		UserID:     user,
		UnreadOnly: c.Query("unread") == "true",
		PageToken:  c.Query("page_token"),
		PageSize:   queryInt(c, "page_size"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) MarkNotificationRead(c *gin.Context) {
	user, _ := userID(c)

	notificationID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid notification id"))
		return
	}

	if err := s.notificationSvc.MarkRead(c.Request.Context(), user, notificationID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
