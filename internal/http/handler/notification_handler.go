package handler

import (
	"context"
	"net/http"

	"github.com/KH1188/juliusos/internal/domain"
	"github.com/KH1188/juliusos/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type NotificationHandler struct {
	list        func(ctx context.Context, userID, limit int64) ([]domain.Notification, error)
	defaultUser int64
}

func NewNotificationHandler(rdb *redis.Client, defaultUser int64) *NotificationHandler {
	return &NotificationHandler{
		list: func(ctx context.Context, userID, limit int64) ([]domain.Notification, error) {
			return queue.ListNotifications(ctx, rdb, userID, limit)
		},
		defaultUser: defaultUser,
	}
}

// GET /api/v1/notifications?user_id=&count=
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	uid := userID(c, h.defaultUser)
	count := int64(intQuery(c, "count", 50))
	items, err := h.list(c.Request.Context(), uid, count)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list notifications failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "count": len(items), "items": items})
}
