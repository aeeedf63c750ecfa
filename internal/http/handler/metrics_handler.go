package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/KH1188/juliusos/internal/automation"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type MetricsHandler struct {
	read func(ctx context.Context) (*automation.MetricsSnapshot, error)
}

func NewMetricsHandler(rdb *redis.Client) *MetricsHandler {
	return &MetricsHandler{read: func(ctx context.Context) (*automation.MetricsSnapshot, error) {
		return automation.ReadMetrics(ctx, rdb)
	}}
}

// GET /api/v1/metrics/automation
func (h *MetricsHandler) GetAutomationMetrics(c *gin.Context) {
	s, err := h.read(c.Request.Context())
	if err != nil {
		log.Printf("failed to get automation metrics: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, s) // counters, last（每个计数器最近一次变化时间）, scheduler_alive
}
