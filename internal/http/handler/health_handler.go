package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type check struct {
	name string
	ping func(ctx context.Context) error
}

type HealthHandler struct {
	checks []check
}

func NewHealthHandler(db *pgxpool.Pool, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{checks: []check{
		{name: "db", ping: db.Ping},
		{name: "redis", ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	}}
}

// GET /healthz
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /readyz 依次 ping DB、Redis，任一失败即未就绪
func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx := c.Request.Context()
	for _, ck := range h.checks {
		if err := ck.ping(ctx); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ready": false, "error": ck.name + " ping failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ready": true, "timestamp": time.Now().UTC()})
}
