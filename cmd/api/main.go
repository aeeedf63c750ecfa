package main

import (
	"context"
	"log"
	"time"

	"github.com/KH1188/juliusos/internal/config"
	"github.com/KH1188/juliusos/internal/db"
	"github.com/KH1188/juliusos/internal/http/handler"
	"github.com/KH1188/juliusos/internal/queue"
	"github.com/KH1188/juliusos/internal/service"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化数据库连接
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Init(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("postgres init failed: %v", err)
	}
	defer pool.Close()

	// 确保表结构存在
	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema failed: %v", err)
	}

	// 初始化 Redis
	rdb, err := queue.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis init failed: %v", err)
	}
	defer rdb.Close()

	// 组装服务与路由
	resources := handler.NewResourceHandler(service.NewResourceService(pool), cfg.DefaultUserID)
	profiles := handler.NewProfileHandler(service.NewProfileService(pool), cfg.DefaultUserID)
	rules := handler.NewAutomationHandler(service.NewAutomationService(pool, rdb), cfg.DefaultUserID)
	notes := handler.NewNotificationHandler(rdb, cfg.DefaultUserID)
	metrics := handler.NewMetricsHandler(rdb)
	health := handler.NewHealthHandler(pool, rdb)

	engine := gin.Default()

	// 健康与就绪
	engine.GET("/healthz", health.Healthz)
	engine.GET("/readyz", health.Readyz)

	api := engine.Group("/api/v1")
	resources.Register(api)
	{
		api.GET("/profile", profiles.GetProfile)
		api.PUT("/profile", profiles.UpdateProfile)

		api.GET("/automations", rules.ListRules)
		api.POST("/automations", rules.CreateRule)
		api.GET("/automations/logs", rules.ListLogs)
		api.GET("/automations/:id", rules.GetRule)
		api.PUT("/automations/:id", rules.UpdateRule)
		api.DELETE("/automations/:id", rules.DeleteRule)
		api.POST("/automations/:id/toggle", rules.ToggleRule)

		api.GET("/notifications", notes.ListNotifications)
		api.GET("/metrics/automation", metrics.GetAutomationMetrics)
	}

	log.Printf("starting api server on :%s", cfg.HTTPPort)
	if err := engine.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
