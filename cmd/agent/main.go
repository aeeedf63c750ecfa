package main

import (
	"context"
	"log"
	"time"

	"github.com/KH1188/juliusos/internal/bootstrap"
	"github.com/KH1188/juliusos/internal/config"
	"github.com/KH1188/juliusos/internal/http/handler"
	"github.com/KH1188/juliusos/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	// 只有开启 recipe 锁时才需要 Redis
	var rdb *redis.Client
	if cfg.RecipeLock {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		var err error
		rdb, err = queue.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatalf("redis init failed: %v", err)
		}
		defer rdb.Close()
	}

	agent := bootstrap.NewAgent(cfg, rdb)
	defer agent.Close()

	engine := gin.Default()
	handler.NewAgentHandler(agent.Recipes, agent.Model, cfg.DefaultUserID, cfg.ContextWindowDays).Register(engine)

	log.Printf("starting agent server on :%s (model=%s, fallback=%s)", cfg.AgentPort, cfg.OllamaModel, cfg.OllamaFallbackModel)
	if err := engine.Run(":" + cfg.AgentPort); err != nil {
		log.Fatal(err)
	}
}
