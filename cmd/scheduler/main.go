package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KH1188/juliusos/internal/automation"
	"github.com/KH1188/juliusos/internal/bootstrap"
	"github.com/KH1188/juliusos/internal/config"
	"github.com/KH1188/juliusos/internal/db"
	"github.com/KH1188/juliusos/internal/queue"
	"github.com/KH1188/juliusos/internal/repo"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化 Postgres
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.Init(initCtx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("postgres init failed: %v", err)
	}
	defer pool.Close()

	// 初始化 Redis
	rdb, err := queue.Connect(initCtx, cfg.RedisURL)
	cancel()
	if err != nil {
		log.Fatalf("redis init failed: %v", err)
	}
	defer rdb.Close()

	loc, err := time.LoadLocation(cfg.AutomationTimezone)
	if err != nil {
		log.Printf("invalid timezone %q, using Local: %v", cfg.AutomationTimezone, err)
		loc = time.Local
	}

	// recipe 在进程内分发，与 agent 服务使用同一套注册表
	agent := bootstrap.NewAgent(cfg, rdb)
	engine := automation.NewEngine(repo.NewAutomationStore(pool), agent.API, agent.Recipes, automation.Options{
		Location: loc,
		Notifier: queue.NewNotifier(rdb, queue.DefaultNotificationCap),
		Metrics:  automation.NewRedisMetrics(rdb),
		OnStop:   agent.Close,
	})
	if err := engine.Start(ctx); err != nil {
		log.Fatalf("start automation engine failed: %v", err)
	}

	go automation.StartHeartbeat(ctx, rdb, 30*time.Second, 10*time.Second)

	if cfg.AutomationHotReload {
		log.Println("automation hot reload enabled")
		go engine.Watch(ctx, automation.SubscribeRuleChanges(ctx, rdb))
	}

	<-ctx.Done()
	log.Println("shutting down scheduler")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	engine.Stop(stopCtx)
}
