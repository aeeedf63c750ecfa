// Package bootstrap 组装各进程共用的 recipe 运行时：Resource API 客户端、模型客户端、上下文聚合与 recipe 注册表
package bootstrap

import (
	"log"

	"github.com/KH1188/juliusos/internal/apiclient"
	"github.com/KH1188/juliusos/internal/config"
	"github.com/KH1188/juliusos/internal/contextbuilder"
	"github.com/KH1188/juliusos/internal/lease"
	"github.com/KH1188/juliusos/internal/ollama"
	"github.com/KH1188/juliusos/internal/prompt"
	"github.com/KH1188/juliusos/internal/recipe"

	"github.com/redis/go-redis/v9"
)

type Agent struct {
	API     *apiclient.Client
	Model   *ollama.Client
	Context *contextbuilder.Builder
	Recipes *recipe.Registry
}

// NewAgent rdb 为 nil 或未开启 RECIPE_LOCK 时不加锁
func NewAgent(cfg config.AppConfig, rdb *redis.Client) *Agent {
	api := apiclient.New(cfg.APIURL, apiclient.DefaultTimeout)
	model := ollama.New(ollama.Config{
		BaseURL:            cfg.OllamaURL,
		Model:              cfg.OllamaModel,
		FallbackModel:      cfg.OllamaFallbackModel,
		DefaultTemperature: cfg.DefaultTemperature,
	})
	builder := contextbuilder.New(api)

	deps := recipe.Deps{
		Context:             builder,
		Model:               model,
		Prompts:             prompt.NewStore(cfg.PromptsDir),
		API:                 api,
		CreativeTemperature: cfg.CreativeTemperature,
		ProjectRoot:         cfg.ProjectRoot,
	}
	if cfg.RecipeLock && rdb != nil {
		deps.Locker = lease.NewManager(rdb, 0)
		log.Println("recipe lock enabled")
	}
	return &Agent{
		API:     api,
		Model:   model,
		Context: builder,
		Recipes: recipe.NewRegistry(deps),
	}
}

// Close 释放 HTTP 客户端的空闲连接
func (a *Agent) Close() {
	a.API.Close()
	a.Model.Close()
}
