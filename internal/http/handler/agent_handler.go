package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/KH1188/juliusos/internal/recipe"

	"github.com/gin-gonic/gin"
)

// Recipes 进程内 recipe 分发，由 recipe.Registry 实现
type Recipes interface {
	Run(ctx context.Context, name string, userID int64, params recipe.Params) (any, error)
	RunAction(ctx context.Context, action string, userID int64) (any, error)
	Ask(ctx context.Context, userID int64, query string, windowDays int) (*recipe.AskResult, error)
	Names() []string
}

// ModelServer 模型服务探活与模型列表，由 ollama.Client 实现
type ModelServer interface {
	CheckHealth(ctx context.Context) bool
	ListModels(ctx context.Context) []string
	Model() string
}

type AgentHandler struct {
	recipes     Recipes
	model       ModelServer
	defaultUser int64
	windowDays  int
}

func NewAgentHandler(recipes Recipes, model ModelServer, defaultUser int64, windowDays int) *AgentHandler {
	return &AgentHandler{recipes: recipes, model: model, defaultUser: defaultUser, windowDays: windowDays}
}

// Register 挂载 agent 路由
func (h *AgentHandler) Register(rg gin.IRoutes) {
	rg.GET("/health", h.Health)
	rg.GET("/models", h.Models)
	rg.GET("/recipes", h.ListRecipes)
	rg.POST("/recipes/:name", h.RunRecipe)
	rg.POST("/digest/daily", h.runFixed("daily_digest"))
	rg.POST("/review/weekly", h.runFixed("weekly_review"))
	rg.POST("/actions/run", h.RunAction)
	rg.POST("/ask", h.Ask)
}

// GET /health 模型服务不可用时为 degraded，本服务仍然可用
func (h *AgentHandler) Health(c *gin.Context) {
	ok := h.model.CheckHealth(c.Request.Context())
	status := "ok"
	if !ok {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "ollama_available": ok, "model": h.model.Model()})
}

// GET /models
func (h *AgentHandler) Models(c *gin.Context) {
	models := h.model.ListModels(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"models": models, "count": len(models)})
}

// GET /recipes
func (h *AgentHandler) ListRecipes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"recipes": h.recipes.Names()})
}

type recipeRequest struct {
	UserID int64         `json:"user_id"`
	Params recipe.Params `json:"params"`
}

func (h *AgentHandler) bindRecipe(c *gin.Context) (recipeRequest, bool) {
	var req recipeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
			return req, false
		}
	}
	if req.UserID <= 0 {
		req.UserID = h.defaultUser
	}
	return req, true
}

// POST /recipes/:name body {user_id, params}
func (h *AgentHandler) RunRecipe(c *gin.Context) {
	req, ok := h.bindRecipe(c)
	if !ok {
		return
	}
	res, err := h.recipes.Run(c.Request.Context(), c.Param("name"), req.UserID, req.Params)
	if err != nil {
		writeRecipeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /digest/daily、/review/weekly body {user_id}
func (h *AgentHandler) runFixed(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := h.bindRecipe(c)
		if !ok {
			return
		}
		res, err := h.recipes.Run(c.Request.Context(), name, req.UserID, nil)
		if err != nil {
			writeRecipeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// POST /actions/run?action_name=&user_id=
func (h *AgentHandler) RunAction(c *gin.Context) {
	name := c.Query("action_name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action_name is required"})
		return
	}
	res, err := h.recipes.RunAction(c.Request.Context(), name, userID(c, h.defaultUser))
	if err != nil {
		writeRecipeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type askRequest struct {
	Query      string `json:"query" binding:"required"`
	UserID     int64  `json:"user_id"`
	WindowDays *int   `json:"context_window_days"`
}

// POST /ask
func (h *AgentHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
		return
	}
	if req.UserID <= 0 {
		req.UserID = h.defaultUser
	}
	days := h.windowDays
	if req.WindowDays != nil && *req.WindowDays >= 0 {
		days = *req.WindowDays
	}
	res, err := h.recipes.Ask(c.Request.Context(), req.UserID, req.Query, days)
	if err != nil {
		writeRecipeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// writeRecipeError 未知名称 404，锁冲突 409，其余（模型、传输错误）500
func writeRecipeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, recipe.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "detail": err.Error()})
	case errors.Is(err, recipe.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "busy", "detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recipe failed", "detail": err.Error()})
	}
}
