package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/KH1188/juliusos/internal/domain"
	"github.com/KH1188/juliusos/internal/repo"
	"github.com/KH1188/juliusos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RuleService 自动化规则管理，由 service.AutomationService 实现
type RuleService interface {
	CreateRule(ctx context.Context, p service.RuleParams) (*domain.AutomationRule, error)
	ListRules(ctx context.Context, userID int64, active *bool) ([]domain.AutomationRule, error)
	GetRule(ctx context.Context, id uuid.UUID) (*domain.AutomationRule, error)
	UpdateRule(ctx context.Context, id uuid.UUID, p service.RulePatch) (*domain.AutomationRule, error)
	ToggleRule(ctx context.Context, id uuid.UUID, active bool) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
	ListLogs(ctx context.Context, f repo.LogFilter) ([]domain.AutomationLog, error)
}

type AutomationHandler struct {
	svc         RuleService
	defaultUser int64
}

func NewAutomationHandler(svc RuleService, defaultUser int64) *AutomationHandler {
	return &AutomationHandler{svc: svc, defaultUser: defaultUser}
}

// 规格只校验 JSON 形状，原文照常保存
type ruleRequest struct {
	UserID    int64            `json:"user_id"`
	Name      string           `json:"name" binding:"required"`
	Trigger   domain.Trigger   `json:"trigger_json"`
	Condition domain.Condition `json:"condition_json"`
	Action    domain.Action    `json:"action_json"`
	Active    *bool            `json:"is_active"` // 可选，默认 true
}

func (r ruleRequest) params(defaultUser int64) service.RuleParams {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	uid := r.UserID
	if uid <= 0 {
		uid = defaultUser
	}
	return service.RuleParams{
		UserID:    uid,
		Name:      r.Name,
		Trigger:   r.Trigger,
		Condition: r.Condition,
		Action:    r.Action,
		Active:    active,
	}
}

// PUT 为部分更新，未出现的字段保持原值
type ruleUpdateRequest struct {
	Name      *string           `json:"name"`
	Trigger   *domain.Trigger   `json:"trigger_json"`
	Condition *domain.Condition `json:"condition_json"`
	Action    *domain.Action    `json:"action_json"`
	Active    *bool             `json:"is_active"`
}

func (r ruleUpdateRequest) patch() service.RulePatch {
	return service.RulePatch{
		Name:      r.Name,
		Trigger:   r.Trigger,
		Condition: r.Condition,
		Action:    r.Action,
		Active:    r.Active,
	}
}

type ruleDTO struct {
	ID        string           `json:"id"`
	UserID    int64            `json:"user_id"`
	Name      string           `json:"name"`
	Trigger   domain.Trigger   `json:"trigger_json"`
	Condition domain.Condition `json:"condition_json"`
	Action    domain.Action    `json:"action_json"`
	Active    bool             `json:"is_active"`
	LastRunAt *string          `json:"last_run_ts,omitempty"`
}

func toRuleDTO(r *domain.AutomationRule) ruleDTO {
	var last *string
	if r.LastRunAt != nil {
		s := r.LastRunAt.Format(time.RFC3339)
		last = &s
	}
	return ruleDTO{
		ID:        r.ID.String(),
		UserID:    r.UserID,
		Name:      r.Name,
		Trigger:   r.Trigger,
		Condition: r.Condition,
		Action:    r.Action,
		Active:    r.Active,
		LastRunAt: last,
	}
}

// POST /api/v1/automations
func (h *AutomationHandler) CreateRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
		return
	}
	r, err := h.svc.CreateRule(c.Request.Context(), req.params(h.defaultUser))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create rule failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, toRuleDTO(r))
}

// GET /api/v1/automations?user_id=&is_active=true/false
func (h *AutomationHandler) ListRules(c *gin.Context) {
	var active *bool
	if v := c.Query("is_active"); v != "" {
		val := v == "true"
		active = &val
	}
	rules, err := h.svc.ListRules(c.Request.Context(), userID(c, h.defaultUser), active)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list rules failed", "detail": err.Error()})
		return
	}
	out := make([]ruleDTO, 0, len(rules))
	for i := range rules {
		out = append(out, toRuleDTO(&rules[i]))
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/v1/automations/:id
func (h *AutomationHandler) GetRule(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	r, err := h.svc.GetRule(c.Request.Context(), id)
	if err != nil {
		writeRepoError(c, "rule", err)
		return
	}
	c.JSON(http.StatusOK, toRuleDTO(r))
}

// PUT /api/v1/automations/:id
func (h *AutomationHandler) UpdateRule(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	var req ruleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
		return
	}
	if req.Name != nil && *req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
		return
	}
	r, err := h.svc.UpdateRule(c.Request.Context(), id, req.patch())
	if err != nil {
		writeRepoError(c, "rule", err)
		return
	}
	c.JSON(http.StatusOK, toRuleDTO(r))
}

type toggleRuleRequest struct {
	Active bool `json:"is_active"`
}

// POST /api/v1/automations/:id/toggle
func (h *AutomationHandler) ToggleRule(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	var req toggleRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.ToggleRule(c.Request.Context(), id, req.Active); err != nil {
		writeRepoError(c, "rule", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id.String(), "is_active": req.Active})
}

// DELETE /api/v1/automations/:id
func (h *AutomationHandler) DeleteRule(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteRule(c.Request.Context(), id); err != nil {
		writeRepoError(c, "rule", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id.String(), "deleted": true})
}

// GET /api/v1/automations/logs?rule_id=&start=&end=&limit=
func (h *AutomationHandler) ListLogs(c *gin.Context) {
	var f repo.LogFilter
	if v := c.Query("rule_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule_id"})
			return
		}
		f.RuleID = &id
	}
	var err error
	if f.Start, err = timeQuery(c, "start"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start", "detail": err.Error()})
		return
	}
	if f.End, err = timeQuery(c, "end"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end", "detail": err.Error()})
		return
	}
	f.Limit = intQuery(c, "limit", 100)

	logs, err := h.svc.ListLogs(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list logs failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, logs)
}

func ruleID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}
