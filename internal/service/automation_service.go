package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/KH1188/juliusos/internal/domain"
	"github.com/KH1188/juliusos/internal/repo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// AutomationService 规则 CRUD，写入后在 Redis 上发布变更
type AutomationService struct {
	db  *pgxpool.Pool
	rdb *redis.Client
}

func NewAutomationService(db *pgxpool.Pool, rdb *redis.Client) *AutomationService {
	return &AutomationService{db: db, rdb: rdb}
}

type RuleParams struct {
	UserID    int64
	Name      string
	Trigger   domain.Trigger
	Condition domain.Condition
	Action    domain.Action
	Active    bool
}

func (s *AutomationService) CreateRule(ctx context.Context, p RuleParams) (*domain.AutomationRule, error) {
	r := domain.AutomationRule{
		ID:        uuid.New(),
		UserID:    p.UserID,
		Name:      p.Name,
		Trigger:   p.Trigger,
		Condition: p.Condition,
		Action:    p.Action,
		Active:    p.Active,
	}
	if err := repo.CreateRule(ctx, s.db, &r); err != nil {
		return nil, err
	}
	s.publish(ctx, domain.RuleUpserted, r.ID)
	return &r, nil
}

func (s *AutomationService) ListRules(ctx context.Context, userID int64, active *bool) ([]domain.AutomationRule, error) {
	return repo.ListRules(ctx, s.db, userID, active)
}

func (s *AutomationService) GetRule(ctx context.Context, id uuid.UUID) (*domain.AutomationRule, error) {
	return repo.GetRuleByID(ctx, s.db, id)
}

// RulePatch 部分更新，nil 字段保持原值
type RulePatch struct {
	Name      *string
	Trigger   *domain.Trigger
	Condition *domain.Condition
	Action    *domain.Action
	Active    *bool
}

// Apply 只覆盖请求中出现的字段
func (p RulePatch) Apply(r *domain.AutomationRule) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Trigger != nil {
		r.Trigger = *p.Trigger
	}
	if p.Condition != nil {
		r.Condition = *p.Condition
	}
	if p.Action != nil {
		r.Action = *p.Action
	}
	if p.Active != nil {
		r.Active = *p.Active
	}
}

func (s *AutomationService) UpdateRule(ctx context.Context, id uuid.UUID, p RulePatch) (*domain.AutomationRule, error) {
	r, err := repo.GetRuleByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	p.Apply(r)
	if err := repo.UpdateRule(ctx, s.db, r); err != nil {
		return nil, err
	}
	s.publish(ctx, domain.RuleUpserted, id)
	return r, nil
}

func (s *AutomationService) ToggleRule(ctx context.Context, id uuid.UUID, active bool) error {
	if err := repo.ToggleRuleActive(ctx, s.db, id, active); err != nil {
		return err
	}
	s.publish(ctx, domain.RuleUpserted, id)
	return nil
}

func (s *AutomationService) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if err := repo.DeleteRule(ctx, s.db, id); err != nil {
		return err
	}
	s.publish(ctx, domain.RuleDeleted, id)
	return nil
}

func (s *AutomationService) ListLogs(ctx context.Context, f repo.LogFilter) ([]domain.AutomationLog, error) {
	return repo.ListAutomationLogs(ctx, s.db, f)
}

// publish 失败只记日志，规则已落库
func (s *AutomationService) publish(ctx context.Context, op domain.RuleChangeOp, id uuid.UUID) {
	if s.rdb == nil {
		return
	}
	b, _ := json.Marshal(domain.RuleChange{Op: op, RuleID: id})
	if err := s.rdb.Publish(ctx, domain.RuleChangeChannel, b).Err(); err != nil {
		log.Printf("publish rule change %s failed: %v", id, err)
	}
}
