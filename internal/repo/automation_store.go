package repo

import (
	"context"

	"github.com/KH1188/juliusos/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AutomationStore 自动化引擎使用的规则读取与执行记录
type AutomationStore struct {
	db *pgxpool.Pool
}

func NewAutomationStore(db *pgxpool.Pool) *AutomationStore {
	return &AutomationStore{db: db}
}

func (s *AutomationStore) ListActiveRules(ctx context.Context) ([]domain.AutomationRule, error) {
	active := true
	return ListRules(ctx, s.db, 0, &active)
}

func (s *AutomationStore) GetRule(ctx context.Context, id uuid.UUID) (*domain.AutomationRule, error) {
	return GetRuleByID(ctx, s.db, id)
}

func (s *AutomationStore) RecordExecution(ctx context.Context, l *domain.AutomationLog) error {
	return RecordExecution(ctx, s.db, l)
}
