package repo

import (
	"context"

	"github.com/KH1188/juliusos/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ruleColumns = "id, user_id, name, trigger_json, condition_json, action_json, is_active, last_run_ts, created_at, updated_at"

func scanRule(row pgx.Row) (*domain.AutomationRule, error) {
	var r domain.AutomationRule
	if err := row.Scan(
		&r.ID, &r.UserID, &r.Name, &r.Trigger, &r.Condition, &r.Action, &r.Active, &r.LastRunAt, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRule 创建自动化规则
func CreateRule(ctx context.Context, db *pgxpool.Pool, r *domain.AutomationRule) error {
	row := db.QueryRow(ctx, `
		INSERT INTO automation_rules (id, user_id, name, trigger_json, condition_json, action_json, is_active, last_run_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, r.ID, r.UserID, r.Name, r.Trigger, r.Condition, r.Action, r.Active, r.LastRunAt)
	return row.Scan(&r.CreatedAt, &r.UpdatedAt)
}

// ListRules 按用户与 is_active 过滤（nil 表示不过滤；userID<=0 表示所有用户）
func ListRules(ctx context.Context, db *pgxpool.Pool, userID int64, active *bool) ([]domain.AutomationRule, error) {
	query := "SELECT " + ruleColumns + " FROM automation_rules WHERE ($1 <= 0 OR user_id = $1)"
	args := []any{userID}
	if active != nil {
		query += " AND is_active=$2"
		args = append(args, *active)
	}
	query += " ORDER BY created_at"
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []domain.AutomationRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *r)
	}
	return res, rows.Err()
}

// GetRuleByID 根据 ID 查询规则
func GetRuleByID(ctx context.Context, db *pgxpool.Pool, id uuid.UUID) (*domain.AutomationRule, error) {
	r, err := scanRule(db.QueryRow(ctx, "SELECT "+ruleColumns+" FROM automation_rules WHERE id=$1", id))
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

// UpdateRule 覆盖规则的可编辑字段
func UpdateRule(ctx context.Context, db *pgxpool.Pool, r *domain.AutomationRule) error {
	row := db.QueryRow(ctx, `
		UPDATE automation_rules
		SET name=$2, trigger_json=$3, condition_json=$4, action_json=$5, is_active=$6, updated_at=NOW()
		WHERE id=$1
		RETURNING updated_at
	`, r.ID, r.Name, r.Trigger, r.Condition, r.Action, r.Active)
	if err := row.Scan(&r.UpdatedAt); err != nil {
		return notFound(err)
	}
	return nil
}

// ToggleRuleActive 启停一条规则
func ToggleRuleActive(ctx context.Context, db *pgxpool.Pool, id uuid.UUID, active bool) error {
	tag, err := db.Exec(ctx, `
		UPDATE automation_rules
		SET is_active=$2, updated_at=NOW()
		WHERE id=$1
	`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRule 删除规则，日志级联删除
func DeleteRule(ctx context.Context, db *pgxpool.Pool, id uuid.UUID) error {
	tag, err := db.Exec(ctx, `DELETE FROM automation_rules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
