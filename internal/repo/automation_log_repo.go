package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/KH1188/juliusos/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordExecution 追加一条执行日志并更新 last_run_ts，两者在同一事务中提交
func RecordExecution(ctx context.Context, db *pgxpool.Pool, l *domain.AutomationLog) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO automation_logs (id, rule_id, dt, result_json)
		VALUES ($1, $2, $3, $4)
	`, l.ID, l.RuleID, l.At, l.Result); err != nil {
		return fmt.Errorf("insert automation log: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE automation_rules SET last_run_ts=$1 WHERE id=$2
	`, l.At, l.RuleID); err != nil {
		return fmt.Errorf("update last_run_ts: %w", err)
	}
	return tx.Commit(ctx)
}

type LogFilter struct {
	RuleID *uuid.UUID
	Start  *time.Time
	End    *time.Time
	Limit  int
}

// ListAutomationLogs 按规则与时间过滤，最新在前
func ListAutomationLogs(ctx context.Context, db *pgxpool.Pool, f LogFilter) ([]domain.AutomationLog, error) {
	query := "SELECT id, rule_id, dt, result_json FROM automation_logs WHERE TRUE"
	args := []any{}
	if f.RuleID != nil {
		args = append(args, *f.RuleID)
		query += fmt.Sprintf(" AND rule_id=$%d", len(args))
	}
	if f.Start != nil {
		args = append(args, *f.Start)
		query += fmt.Sprintf(" AND dt >= $%d", len(args))
	}
	if f.End != nil {
		args = append(args, *f.End)
		query += fmt.Sprintf(" AND dt <= $%d", len(args))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY dt DESC LIMIT $%d", len(args))

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []domain.AutomationLog{}
	for rows.Next() {
		var l domain.AutomationLog
		if err := rows.Scan(&l.ID, &l.RuleID, &l.At, &l.Result); err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}
