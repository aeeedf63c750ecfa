package db

import (
	"context"
	"fmt"

	"github.com/KH1188/juliusos/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Init(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	//连接测试
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// resourceDDL 每个资源一张表，业务字段存 data(JSONB)，ts 为时间窗口过滤列
func resourceDDL(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL,
            ts TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            data JSONB NOT NULL DEFAULT '{}'::jsonb,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user_ts ON %s(user_id, ts);`, table, table),
	}
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	var ddl []string
	for _, r := range domain.Resources {
		ddl = append(ddl, resourceDDL(r.Table)...)
	}
	ddl = append(ddl,
		`CREATE TABLE IF NOT EXISTS automation_rules (
            id UUID PRIMARY KEY,
            user_id BIGINT NOT NULL,
            name TEXT NOT NULL,
            trigger_json JSONB NOT NULL,
            condition_json JSONB NOT NULL,
            action_json JSONB NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            last_run_ts TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS automation_logs (
            id UUID PRIMARY KEY,
            rule_id UUID NOT NULL REFERENCES automation_rules(id) ON DELETE CASCADE,
            dt TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            result_json JSONB
        );`,
		`CREATE INDEX IF NOT EXISTS idx_automation_logs_rule_dt ON automation_logs(rule_id, dt);`,
		`CREATE TABLE IF NOT EXISTS profiles (
            user_id BIGINT PRIMARY KEY,
            profile_json JSONB NOT NULL DEFAULT '{}'::jsonb,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS profile_history (
            id UUID PRIMARY KEY,
            user_id BIGINT NOT NULL,
            previous_json JSONB,
            current_json JSONB NOT NULL,
            changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	)
	for _, q := range ddl {
		if _, err := pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
