package repo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/KH1188/juliusos/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GetProfile 查询用户画像，不存在时返回空对象
func GetProfile(ctx context.Context, db *pgxpool.Pool, userID int64) (*domain.Profile, error) {
	p := domain.Profile{UserID: userID, Profile: json.RawMessage(`{}`)}
	err := db.QueryRow(ctx, `
		SELECT profile_json, updated_at FROM profiles WHERE user_id=$1
	`, userID).Scan(&p.Profile, &p.UpdatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile 更新画像并追加 profile_history，同一事务
func UpsertProfile(ctx context.Context, db *pgxpool.Pool, userID int64, profile json.RawMessage) (*domain.Profile, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var previous json.RawMessage
	err = tx.QueryRow(ctx, `SELECT profile_json FROM profiles WHERE user_id=$1`, userID).Scan(&previous)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	p := domain.Profile{UserID: userID, Profile: profile}
	if err := tx.QueryRow(ctx, `
		INSERT INTO profiles (user_id, profile_json, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET profile_json=EXCLUDED.profile_json, updated_at=NOW()
		RETURNING updated_at
	`, userID, profile).Scan(&p.UpdatedAt); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO profile_history (id, user_id, previous_json, current_json, changed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), userID, previous, profile, p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}
