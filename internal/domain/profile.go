package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Profile struct {
	UserID    int64           `json:"user_id"`
	Profile   json.RawMessage `json:"profile_json"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ProfileHistory 每次更新 profile 时追加一条，与更新处于同一事务
type ProfileHistory struct {
	ID        uuid.UUID       `json:"id"`
	UserID    int64           `json:"user_id"`
	Previous  json.RawMessage `json:"previous_json"`
	Current   json.RawMessage `json:"current_json"`
	ChangedAt time.Time       `json:"changed_at"`
}
