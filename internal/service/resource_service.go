package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KH1188/juliusos/internal/domain"
	"github.com/KH1188/juliusos/internal/repo"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

type ResourceService struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewResourceService(db *pgxpool.Pool) *ResourceService {
	return &ResourceService{db: db, now: time.Now}
}

// stamp 从 data 中取出时间字段作为 ts；缺失时取当前时间并回写 data
func (s *ResourceService) stamp(spec domain.ResourceSpec, data map[string]any) (time.Time, json.RawMessage, error) {
	if data == nil {
		data = map[string]any{}
	}
	delete(data, "id")
	delete(data, "user_id")

	raw, err := json.Marshal(data)
	if err != nil {
		return time.Time{}, nil, err
	}
	v := gjson.GetBytes(raw, spec.TimeField)
	if v.Exists() && v.Type == gjson.String && v.Str != "" {
		ts, err := domain.ParseTime(v.Str)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("field %s: %w", spec.TimeField, err)
		}
		return ts, raw, nil
	}

	ts := s.now().UTC()
	raw, err = sjson.SetBytes(raw, spec.TimeField, ts.Format(time.RFC3339))
	if err != nil {
		return time.Time{}, nil, err
	}
	return ts, raw, nil
}

func (s *ResourceService) Create(ctx context.Context, spec domain.ResourceSpec, userID int64, data map[string]any) (*domain.Record, error) {
	ts, raw, err := s.stamp(spec, data)
	if err != nil {
		return nil, err
	}
	r := domain.Record{UserID: userID, TS: ts, Data: raw}
	if err := repo.InsertRecord(ctx, s.db, spec, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *ResourceService) List(ctx context.Context, spec domain.ResourceSpec, f domain.ListFilter) ([]domain.Record, error) {
	return repo.ListRecords(ctx, s.db, spec, f)
}

func (s *ResourceService) Get(ctx context.Context, spec domain.ResourceSpec, id int64) (*domain.Record, error) {
	return repo.GetRecord(ctx, s.db, spec, id)
}

func (s *ResourceService) Update(ctx context.Context, spec domain.ResourceSpec, id int64, data map[string]any) (*domain.Record, error) {
	ts, raw, err := s.stamp(spec, data)
	if err != nil {
		return nil, err
	}
	r := domain.Record{ID: id, TS: ts, Data: raw}
	if err := repo.UpdateRecord(ctx, s.db, spec, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *ResourceService) Delete(ctx context.Context, spec domain.ResourceSpec, id int64) error {
	return repo.DeleteRecord(ctx, s.db, spec, id)
}

type ProfileService struct {
	db *pgxpool.Pool
}

func NewProfileService(db *pgxpool.Pool) *ProfileService {
	return &ProfileService{db: db}
}

func (s *ProfileService) Get(ctx context.Context, userID int64) (*domain.Profile, error) {
	return repo.GetProfile(ctx, s.db, userID)
}

func (s *ProfileService) Update(ctx context.Context, userID int64, profile json.RawMessage) (*domain.Profile, error) {
	if !json.Valid(profile) || !gjson.ParseBytes(profile).IsObject() {
		return nil, fmt.Errorf("profile must be a JSON object")
	}
	return repo.UpsertProfile(ctx, s.db, userID, profile)
}
