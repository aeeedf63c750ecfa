package recipe

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"time"

	"github.com/KH1188/juliusos/internal/ollama"

	"github.com/tidwall/gjson"
)

// DefaultMacroTargets 未指定目标时使用
var DefaultMacroTargets = map[string]any{
	"protein_g": 150,
	"calories":  2500,
	"carbs_g":   250,
	"fat_g":     80,
}

func (r *Registry) macroCoach(ctx context.Context, userID int64, p Params) (any, error) {
	targets := p.Map("targets")
	if targets == nil {
		targets = DefaultMacroTargets
	}
	snap := r.deps.Context.Build(ctx, userID, 1, []string{"meals"})

	text, err := r.generate(ctx, "macro_coach", map[string]any{
		"meals_json":   snap.List("meals"),
		"targets_json": targets,
	}, ollama.GenerateRequest{Temperature: ollama.Temp(0.3), Format: "json"})
	if err != nil {
		return nil, err
	}
	return decodeObject(text, MacroCoaching{
		Suggestions: []any{},
		Warnings:    []any{},
		Error:       parseFailure,
	}), nil
}

func (r *Registry) skinCoach(ctx context.Context, userID int64, _ Params) (any, error) {
	user := url.Values{"user_id": {formatID(userID)}}
	products := r.listOrEmpty(ctx, "/skin/products", withValues(user, "is_active", "true"))
	start := r.deps.Now().UTC().AddDate(0, 0, -7).Format(time.RFC3339)
	logs := r.listOrEmpty(ctx, "/skin/logs", withValues(user, "start", start))

	text, err := r.generate(ctx, "skin_coach", map[string]any{
		"products": products,
		"logs_7d":  logs,
	}, ollama.GenerateRequest{Temperature: ollama.Temp(0.3), Format: "json"})
	if err != nil {
		return nil, err
	}
	return decodeObject(text, SkinRoutine{
		Routine: []any{},
		Notes:   "Unable to generate recommendations. Please check your products and logs.",
	}), nil
}

func (r *Registry) bibleReflector(ctx context.Context, userID int64, p Params) (any, error) {
	snap := r.deps.Context.Build(ctx, userID, 30, []string{"bible"})
	recent := snap.List("recent_readings")
	if len(recent) > 5 {
		recent = recent[:5]
	}

	text, err := r.generate(ctx, "bible_reflector", map[string]any{
		"passage":            p.String("passage"),
		"recent_reflections": recent,
	}, ollama.GenerateRequest{Temperature: ollama.Temp(r.deps.CreativeTemperature), Format: "json"})
	if err != nil {
		return nil, err
	}
	return decodeObject(text, BibleReflection{
		Summary:        "Unable to generate summary",
		ThreeQuestions: []any{},
		PrayerPoints:   []any{},
		Error:          parseFailure,
	}), nil
}

func (r *Registry) profileUpdate(ctx context.Context, userID int64, _ Params) (any, error) {
	profile := json.RawMessage(`{}`)
	if r.deps.API != nil {
		raw, err := r.deps.API.GetObject(ctx, "/profile", url.Values{"user_id": {formatID(userID)}})
		if err != nil {
			log.Printf("profile_update: read profile failed: %v", err)
		} else if v := gjson.GetBytes(raw, "profile_json"); v.IsObject() {
			profile = json.RawMessage(v.Raw)
		}
	}
	snap := r.deps.Context.Build(ctx, userID, 1, []string{"tasks", "events", "habits", "meals", "goals"})

	text, err := r.generate(ctx, "profile_update", map[string]any{
		"profile_snapshot": profile,
		"today_context":    snap,
	}, ollama.GenerateRequest{Temperature: ollama.Temp(0.4), Format: "json"})
	if err != nil {
		return nil, err
	}
	return decodeObject(text, ProfileQuestion{Skip: true, Reason: "parse failure"}), nil
}

// listOrEmpty 辅助数据读取失败时按空列表处理
func (r *Registry) listOrEmpty(ctx context.Context, path string, q url.Values) []json.RawMessage {
	if r.deps.API == nil {
		return []json.RawMessage{}
	}
	items, err := r.deps.API.GetList(ctx, path, q)
	if err != nil {
		log.Printf("recipe: %s failed: %v", path, err)
		return []json.RawMessage{}
	}
	return items
}
