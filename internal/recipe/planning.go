package recipe

import (
	"context"
	"encoding/json"
	"time"

	"github.com/KH1188/juliusos/internal/contextbuilder"
	"github.com/KH1188/juliusos/internal/domain"
	"github.com/KH1188/juliusos/internal/ollama"

	"github.com/tidwall/gjson"
)

func (r *Registry) dailyDigest(ctx context.Context, userID int64, _ Params) (any, error) {
	snap := r.deps.Context.Build(ctx, userID, 7,
		[]string{"tasks", "events", "habits", "meals", "workouts", "sleep", "journal", "bible"})

	text, err := r.generate(ctx, "daily_digest", map[string]any{
		"window_days":  snap.WindowDays,
		"context_json": snap,
	}, ollama.GenerateRequest{Temperature: ollama.Temp(0.3), Format: "json"})
	if err != nil {
		return nil, err
	}
	return decodeObject(text, DailyDigest{
		Plan:          []any{},
		Conflicts:     []any{},
		Blocks:        []any{},
		Health:        DigestHealth{MacroDelta: "Unable to analyze"},
		Bible:         DigestBible{},
		JournalPrompt: "What are you grateful for today?",
		Error:         parseFailure,
	}), nil
}

func (r *Registry) weeklyReview(ctx context.Context, userID int64, _ Params) (any, error) {
	snap := r.deps.Context.Build(ctx, userID, 7, nil)

	text, err := r.generate(ctx, "weekly_review", map[string]any{
		"context_json": snap,
	}, ollama.GenerateRequest{Temperature: ollama.Temp(0.3), Format: "json"})
	if err != nil {
		return nil, err
	}
	return decodeObject(text, WeeklyReview{
		Wins:         []any{},
		Improvements: []any{},
		Metrics:      map[string]any{},
		GoalsCheckin: []any{},
		HabitNotes:   []any{},
		Error:        parseFailure,
	}), nil
}

func (r *Registry) nextBestStep(ctx context.Context, userID int64, _ Params) (any, error) {
	snap := r.deps.Context.Build(ctx, userID, 1, []string{"tasks", "events", "goals", "sleep", "workouts"})
	now := r.deps.Now().UTC()

	window := map[string]any{
		"events_next_2h":      eventsBetween(snap.List("events"), now, now.Add(2*time.Hour)),
		"tasks_high_priority": highPriorityTasks(snap.List("tasks"), 3, 5),
	}
	fatigue := contextbuilder.FatigueSignal(snap.List("sleep"), snap.List("workouts"), now)

	text, err := r.generate(ctx, "next_best_step", map[string]any{
		"context_2h_window": window,
		"goals_today":       snap.List("goals"),
		"fatigue_signal":    fatigue,
	}, ollama.GenerateRequest{Temperature: ollama.Temp(0.3), Format: "json"})
	if err != nil {
		return nil, err
	}
	return decodeObject(text, NextStep{
		Action:      "Take a short break",
		DurationMin: 10,
		Why:         "Unable to analyze context",
		Refs:        []any{},
	}), nil
}

func (r *Registry) scheduleRebalancer(ctx context.Context, userID int64, _ Params) (any, error) {
	snap := r.deps.Context.Build(ctx, userID, 1, []string{"tasks", "events"})
	tasks := snap.List("tasks")
	if len(tasks) > 10 {
		tasks = tasks[:10]
	}

	text, err := r.generate(ctx, "schedule_rebalancer", map[string]any{
		"events_json": snap.List("events"),
		"tasks_json":  tasks,
	}, ollama.GenerateRequest{Temperature: ollama.Temp(0.3), Format: "json"})
	if err != nil {
		return nil, err
	}
	return decodeObject(text, ScheduleRebalance{
		Blocks:    []any{},
		Dropped:   []any{},
		Rationale: "Unable to analyze schedule",
		Error:     parseFailure,
	}), nil
}

// eventsBetween start_ts 落在 [from, to] 内的事件
func eventsBetween(events []json.RawMessage, from, to time.Time) []json.RawMessage {
	out := []json.RawMessage{}
	for _, e := range events {
		ts, err := domain.ParseTime(gjson.GetBytes(e, "start_ts").String())
		if err != nil {
			continue
		}
		if !ts.Before(from) && !ts.After(to) {
			out = append(out, e)
		}
	}
	return out
}

// highPriorityTasks priority >= minPriority 且未完成，最多 limit 条
func highPriorityTasks(tasks []json.RawMessage, minPriority float64, limit int) []json.RawMessage {
	out := []json.RawMessage{}
	for _, t := range tasks {
		if gjson.GetBytes(t, "priority").Float() < minPriority || gjson.GetBytes(t, "status").String() == "done" {
			continue
		}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out
}
