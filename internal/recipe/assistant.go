package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KH1188/juliusos/internal/ollama"

	"github.com/tidwall/gjson"
)

const askSystem = `You are a helpful personal assistant with access to the user's life data.
Answer questions based on the context provided. Be concise and actionable.`

func (r *Registry) chatAssistant(ctx context.Context, userID int64, p Params) (any, error) {
	message := strings.TrimSpace(p.String("message"))
	if message == "" {
		return ChatReply{Response: "How can I help you today?"}, nil
	}
	snap := r.deps.Context.Build(ctx, userID, 7, []string{"tasks", "events", "goals", "sleep", "workouts", "meals"})

	pending := 0
	for _, t := range snap.List("tasks") {
		if gjson.GetBytes(t, "status").String() == "todo" {
			pending++
		}
	}
	events := snap.List("events")
	if len(events) > 3 {
		events = events[:3]
	}
	var goals []string
	for i, g := range snap.List("goals") {
		if i == 3 {
			break
		}
		goals = append(goals, gjson.GetBytes(g, "title").String())
	}
	activeGoals := "None"
	if len(goals) > 0 {
		activeGoals = strings.Join(goals, ", ")
	}
	avgSleep := averageSleepHours(snap.List("sleep"))

	text, err := r.generate(ctx, "chat_assistant", map[string]any{
		"today":           r.deps.Now().UTC().Format("Monday, January 02"),
		"pending_tasks":   pending,
		"today_events":    len(events),
		"avg_sleep_hours": fmt.Sprintf("%.1f", avgSleep),
		"active_goals":    activeGoals,
		"message":         message,
	}, ollama.GenerateRequest{Temperature: ollama.Temp(0.7)})
	if err != nil {
		return nil, err
	}
	return ChatReply{Response: text}, nil
}

// Ask 基于完整上下文回答自由问题，不要求结构化输出
func (r *Registry) Ask(ctx context.Context, userID int64, query string, windowDays int) (*AskResult, error) {
	snap := r.deps.Context.Build(ctx, userID, windowDays, nil)
	text, err := r.generate(ctx, "ask", map[string]any{
		"context_json": snap,
		"query":        query,
	}, ollama.GenerateRequest{System: askSystem, Temperature: ollama.Temp(0.4)})
	if err != nil {
		return nil, err
	}
	return &AskResult{Answer: text, Sources: []string{}}, nil
}

func averageSleepHours(sleep []json.RawMessage) float64 {
	if len(sleep) > 3 {
		sleep = sleep[:3]
	}
	if len(sleep) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range sleep {
		total += gjson.GetBytes(s, "duration_min").Float()
	}
	return total / float64(len(sleep)) / 60
}
