package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/KH1188/juliusos/internal/domain"
)

func (e *Engine) runAction(ctx context.Context, rule *domain.AutomationRule) map[string]any {
	a := rule.Action
	switch a.Kind() {
	case domain.ActionRunAgentRecipe:
		res, err := e.recipes.Run(ctx, a.Name, rule.UserID, a.Params)
		if err != nil {
			return map[string]any{"status": "error", "message": err.Error()}
		}
		out := map[string]any{"status": "success", "recipe": a.Name, "result": res}
		if a.SaveTo != "" {
			saved, err := e.save(ctx, rule, res)
			if err != nil {
				log.Printf("rule %s: save_to %s failed: %v", rule.ID, a.SaveTo, err)
				out["save_error"] = err.Error()
			} else {
				out["saved"] = saved
			}
		}
		return out
	case domain.ActionNotifyUI:
		out := map[string]any{"status": "success", "message": a.Message}
		if e.opts.Notifier != nil {
			n := domain.Notification{RuleID: rule.ID, UserID: rule.UserID, Message: a.Message, At: e.opts.Now().UTC()}
			if err := e.opts.Notifier.Notify(ctx, n); err != nil {
				log.Printf("rule %s: notify failed: %v", rule.ID, err)
				out["delivery_error"] = err.Error()
			}
		}
		return out
	}
	log.Printf("rule %s: unknown action type %q, no-op", rule.ID, a.Type)
	return map[string]any{"status": "unknown_action", "action_type": a.Type}
}

// save 把 recipe 结果作为一条 note 写入 save_to 指向的资源
func (e *Engine) save(ctx context.Context, rule *domain.AutomationRule, res any) (json.RawMessage, error) {
	body, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, err
	}
	now := e.opts.Now().UTC()
	note := map[string]any{
		"user_id":    rule.UserID,
		"title":      fmt.Sprintf("%s (%s)", rule.Name, now.Format("2006-01-02")),
		"content_md": "```json\n" + string(body) + "\n```",
		"dt":         now.Format(time.RFC3339),
		"source":     "automation:" + rule.ID.String(),
	}
	q := map[string][]string{"user_id": {strconv.FormatInt(rule.UserID, 10)}}
	return e.api.Post(ctx, rule.Action.SaveTo, q, note)
}
