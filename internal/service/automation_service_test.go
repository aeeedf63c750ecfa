package service

import (
	"encoding/json"
	"testing"

	"github.com/KH1188/juliusos/internal/domain"

	"github.com/google/uuid"
)

func storedRule(t *testing.T) domain.AutomationRule {
	t.Helper()
	var r domain.AutomationRule
	body := `{
		"name": "evening protein",
		"trigger": {"type":"cron","cron":"0 20 * * *"},
		"condition": {"type":"protein_gap_gt","grams":30},
		"action": {"type":"run_agent_recipe","name":"macro_coach","save_to":"/notes"},
		"is_active": false
	}`
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	r.ID = uuid.New()
	return r
}

func TestRulePatchRenameKeepsState(t *testing.T) {
	r := storedRule(t)
	name := "renamed"
	RulePatch{Name: &name}.Apply(&r)

	if r.Name != "renamed" || r.Active {
		t.Errorf("rename changed state: name=%s active=%v", r.Name, r.Active)
	}
	cases := []struct {
		name string
		v    any
		want string
	}{
		{"trigger", r.Trigger, `{"type":"cron","cron":"0 20 * * *"}`},
		{"condition", r.Condition, `{"type":"protein_gap_gt","grams":30}`},
		{"action", r.Action, `{"type":"run_agent_recipe","name":"macro_coach","save_to":"/notes"}`},
	}
	for _, tc := range cases {
		got, _ := json.Marshal(tc.v)
		if string(got) != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestRulePatchOnlySentFields(t *testing.T) {
	r := storedRule(t)
	on := true
	cond := domain.Condition{Type: "journal_absent", Window: "today"}
	RulePatch{Active: &on, Condition: &cond}.Apply(&r)

	if !r.Active || r.Name != "evening protein" {
		t.Errorf("unexpected rule %+v", r)
	}
	if r.Condition.Kind() != domain.ConditionJournalAbsent || r.Trigger.Cron != "0 20 * * *" || r.Action.Name != "macro_coach" {
		t.Errorf("unsent specs changed: %+v %+v %+v", r.Trigger, r.Condition, r.Action)
	}
}
