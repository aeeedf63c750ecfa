package domain

import (
	"encoding/json"
	"testing"
)

func TestRuleSpecsKeepUnknownKeys(t *testing.T) {
	body := `{
		"trigger_json":   {"type":"interval","seconds":60},
		"condition_json": {"type":"sleep_below","hours":6},
		"action_json":    {"type":"webhook","url":"http://x","headers":{"k":"v"}}
	}`
	var in struct {
		Trigger   Trigger   `json:"trigger_json"`
		Condition Condition `json:"condition_json"`
		Action    Action    `json:"action_json"`
	}
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if in.Trigger.Type != "interval" || in.Condition.Type != "sleep_below" || in.Action.Type != "webhook" {
		t.Errorf("types not read: %+v %+v %+v", in.Trigger, in.Condition, in.Action)
	}

	cases := []struct {
		name string
		v    any
		want string
	}{
		{"trigger", in.Trigger, `{"type":"interval","seconds":60}`},
		{"condition", in.Condition, `{"type":"sleep_below","hours":6}`},
		{"action", in.Action, `{"type":"webhook","url":"http://x","headers":{"k":"v"}}`},
	}
	for _, tc := range cases {
		got, err := json.Marshal(tc.v)
		if err != nil {
			t.Fatalf("%s marshal: %v", tc.name, err)
		}
		if string(got) != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestConditionGramsAcceptsString(t *testing.T) {
	var c Condition
	if err := json.Unmarshal([]byte(`{"type":"protein_gap_gt","grams":"30"}`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Kind() != ConditionProteinGapGT || c.Grams == nil || *c.Grams != 30 {
		t.Errorf("unexpected condition %+v", c)
	}

	var none Condition
	_ = json.Unmarshal([]byte(`{"type":"protein_gap_gt"}`), &none)
	if none.Grams != nil {
		t.Errorf("missing grams should stay nil, got %v", *none.Grams)
	}
}

func TestActionParamsAndFallbackMarshal(t *testing.T) {
	var a Action
	if err := json.Unmarshal([]byte(`{"type":"run_agent_recipe","name":"macro_coach","save_to":"/notes","params":{"targets":{"protein_g":180}}}`), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.Kind() != ActionRunAgentRecipe || a.Name != "macro_coach" || a.SaveTo != "/notes" {
		t.Errorf("unexpected action %+v", a)
	}
	if _, ok := a.Params["targets"].(map[string]any); !ok {
		t.Errorf("params not decoded: %#v", a.Params)
	}

	// 代码中构造的规格没有原文，按字段序列化
	b, _ := json.Marshal(Trigger{Type: "cron", Cron: "0 20 * * *"})
	if string(b) != `{"type":"cron","cron":"0 20 * * *"}` {
		t.Errorf("unexpected %s", b)
	}

	if err := json.Unmarshal([]byte(`{"type":`), &a); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
