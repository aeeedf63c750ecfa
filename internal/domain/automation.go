package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// ErrInvalidSpec 规格不是合法 JSON
var ErrInvalidSpec = errors.New("spec is not valid JSON")

// 规格是自由格式 JSON：Raw 保存写入时的原文并原样落库，类型化字段只在读取时按 tag 解出
func keepRaw(b []byte) (json.RawMessage, gjson.Result, error) {
	if !gjson.ValidBytes(b) {
		return nil, gjson.Result{}, ErrInvalidSpec
	}
	return append(json.RawMessage(nil), b...), gjson.ParseBytes(b), nil
}

type TriggerKind string

const (
	TriggerCron    TriggerKind = "cron"
	TriggerUnknown TriggerKind = "unknown"
)

// Trigger 触发器规格，目前只有 cron 一种
type Trigger struct {
	Type string          `json:"type"`
	Cron string          `json:"cron,omitempty"`
	Raw  json.RawMessage `json:"-"`
}

func (t *Trigger) UnmarshalJSON(b []byte) error {
	raw, r, err := keepRaw(b)
	if err != nil {
		return err
	}
	*t = Trigger{Type: r.Get("type").String(), Cron: r.Get("cron").String(), Raw: raw}
	return nil
}

func (t Trigger) MarshalJSON() ([]byte, error) {
	if len(t.Raw) > 0 {
		return t.Raw, nil
	}
	type plain Trigger
	return json.Marshal(plain(t))
}

func (t Trigger) Kind() TriggerKind {
	if strings.EqualFold(strings.TrimSpace(t.Type), string(TriggerCron)) {
		return TriggerCron
	}
	return TriggerUnknown
}

type ConditionKind string

const (
	ConditionAlways        ConditionKind = "always"
	ConditionJournalAbsent ConditionKind = "journal_absent"
	ConditionProteinGapGT  ConditionKind = "protein_gap_gt"
	ConditionUnknown       ConditionKind = "unknown"
)

// Condition 条件规格
type Condition struct {
	Type   string          `json:"type"`
	Window string          `json:"window,omitempty"` // journal_absent，目前只支持 today
	Grams  *float64        `json:"grams,omitempty"`  // protein_gap_gt，缺省 30
	Raw    json.RawMessage `json:"-"`
}

// UnmarshalJSON grams 接受数字或数字字符串
func (c *Condition) UnmarshalJSON(b []byte) error {
	raw, r, err := keepRaw(b)
	if err != nil {
		return err
	}
	*c = Condition{Type: r.Get("type").String(), Window: r.Get("window").String(), Raw: raw}
	if g := r.Get("grams"); g.Exists() && g.Type != gjson.Null {
		v := g.Float()
		c.Grams = &v
	}
	return nil
}

func (c Condition) MarshalJSON() ([]byte, error) {
	if len(c.Raw) > 0 {
		return c.Raw, nil
	}
	type plain Condition
	return json.Marshal(plain(c))
}

func (c Condition) Kind() ConditionKind {
	switch ConditionKind(strings.TrimSpace(c.Type)) {
	case ConditionAlways:
		return ConditionAlways
	case ConditionJournalAbsent:
		return ConditionJournalAbsent
	case ConditionProteinGapGT:
		return ConditionProteinGapGT
	}
	return ConditionUnknown
}

type ActionKind string

const (
	ActionRunAgentRecipe ActionKind = "run_agent_recipe"
	ActionNotifyUI       ActionKind = "notify_ui"
	ActionUnknown        ActionKind = "unknown"
)

// Action 动作规格
type Action struct {
	Type    string          `json:"type"`
	Name    string          `json:"name,omitempty"`    // run_agent_recipe: recipe 名
	SaveTo  string          `json:"save_to,omitempty"` // run_agent_recipe: 结果额外写入的资源路径
	Params  map[string]any  `json:"params,omitempty"`
	Message string          `json:"message,omitempty"` // notify_ui
	Raw     json.RawMessage `json:"-"`
}

func (a *Action) UnmarshalJSON(b []byte) error {
	raw, r, err := keepRaw(b)
	if err != nil {
		return err
	}
	*a = Action{
		Type:    r.Get("type").String(),
		Name:    r.Get("name").String(),
		SaveTo:  r.Get("save_to").String(),
		Message: r.Get("message").String(),
		Raw:     raw,
	}
	if p := r.Get("params"); p.IsObject() {
		if err := json.Unmarshal([]byte(p.Raw), &a.Params); err != nil {
			return err
		}
	}
	return nil
}

func (a Action) MarshalJSON() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	type plain Action
	return json.Marshal(plain(a))
}

func (a Action) Kind() ActionKind {
	switch ActionKind(strings.TrimSpace(a.Type)) {
	case ActionRunAgentRecipe:
		return ActionRunAgentRecipe
	case ActionNotifyUI:
		return ActionNotifyUI
	}
	return ActionUnknown
}

type AutomationRule struct {
	ID        uuid.UUID  `json:"id"`          // 规则唯一标识
	UserID    int64      `json:"user_id"`     // 所属用户
	Name      string     `json:"name"`        // 规则名称
	Trigger   Trigger    `json:"trigger"`     // 触发器
	Condition Condition  `json:"condition"`   // 条件
	Action    Action     `json:"action"`      // 动作
	Active    bool       `json:"is_active"`   // 是否启用
	LastRunAt *time.Time `json:"last_run_ts"` // 上次成功执行时间
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type AutomationLog struct {
	ID     uuid.UUID       `json:"id"`
	RuleID uuid.UUID       `json:"rule_id"`
	At     time.Time       `json:"dt"`
	Result json.RawMessage `json:"result_json"`
}

// RuleChangeChannel 规则变更通知的 Redis 频道
const RuleChangeChannel = "automation:rules:changed"

type RuleChangeOp string

const (
	RuleUpserted RuleChangeOp = "upsert"
	RuleDeleted  RuleChangeOp = "delete"
)

// RuleChange 规则写入后发布的消息，热加载开启时由引擎消费
type RuleChange struct {
	Op     RuleChangeOp `json:"op"`
	RuleID uuid.UUID    `json:"rule_id"`
}

// Notification notify_ui 记录的一条消息
type Notification struct {
	RuleID  uuid.UUID `json:"rule_id"`
	UserID  int64     `json:"user_id"`
	Message string    `json:"message"`
	At      time.Time `json:"dt"`
}
