package domain

import (
	"encoding/json"
	"time"
)

// ResourceSpec 描述一个 CRUD 资源：一张表、一个路由、一个时间字段
type ResourceSpec struct {
	Name      string   // 资源名，同时作为 Context 模块内部名
	Table     string   // 表名
	Path      string   // 路由路径（相对 /api/v1）
	TimeField string   // data 中用于 ts 列的字段
	Filters   []string // 允许做等值过滤的 data 字段
}

var Resources = []ResourceSpec{
	{Name: "tasks", Table: "tasks", Path: "/tasks", TimeField: "created_at", Filters: []string{"status", "priority", "project_id"}},
	{Name: "events", Table: "events", Path: "/calendars/events", TimeField: "start_ts", Filters: []string{"calendar_id"}},
	{Name: "habits", Table: "habits", Path: "/habits", TimeField: "created_at", Filters: []string{"is_active"}},
	{Name: "habit_logs", Table: "habit_logs", Path: "/habits/:id/logs", TimeField: "date", Filters: []string{"habit_id"}},
	{Name: "meals", Table: "meals", Path: "/meals", TimeField: "dt"},
	{Name: "workouts", Table: "workouts", Path: "/workouts", TimeField: "dt", Filters: []string{"type"}},
	{Name: "sleep", Table: "sleep_logs", Path: "/sleep", TimeField: "date"},
	{Name: "journal", Table: "journal_entries", Path: "/journal", TimeField: "dt"},
	{Name: "projects", Table: "projects", Path: "/projects", TimeField: "start_ts", Filters: []string{"status"}},
	{Name: "skills", Table: "skills", Path: "/skills", TimeField: "created_at"},
	{Name: "goals", Table: "goals", Path: "/goals", TimeField: "created_at", Filters: []string{"status"}},
	{Name: "transactions", Table: "transactions", Path: "/finances/transactions", TimeField: "dt", Filters: []string{"category"}},
	{Name: "contacts", Table: "contacts", Path: "/contacts", TimeField: "created_at"},
	{Name: "bible_plans", Table: "bible_plans", Path: "/bible/plans", TimeField: "created_at"},
	{Name: "bible_readings", Table: "bible_readings", Path: "/bible/readings", TimeField: "dt", Filters: []string{"plan_id"}},
	{Name: "routines", Table: "routines", Path: "/routines", TimeField: "created_at", Filters: []string{"is_active"}},
	{Name: "notes", Table: "notes", Path: "/notes", TimeField: "created_at"},
	{Name: "skin_products", Table: "skin_products", Path: "/skin/products", TimeField: "created_at", Filters: []string{"is_active"}},
	{Name: "skin_logs", Table: "skin_logs", Path: "/skin/logs", TimeField: "dt"},
}

// LookupResource 按资源名查找
func LookupResource(name string) (ResourceSpec, bool) {
	for _, r := range Resources {
		if r.Name == name {
			return r, true
		}
	}
	return ResourceSpec{}, false
}

// Record 资源表中的一行，data 为原始 JSON 对象
type Record struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	TS        time.Time       `json:"ts"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Flatten 将 id/user_id 合并进 data，作为 API 的输出形态
func (r Record) Flatten() map[string]any {
	out := map[string]any{}
	if len(r.Data) > 0 {
		_ = json.Unmarshal(r.Data, &out)
	}
	out["id"] = r.ID
	out["user_id"] = r.UserID
	return out
}

// ListFilter 列表查询条件
type ListFilter struct {
	UserID int64
	Start  *time.Time
	End    *time.Time
	Equals map[string]string
	Limit  int
}
