// Package contextbuilder 聚合 Resource API 中一个时间窗口内的用户数据，生成只读快照
package contextbuilder

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// AllModules 默认聚合的全部模块
var AllModules = []string{
	"tasks", "events", "habits", "meals", "workouts", "sleep",
	"journal", "projects", "skills", "goals", "transactions",
	"contacts", "bible", "routines",
}

// Reader Resource API 的列表读取能力
type Reader interface {
	GetList(ctx context.Context, path string, q url.Values) ([]json.RawMessage, error)
}

type Builder struct {
	api Reader
	now func() time.Time
}

func New(api Reader) *Builder {
	return &Builder{api: api, now: time.Now}
}

// WithClock 替换时钟，测试用
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build 每次调用都重新拉取，不缓存；单个查询失败时该模块降级为空列表并记录在 Degraded 中
func (b *Builder) Build(ctx context.Context, userID int64, windowDays int, modules []string) *Snapshot {
	if windowDays < 0 {
		windowDays = 0
	}
	if len(modules) == 0 {
		modules = AllModules
	}
	end := b.now().UTC()
	start := end.AddDate(0, 0, -windowDays)

	s := &Snapshot{
		UserID:      userID,
		WindowStart: start,
		WindowEnd:   end,
		WindowDays:  windowDays,
		Data:        map[string]any{},
	}
	f := &fetcher{b: b, ctx: ctx, userID: userID, snap: s}
	window := url.Values{"start": {start.Format(time.RFC3339)}, "end": {end.Format(time.RFC3339)}}
	since := url.Values{"start": {start.Format(time.RFC3339)}}

	for _, m := range modules {
		switch m {
		case "tasks":
			todo := f.list("tasks", "/tasks", url.Values{"status": {"todo"}})
			doing := f.list("tasks", "/tasks", url.Values{"status": {"doing"}})
			s.Data["tasks"] = append(todo, doing...)
		case "events":
			s.Data["events"] = f.list("events", "/calendars/events", window)
		case "habits":
			habits := f.list("habits", "/habits", url.Values{"is_active": {"true"}})
			logs := make(map[string][]json.RawMessage, len(habits))
			for _, h := range habits {
				id := gjson.GetBytes(h, "id").String()
				if id == "" {
					continue
				}
				logs[id] = f.list("habit_logs", "/habits/"+id+"/logs", since)
			}
			s.Data["habits"] = habits
			s.Data["habit_logs"] = logs
		case "meals":
			meals := f.list("meals", "/meals", window)
			s.Data["meals"] = meals
			s.Data["macro_totals"] = CalculateMacros(meals)
		case "workouts":
			s.Data["workouts"] = f.list("workouts", "/workouts", window)
		case "sleep":
			s.Data["sleep"] = f.list("sleep", "/sleep", window)
		case "journal":
			s.Data["journal"] = f.list("journal", "/journal", window)
		case "projects":
			s.Data["projects"] = f.list("projects", "/projects", url.Values{"status": {"active"}})
		case "skills":
			s.Data["skills"] = f.list("skills", "/skills", nil)
		case "goals":
			s.Data["goals"] = f.list("goals", "/goals", url.Values{"status": {"active"}})
		case "transactions":
			s.Data["transactions"] = f.list("transactions", "/finances/transactions", window)
		case "contacts":
			contacts := f.list("contacts", "/contacts", nil)
			s.Data["upcoming_birthdays"] = UpcomingBirthdays(contacts, end, 30)
		case "bible":
			s.Data["bible_plans"] = f.list("bible", "/bible/plans", nil)
			s.Data["recent_readings"] = f.list("bible", "/bible/readings", since)
		case "routines":
			s.Data["routines"] = f.list("routines", "/routines", nil)
		default:
			log.Printf("context: unknown module %q ignored", m)
		}
	}
	return s
}

type fetcher struct {
	b      *Builder
	ctx    context.Context
	userID int64
	snap   *Snapshot
}

func (f *fetcher) list(module, path string, q url.Values) []json.RawMessage {
	params := url.Values{}
	for k, v := range q {
		params[k] = v
	}
	params.Set("user_id", strconv.FormatInt(f.userID, 10))

	items, err := f.b.api.GetList(f.ctx, path, params)
	if err != nil {
		log.Printf("context: %s %s failed: %v", module, path, err)
		f.snap.degrade(module)
		return []json.RawMessage{}
	}
	return items
}
