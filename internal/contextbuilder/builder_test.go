package contextbuilder

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

type fakeReader struct {
	data  map[string]string
	fail  map[string]bool
	calls []string
}

func (f *fakeReader) GetList(_ context.Context, path string, q url.Values) ([]json.RawMessage, error) {
	f.calls = append(f.calls, path+"?"+q.Encode())
	if f.fail[path] {
		return nil, errors.New("boom")
	}
	var items []json.RawMessage
	if body, ok := f.data[path]; ok {
		if err := json.Unmarshal([]byte(body), &items); err != nil {
			return nil, err
		}
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, nil
}

var fixedNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func TestBuildWindowBounds(t *testing.T) {
	for _, days := range []int{0, 1, 7, 30} {
		b := New(&fakeReader{}).WithClock(func() time.Time { return fixedNow })
		s := b.Build(context.Background(), 1, days, []string{"skills"})

		if !s.WindowEnd.Equal(fixedNow) {
			t.Errorf("days=%d: window_end %v, want %v", days, s.WindowEnd, fixedNow)
		}
		if got := s.WindowEnd.Sub(s.WindowStart); got != time.Duration(days)*24*time.Hour {
			t.Errorf("days=%d: window length %v", days, got)
		}
		if s.WindowDays != days {
			t.Errorf("days=%d: window_days %d", days, s.WindowDays)
		}
	}
}

func TestBuildDegradesFailedModule(t *testing.T) {
	r := &fakeReader{
		data: map[string]string{
			"/meals": `[{"protein_g": 40, "calories": 600}, {"protein_g": 35.5, "fat_g": 12}]`,
		},
		fail: map[string]bool{"/workouts": true},
	}
	s := New(r).WithClock(func() time.Time { return fixedNow }).
		Build(context.Background(), 1, 7, []string{"meals", "workouts"})

	if !s.IsDegraded("workouts") {
		t.Fatalf("workouts should be degraded, got %v", s.Degraded)
	}
	if s.IsDegraded("meals") {
		t.Fatal("meals should not be degraded")
	}
	if n := len(s.List("workouts")); n != 0 {
		t.Errorf("expected empty workouts, got %d", n)
	}
	totals := s.Get("macro_totals").(MacroTotals)
	if totals.ProteinG != 75.5 || totals.Calories != 600 || totals.FatG != 12 {
		t.Errorf("unexpected totals %+v", totals)
	}
}

func TestBuildTasksAndHabitLogs(t *testing.T) {
	r := &fakeReader{
		data: map[string]string{
			"/tasks":         `[{"id": 1, "status": "todo"}]`,
			"/habits":        `[{"id": 3, "name": "read"}, {"id": 4, "name": "walk"}]`,
			"/habits/3/logs": `[{"id": 10, "habit_id": 3}]`,
		},
	}
	s := New(r).WithClock(func() time.Time { return fixedNow }).
		Build(context.Background(), 2, 7, []string{"tasks", "habits"})

	// todo 与 doing 两次查询拼接
	if n := len(s.List("tasks")); n != 2 {
		t.Errorf("expected 2 tasks, got %d", n)
	}
	logs := s.Get("habit_logs").(map[string][]json.RawMessage)
	if len(logs["3"]) != 1 || len(logs["4"]) != 0 {
		t.Errorf("unexpected habit logs %v", logs)
	}
	for _, c := range r.calls {
		_, raw, _ := strings.Cut(c, "?")
		q, _ := url.ParseQuery(raw)
		if q.Get("user_id") != "2" {
			t.Errorf("call %s missing user_id", c)
		}
	}
}

func TestSnapshotMarshalFlattens(t *testing.T) {
	s := New(&fakeReader{}).WithClock(func() time.Time { return fixedNow }).
		Build(context.Background(), 5, 1, []string{"routines"})
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["user_id"].(float64) != 5 || out["window_days"].(float64) != 1 {
		t.Errorf("unexpected header %v", out)
	}
	if out["window_end"] != "2026-03-10T15:30:00Z" {
		t.Errorf("unexpected window_end %v", out["window_end"])
	}
	if _, ok := out["routines"]; !ok {
		t.Error("routines missing")
	}
}

func TestCalculateMacrosEmpty(t *testing.T) {
	if got := CalculateMacros(nil); got != (MacroTotals{}) {
		t.Errorf("expected zero totals, got %+v", got)
	}
}

func TestUpcomingBirthdays(t *testing.T) {
	contacts := []json.RawMessage{
		json.RawMessage(`{"name": "in30", "birthday": "1990-04-09"}`),
		json.RawMessage(`{"name": "in31", "birthday": "1990-04-10"}`),
		json.RawMessage(`{"name": "today", "birthday": "1985-03-10"}`),
		json.RawMessage(`{"name": "passed", "birthday": "1992-03-01"}`),
		json.RawMessage(`{"name": "none"}`),
	}
	got := UpcomingBirthdays(contacts, fixedNow, 30)

	days := map[string]int{}
	for _, b := range got {
		var c struct{ Name string }
		_ = json.Unmarshal(b.Contact, &c)
		days[c.Name] = b.DaysUntil
	}
	if d, ok := days["in30"]; !ok || d != 30 {
		t.Errorf("birthday 30 days out should be included, got %v", days)
	}
	if _, ok := days["in31"]; ok {
		t.Error("birthday 31 days out should be excluded")
	}
	if d, ok := days["today"]; !ok || d != 0 {
		t.Errorf("birthday today should be 0 days, got %v", days)
	}
	// 今年已过，投影到明年，超出 30 天
	if _, ok := days["passed"]; ok {
		t.Error("passed birthday should roll to next year and be excluded")
	}
}

func TestUpcomingBirthdaysRollsIntoNextYear(t *testing.T) {
	now := time.Date(2026, 12, 20, 9, 0, 0, 0, time.UTC)
	got := UpcomingBirthdays([]json.RawMessage{json.RawMessage(`{"birthday": "2000-01-05"}`)}, now, 30)
	if len(got) != 1 || got[0].DaysUntil != 16 {
		t.Fatalf("expected 16 days, got %+v", got)
	}
}

func TestFatigueSignal(t *testing.T) {
	sleep := []json.RawMessage{
		json.RawMessage(`{"duration_min": 480}`),
		json.RawMessage(`{"duration_min": 450}`),
		json.RawMessage(`{"duration_min": 420}`),
		json.RawMessage(`{"duration_min": 100}`),
	}
	workouts := []json.RawMessage{
		json.RawMessage(`{"dt": "2026-03-09T07:00:00Z"}`),
		json.RawMessage(`{"dt": "2026-03-01T07:00:00Z"}`),
	}
	f := FatigueSignal(sleep, workouts, fixedNow)
	if f.AvgSleepHours != 7.5 || f.WorkoutsLast3d != 1 || f.EnergyLevel != "high" {
		t.Errorf("unexpected fatigue %+v", f)
	}

	f = FatigueSignal(nil, nil, fixedNow)
	if f.EnergyLevel != "low" || f.AvgSleepHours != 0 {
		t.Errorf("unexpected empty fatigue %+v", f)
	}
}
