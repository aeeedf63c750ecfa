package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KH1188/juliusos/internal/contextbuilder"
	"github.com/KH1188/juliusos/internal/ollama"
	"github.com/KH1188/juliusos/internal/prompt"
)

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type fakeContext struct {
	data  map[string]any
	calls []string
}

func (f *fakeContext) Build(_ context.Context, userID int64, windowDays int, modules []string) *contextbuilder.Snapshot {
	f.calls = append(f.calls, strings.Join(modules, ","))
	data := map[string]any{}
	for k, v := range f.data {
		data[k] = v
	}
	return &contextbuilder.Snapshot{
		UserID:      userID,
		WindowStart: testNow.AddDate(0, 0, -windowDays),
		WindowEnd:   testNow,
		WindowDays:  windowDays,
		Data:        data,
	}
}

type fakeModel struct {
	mu       sync.Mutex
	text     string
	err      error
	requests []ollama.GenerateRequest
}

func (f *fakeModel) Generate(_ context.Context, req ollama.GenerateRequest) (*ollama.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &ollama.Response{Response: f.text, Model: "llama3:8b", Done: true}, nil
}

type fakeAPI struct{}

func (fakeAPI) GetList(context.Context, string, url.Values) ([]json.RawMessage, error) {
	return []json.RawMessage{json.RawMessage(`{"name":"cleanser"}`)}, nil
}

func (fakeAPI) GetObject(context.Context, string, url.Values) (json.RawMessage, error) {
	return json.RawMessage(`{"user_id":1,"profile_json":{"diet":"omnivore"}}`), nil
}

func newTestRegistry(model *fakeModel, ctxSrc *fakeContext) *Registry {
	if ctxSrc == nil {
		ctxSrc = &fakeContext{}
	}
	return NewRegistry(Deps{
		Context:             ctxSrc,
		Model:               model,
		Prompts:             prompt.NewStore(""),
		API:                 fakeAPI{},
		CreativeTemperature: 0.7,
		ProjectRoot:         os.TempDir(),
		Now:                 func() time.Time { return testNow },
	})
}

func TestJSONRecipesFallBackOnInvalidJSON(t *testing.T) {
	cases := []struct {
		name   string
		params Params
		want   any
	}{
		{"daily_digest", nil, DailyDigest{
			Plan: []any{}, Conflicts: []any{}, Blocks: []any{},
			Health:        DigestHealth{MacroDelta: "Unable to analyze"},
			JournalPrompt: "What are you grateful for today?",
			Error:         parseFailure,
		}},
		{"weekly_review", nil, WeeklyReview{
			Wins: []any{}, Improvements: []any{}, Metrics: map[string]any{}, GoalsCheckin: []any{}, HabitNotes: []any{},
			Error: parseFailure,
		}},
		{"macro_coach", nil, MacroCoaching{Suggestions: []any{}, Warnings: []any{}, Error: parseFailure}},
		{"next_best_step", nil, NextStep{Action: "Take a short break", DurationMin: 10, Why: "Unable to analyze context", Refs: []any{}}},
		{"schedule_rebalancer", nil, ScheduleRebalance{Blocks: []any{}, Dropped: []any{}, Rationale: "Unable to analyze schedule", Error: parseFailure}},
		{"bible_reflector", Params{"passage": "John 3:1-21"}, BibleReflection{
			Summary: "Unable to generate summary", ThreeQuestions: []any{}, PrayerPoints: []any{}, Error: parseFailure,
		}},
		{"profile_update", nil, ProfileQuestion{Skip: true, Reason: "parse failure"}},
		{"skin_coach", nil, SkinRoutine{Routine: []any{}, Notes: "Unable to generate recommendations. Please check your products and logs."}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := &fakeModel{text: "not json"}
			got, err := newTestRegistry(model, nil).Run(context.Background(), tc.name, 1, tc.params)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %#v\nwant %#v", got, tc.want)
			}
			if len(model.requests) != 1 || model.requests[0].Format != "json" {
				t.Errorf("expected one json-format request, got %+v", model.requests)
			}
		})
	}
}

func TestJSONArrayIsNotAnObject(t *testing.T) {
	got, err := newTestRegistry(&fakeModel{text: `[1,2]`}, nil).Run(context.Background(), "profile_update", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if q := got.(ProfileQuestion); !q.Skip {
		t.Errorf("expected skip default, got %+v", q)
	}
}

func TestValidResponseIsDecoded(t *testing.T) {
	model := &fakeModel{text: `{"action":"Finish report","duration_min":25,"why":"due today","refs":[4]}`}
	got, err := newTestRegistry(model, nil).Run(context.Background(), "next_best_step", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	step := got.(NextStep)
	if step.Action != "Finish report" || step.DurationMin != 25 || len(step.Refs) != 1 {
		t.Errorf("unexpected step %+v", step)
	}
}

func TestRunUnknownRecipe(t *testing.T) {
	model := &fakeModel{}
	_, err := newTestRegistry(model, nil).Run(context.Background(), "horoscope", 1, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(model.requests) != 0 {
		t.Error("model should not be called")
	}
}

func TestRunActionAlias(t *testing.T) {
	ctxSrc := &fakeContext{}
	r := newTestRegistry(&fakeModel{text: `{"blocks":[],"dropped":[],"rationale":"ok"}`}, ctxSrc)
	got, err := r.RunAction(context.Background(), "rebalance_schedule", 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.(ScheduleRebalance).Rationale != "ok" {
		t.Errorf("unexpected %+v", got)
	}
	if ctxSrc.calls[0] != "tasks,events" {
		t.Errorf("unexpected modules %v", ctxSrc.calls)
	}
	if _, err := r.RunAction(context.Background(), "nap", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTransportErrorPropagates(t *testing.T) {
	boom := errors.New("ollama generation failed: connection refused")
	_, err := newTestRegistry(&fakeModel{err: boom}, nil).Run(context.Background(), "daily_digest", 1, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestRecipeTemperatures(t *testing.T) {
	cases := map[string]float64{
		"daily_digest":    0.3,
		"bible_reflector": 0.7,
		"profile_update":  0.4,
		"macro_coach":     0.3,
	}
	for name, want := range cases {
		model := &fakeModel{text: "{}"}
		if _, err := newTestRegistry(model, nil).Run(context.Background(), name, 1, nil); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got := *model.requests[0].Temperature; got != want {
			t.Errorf("%s: temperature %v, want %v", name, got, want)
		}
	}
}

func TestMacroCoachDefaultTargets(t *testing.T) {
	model := &fakeModel{text: "{}"}
	if _, err := newTestRegistry(model, nil).Run(context.Background(), "macro_coach", 1, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(model.requests[0].Prompt, `"protein_g": 150`) {
		t.Errorf("prompt should carry default targets:\n%s", model.requests[0].Prompt)
	}
}

func TestNextBestStepWindow(t *testing.T) {
	ctxSrc := &fakeContext{data: map[string]any{
		"events": []json.RawMessage{
			json.RawMessage(`{"id":1,"title":"standup","start_ts":"2026-05-04T10:00:00Z"}`),
			json.RawMessage(`{"id":2,"title":"dinner","start_ts":"2026-05-04T19:00:00Z"}`),
		},
		"tasks": []json.RawMessage{
			json.RawMessage(`{"id":7,"title":"taxes","priority":4,"status":"todo"}`),
			json.RawMessage(`{"id":8,"title":"laundry","priority":1,"status":"todo"}`),
			json.RawMessage(`{"id":9,"title":"report","priority":5,"status":"done"}`),
		},
	}}
	model := &fakeModel{text: "{}"}
	if _, err := newTestRegistry(model, ctxSrc).Run(context.Background(), "next_best_step", 1, nil); err != nil {
		t.Fatal(err)
	}
	p := model.requests[0].Prompt
	if !strings.Contains(p, "standup") || strings.Contains(p, "dinner") {
		t.Errorf("events not filtered to 2h window:\n%s", p)
	}
	if !strings.Contains(p, "taxes") || strings.Contains(p, "laundry") || strings.Contains(p, "report") {
		t.Errorf("tasks not filtered:\n%s", p)
	}
	if !strings.Contains(p, `"energy_level": "low"`) {
		t.Errorf("fatigue signal missing:\n%s", p)
	}
}

func TestProfileUpdateUsesStoredProfile(t *testing.T) {
	model := &fakeModel{text: `{"question":"How many hours do you like to sleep?","field":"sleep_target"}`}
	got, err := newTestRegistry(model, nil).Run(context.Background(), "profile_update", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(model.requests[0].Prompt, `"diet": "omnivore"`) {
		t.Errorf("profile not in prompt:\n%s", model.requests[0].Prompt)
	}
	if got.(ProfileQuestion).Field != "sleep_target" {
		t.Errorf("unexpected %+v", got)
	}
}

func TestChatAssistant(t *testing.T) {
	model := &fakeModel{text: "Sounds good!"}
	r := newTestRegistry(model, &fakeContext{data: map[string]any{
		"goals": []json.RawMessage{json.RawMessage(`{"title":"Run a 10k"}`)},
		"sleep": []json.RawMessage{json.RawMessage(`{"duration_min":450}`)},
	}})

	got, err := r.Run(context.Background(), "chat_assistant", 1, Params{})
	if err != nil || got.(ChatReply).Response != "How can I help you today?" {
		t.Fatalf("empty message: %v %+v", err, got)
	}
	if len(model.requests) != 0 {
		t.Fatal("empty message should not call the model")
	}

	got, err = r.Run(context.Background(), "chat_assistant", 1, Params{"message": "plan my evening"})
	if err != nil {
		t.Fatal(err)
	}
	if got.(ChatReply).Response != "Sounds good!" {
		t.Errorf("unexpected %+v", got)
	}
	req := model.requests[0]
	if req.Format != "" || *req.Temperature != 0.7 {
		t.Errorf("unexpected request %+v", req)
	}
	if !strings.Contains(req.Prompt, "Run a 10k") || !strings.Contains(req.Prompt, "7.5 hours") || !strings.Contains(req.Prompt, "Monday, May 04") {
		t.Errorf("unexpected prompt:\n%s", req.Prompt)
	}
}

func TestAsk(t *testing.T) {
	model := &fakeModel{text: "You have 2 tasks."}
	res, err := newTestRegistry(model, nil).Ask(context.Background(), 1, "what's up?", 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "You have 2 tasks." || res.Sources == nil || res.Reasoning != nil {
		t.Errorf("unexpected %+v", res)
	}
	if model.requests[0].System == "" || !strings.Contains(model.requests[0].Prompt, `"window_days": 3`) {
		t.Errorf("unexpected request %+v", model.requests[0])
	}
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *fakeLocker) Acquire(_ context.Context, userID int64, recipe string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[recipe] {
		return "", false, nil
	}
	l.held[recipe] = true
	return "owner", true, nil
}

func (l *fakeLocker) Renew(context.Context, int64, string, string) (bool, error) { return true, nil }

func (l *fakeLocker) Release(_ context.Context, _ int64, recipe, _ string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, recipe)
	return true, nil
}

func TestLockerRejectsConcurrentRun(t *testing.T) {
	locker := &fakeLocker{held: map[string]bool{"daily_digest": true}}
	r := newTestRegistry(&fakeModel{text: "{}"}, nil)
	r.deps.Locker = locker

	if _, err := r.Run(context.Background(), "daily_digest", 1, nil); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	delete(locker.held, "daily_digest")
	if _, err := r.Run(context.Background(), "daily_digest", 1, nil); err != nil {
		t.Fatalf("run after release: %v", err)
	}
	if locker.held["daily_digest"] {
		t.Error("lock should be released after run")
	}
}

func TestExtractCodeBlocks(t *testing.T) {
	text := "Here:\n```go\nfunc main() {}\n```\nand\n```\n  plain text  \n```\n"
	got := ExtractCodeBlocks(text)
	want := []CodeBlock{{Language: "go", Code: "func main() {}"}, {Language: "text", Code: "plain text"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(ExtractCodeBlocks("no code here")) != 0 {
		t.Error("expected no blocks")
	}
}

func TestCodeAssistant(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "internal", "x"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "internal", "x", "a.go"), []byte("package x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	model := &fakeModel{text: "```go\npackage x\n\nfunc A() {}\n```"}
	r := newTestRegistry(model, nil)
	r.deps.ProjectRoot = root

	got, err := r.Run(context.Background(), "code_assistant", 1, Params{
		"message":   "add func A",
		"operation": "modify",
		"files":     []any{"internal/x/a.go", "../etc/passwd"},
	})
	if err != nil {
		t.Fatal(err)
	}
	reply := got.(CodeReply)
	if reply.Files["internal/x/a.go"] != "package x\n" {
		t.Errorf("file not read: %+v", reply.Files)
	}
	if !strings.HasPrefix(reply.Files["../etc/passwd"], "Error reading file") {
		t.Errorf("escape should be rejected: %+v", reply.Files)
	}
	if len(reply.CodeBlocks) != 1 || reply.CodeBlocks[0].Language != "go" {
		t.Errorf("unexpected blocks %+v", reply.CodeBlocks)
	}
	if *model.requests[0].Temperature != 0.3 {
		t.Errorf("modify should use 0.3")
	}

	// apply 写回单个文件
	_, err = r.Run(context.Background(), "code_assistant", 1, Params{
		"message": "add func A", "operation": "write", "files": []any{"internal/x/a.go"}, "apply": true,
	})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(filepath.Join(root, "internal", "x", "a.go"))
	if string(b) != "package x\n\nfunc A() {}\n" {
		t.Errorf("file not applied: %q", b)
	}

	got, err = r.Run(context.Background(), "code_assistant", 1, Params{"message": "a.go", "operation": "list"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.(CodeReply).Structure, "internal/x/a.go") {
		t.Errorf("unexpected structure %q", got.(CodeReply).Structure)
	}
}
