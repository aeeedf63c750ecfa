// Package recipe 具名的单一用途编排：上下文 -> 模板 -> 模型 -> 解析（失败时返回默认值）
package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sort"
	"time"

	"github.com/KH1188/juliusos/internal/contextbuilder"
	"github.com/KH1188/juliusos/internal/ollama"
)

var (
	ErrNotFound = errors.New("recipe not found")
	ErrBusy     = errors.New("recipe already running")
)

const parseFailure = "Failed to parse agent response"

// ContextSource 上下文聚合
type ContextSource interface {
	Build(ctx context.Context, userID int64, windowDays int, modules []string) *contextbuilder.Snapshot
}

// Generator 模型调用
type Generator interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (*ollama.Response, error)
}

// Prompts 模板渲染
type Prompts interface {
	Render(name string, values map[string]any) (string, error)
}

// ResourceReader 少数 recipe 需要直接读取的辅助数据（画像、护肤）
type ResourceReader interface {
	GetList(ctx context.Context, path string, q url.Values) ([]json.RawMessage, error)
	GetObject(ctx context.Context, path string, q url.Values) (json.RawMessage, error)
}

// Locker 可选的 (user, recipe) 互斥
type Locker interface {
	Acquire(ctx context.Context, userID int64, recipe string) (string, bool, error)
	Renew(ctx context.Context, userID int64, recipe, owner string) (bool, error)
	Release(ctx context.Context, userID int64, recipe, owner string) (bool, error)
}

type Deps struct {
	Context             ContextSource
	Model               Generator
	Prompts             Prompts
	API                 ResourceReader
	CreativeTemperature float64
	ProjectRoot         string
	Locker              Locker
	LockRenewEvery      time.Duration
	Now                 func() time.Time
}

// Func 一个 recipe 的入口
type Func func(ctx context.Context, userID int64, p Params) (any, error)

type Registry struct {
	deps    Deps
	recipes map[string]Func
}

// ActionAliases /actions/run 使用的动作名
var ActionAliases = map[string]string{
	"rebalance_schedule": "schedule_rebalancer",
}

func NewRegistry(d Deps) *Registry {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.CreativeTemperature == 0 {
		d.CreativeTemperature = 0.7
	}
	if d.LockRenewEvery <= 0 {
		d.LockRenewEvery = time.Minute
	}
	r := &Registry{deps: d}
	r.recipes = map[string]Func{
		"daily_digest":        r.dailyDigest,
		"weekly_review":       r.weeklyReview,
		"macro_coach":         r.macroCoach,
		"next_best_step":      r.nextBestStep,
		"schedule_rebalancer": r.scheduleRebalancer,
		"bible_reflector":     r.bibleReflector,
		"profile_update":      r.profileUpdate,
		"skin_coach":          r.skinCoach,
		"chat_assistant":      r.chatAssistant,
		"code_assistant":      r.codeAssistant,
	}
	return r
}

// Names 已注册的 recipe，按名称排序
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.recipes))
	for n := range r.recipes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Has(name string) bool {
	_, ok := r.recipes[name]
	return ok
}

// Run 按名称分发；未知名称返回 ErrNotFound
func (r *Registry) Run(ctx context.Context, name string, userID int64, params Params) (any, error) {
	fn, ok := r.recipes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if r.deps.Locker != nil {
		release, err := r.lock(ctx, userID, name)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	if params == nil {
		params = Params{}
	}
	return fn(ctx, userID, params)
}

// RunAction 动作别名到 recipe 的分发
func (r *Registry) RunAction(ctx context.Context, action string, userID int64) (any, error) {
	name, ok := ActionAliases[action]
	if !ok {
		return nil, fmt.Errorf("%w: action %s", ErrNotFound, action)
	}
	return r.Run(ctx, name, userID, nil)
}

// lock 加锁并在执行期间定时续期
func (r *Registry) lock(ctx context.Context, userID int64, name string) (func(), error) {
	owner, ok, err := r.deps.Locker.Acquire(ctx, userID, name)
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s for user %d", ErrBusy, name, userID)
	}
	done := make(chan struct{})
	go func() {
		tkr := time.NewTicker(r.deps.LockRenewEvery)
		defer tkr.Stop()
		for {
			select {
			case <-done:
				return
			case <-tkr.C:
				if ok, err := r.deps.Locker.Renew(context.Background(), userID, name, owner); err != nil || !ok {
					log.Printf("renew lock %s/%d failed: ok=%v err=%v", name, userID, ok, err)
				}
			}
		}
	}()
	return func() {
		close(done)
		if _, err := r.deps.Locker.Release(context.Background(), userID, name, owner); err != nil {
			log.Printf("release lock %s/%d failed: %v", name, userID, err)
		}
	}, nil
}

// generate 渲染模板并调用模型
func (r *Registry) generate(ctx context.Context, tpl string, values map[string]any, req ollama.GenerateRequest) (string, error) {
	prompt, err := r.deps.Prompts.Render(tpl, values)
	if err != nil {
		return "", err
	}
	req.Prompt = prompt
	resp, err := r.deps.Model.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Fallback {
		log.Printf("recipe %s served by fallback model %s", tpl, resp.Model)
	}
	return resp.Response, nil
}
