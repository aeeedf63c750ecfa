// Package automation 按 cron 调度自动化规则：触发时重新读取规则、检查条件、执行动作并记录日志
package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/KH1188/juliusos/internal/domain"
	"github.com/KH1188/juliusos/internal/recipe"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var (
	ErrUnsupportedTrigger = errors.New("unsupported trigger")
	ErrInvalidCron        = errors.New("invalid cron expression")
)

// Store 规则与日志的持久化；引擎只读规则，仅通过 RecordExecution 写日志与 last_run_ts
type Store interface {
	ListActiveRules(ctx context.Context) ([]domain.AutomationRule, error)
	GetRule(ctx context.Context, id uuid.UUID) (*domain.AutomationRule, error)
	RecordExecution(ctx context.Context, l *domain.AutomationLog) error
}

// ResourceAPI 条件读取与 save_to 写入
type ResourceAPI interface {
	GetList(ctx context.Context, path string, q url.Values) ([]json.RawMessage, error)
	Post(ctx context.Context, path string, q url.Values, payload any) (json.RawMessage, error)
}

// RecipeRunner 与请求入口共用的进程内 recipe 分发
type RecipeRunner interface {
	Run(ctx context.Context, name string, userID int64, params recipe.Params) (any, error)
}

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

type Metrics interface {
	Incr(ctx context.Context, name string)
}

type Outcome string

const (
	OutcomeInactive Outcome = "inactive"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeExecuted Outcome = "executed"
)

// 指标名
const (
	MetricFired    = "fired"
	MetricInactive = "inactive"
	MetricSkipped  = "skipped"
	MetricExecuted = "executed"
	MetricFailed   = "failed"
)

type Options struct {
	Location *time.Location
	Notifier Notifier
	Metrics  Metrics
	// OnStop 在调度停止后调用，用于释放客户端连接
	OnStop func()
	Now    func() time.Time
}

type Engine struct {
	cron    *cron.Cron
	store   Store
	api     ResourceAPI
	recipes RecipeRunner
	opts    Options

	mu      sync.Mutex
	entries map[uuid.UUID]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewEngine(store Store, api ResourceAPI, recipes RecipeRunner, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := cron.PrintfLogger(log.Default())
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cron: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
		store:   store,
		api:     api,
		recipes: recipes,
		opts:    opts,
		entries: map[uuid.UUID]cron.EntryID{},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start 加载全部启用的规则并启动调度
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Reload(ctx); err != nil {
		return err
	}
	e.cron.Start()
	log.Printf("automation engine started with %d rules", e.Len())
	return nil
}

// Stop 停止调度，等待运行中的任务结束或 ctx 超时
func (e *Engine) Stop(ctx context.Context) {
	done := e.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Printf("automation engine stop: %v", ctx.Err())
	}
	e.cancel()
	if e.opts.OnStop != nil {
		e.opts.OnStop()
	}
	log.Println("automation engine stopped")
}

// Reload 以当前启用规则为准重新注册，不再启用的规则移除
func (e *Engine) Reload(ctx context.Context) error {
	rules, err := e.store.ListActiveRules(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	keep := make(map[uuid.UUID]bool, len(rules))
	for _, r := range rules {
		if err := e.Register(r); err != nil {
			log.Printf("rule %s (%s) not scheduled: %v", r.ID, r.Name, err)
			continue
		}
		keep[r.ID] = true
	}
	for _, id := range e.Scheduled() {
		if !keep[id] {
			e.Remove(id)
		}
	}
	return nil
}

// Register 每个规则 id 至多一个任务，重复注册替换旧任务；未启用的规则只做移除
func (e *Engine) Register(rule domain.AutomationRule) error {
	if !rule.Active {
		e.Remove(rule.ID)
		return nil
	}
	if rule.Trigger.Kind() != domain.TriggerCron {
		e.Remove(rule.ID)
		return fmt.Errorf("%w: %q", ErrUnsupportedTrigger, rule.Trigger.Type)
	}
	spec := strings.TrimSpace(rule.Trigger.Cron)
	if len(strings.Fields(spec)) != 5 {
		e.Remove(rule.ID)
		return fmt.Errorf("%w: %q needs 5 fields", ErrInvalidCron, spec)
	}

	id := rule.ID
	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.entries[id]; ok {
		e.cron.Remove(old)
		delete(e.entries, id)
	}
	entryID, err := e.cron.AddFunc(spec, func() { e.fire(id) })
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCron, err)
	}
	e.entries[id] = entryID
	return nil
}

// Remove 移除规则对应的任务，不存在时忽略
func (e *Engine) Remove(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if entryID, ok := e.entries[id]; ok {
		e.cron.Remove(entryID)
		delete(e.entries, id)
	}
}

// Scheduled 当前已调度的规则 id
func (e *Engine) Scheduled() []uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(e.entries))
	for id := range e.entries {
		ids = append(ids, id)
	}
	return ids
}

// Len 调度器中的任务数
func (e *Engine) Len() int {
	return len(e.cron.Entries())
}

// Next 规则下一次触发时间
func (e *Engine) Next(id uuid.UUID) (time.Time, bool) {
	e.mu.Lock()
	entryID, ok := e.entries[id]
	e.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return e.cron.Entry(entryID).Next, true
}

// fire cron 回调，错误和 panic 只计数记日志，规则保持调度
func (e *Engine) fire(id uuid.UUID) {
	e.incr(MetricFired)
	defer func() {
		if r := recover(); r != nil {
			e.incr(MetricFailed)
			log.Printf("rule %s execution panicked: %v", id, r)
		}
	}()
	outcome, err := e.Execute(e.ctx, id)
	if err != nil {
		e.incr(MetricFailed)
		log.Printf("rule %s execution failed: %v", id, err)
		return
	}
	log.Printf("rule %s: %s", id, outcome)
}

// Execute 重新读取规则；未启用则跳过；条件不满足不写日志；否则执行动作、写日志并更新 last_run_ts
func (e *Engine) Execute(ctx context.Context, id uuid.UUID) (Outcome, error) {
	rule, err := e.store.GetRule(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get rule: %w", err)
	}
	if !rule.Active {
		e.incr(MetricInactive)
		return OutcomeInactive, nil
	}

	ok, err := e.checkCondition(ctx, rule)
	if err != nil {
		return "", fmt.Errorf("check condition: %w", err)
	}
	if !ok {
		e.incr(MetricSkipped)
		return OutcomeSkipped, nil
	}

	result := e.runAction(ctx, rule)
	b, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	entry := domain.AutomationLog{
		ID:     uuid.New(),
		RuleID: rule.ID,
		At:     e.opts.Now().UTC(),
		Result: b,
	}
	if err := e.store.RecordExecution(ctx, &entry); err != nil {
		return "", fmt.Errorf("record execution: %w", err)
	}
	e.incr(MetricExecuted)
	return OutcomeExecuted, nil
}

// Watch 热加载：消费规则变更直到 channel 关闭或 ctx 结束
func (e *Engine) Watch(ctx context.Context, changes <-chan domain.RuleChange) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-changes:
			if !ok {
				return
			}
			e.apply(ctx, ch)
		}
	}
}

func (e *Engine) apply(ctx context.Context, ch domain.RuleChange) {
	if ch.Op == domain.RuleDeleted {
		e.Remove(ch.RuleID)
		log.Printf("rule %s removed", ch.RuleID)
		return
	}
	rule, err := e.store.GetRule(ctx, ch.RuleID)
	if err != nil {
		log.Printf("reload rule %s failed: %v", ch.RuleID, err)
		return
	}
	if err := e.Register(*rule); err != nil {
		log.Printf("reload rule %s not scheduled: %v", ch.RuleID, err)
		return
	}
	log.Printf("rule %s reloaded (active=%v)", ch.RuleID, rule.Active)
}

func (e *Engine) incr(name string) {
	if e.opts.Metrics != nil {
		e.opts.Metrics.Incr(e.ctx, name)
	}
}
