package automation

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/KH1188/juliusos/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	metricsPrefix = "metrics:automation:"
	metricsLast   = "metrics:automation:last"
	HeartbeatKey  = "automation:scheduler:heartbeat"
)

// MetricNames 对外展示的计数器
var MetricNames = []string{MetricFired, MetricInactive, MetricSkipped, MetricExecuted, MetricFailed}

// RedisMetrics 每个计数器一个 INCR key，另记录每个计数器最近一次变化时间
type RedisMetrics struct {
	rdb *redis.Client
}

func NewRedisMetrics(rdb *redis.Client) *RedisMetrics {
	return &RedisMetrics{rdb: rdb}
}

func (m *RedisMetrics) Incr(ctx context.Context, name string) {
	pipe := m.rdb.Pipeline()
	pipe.Incr(ctx, metricsPrefix+name)
	pipe.HSet(ctx, metricsLast, name, time.Now().UTC().Format(time.RFC3339))
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("metrics incr %s failed: %v", name, err)
	}
}

type MetricsSnapshot struct {
	Counters       map[string]int64  `json:"counters"`
	Last           map[string]string `json:"last"`
	SchedulerAlive bool              `json:"scheduler_alive"`
}

// ReadMetrics 读取全部计数器与心跳状态，不存在的计数器为 0
func ReadMetrics(ctx context.Context, rdb *redis.Client) (*MetricsSnapshot, error) {
	s := &MetricsSnapshot{Counters: map[string]int64{}}
	for _, name := range MetricNames {
		v, err := rdb.Get(ctx, metricsPrefix+name).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}
		s.Counters[name] = v
	}
	last, err := rdb.HGetAll(ctx, metricsLast).Result()
	if err != nil {
		return nil, err
	}
	s.Last = last
	n, err := rdb.Exists(ctx, HeartbeatKey).Result()
	if err != nil {
		return nil, err
	}
	s.SchedulerAlive = n == 1
	return s, nil
}

// StartHeartbeat 周期刷新调度器心跳键（TTL=ttl，刷新间隔=interval）
func StartHeartbeat(ctx context.Context, rdb *redis.Client, ttl, interval time.Duration) {
	tkr := time.NewTicker(interval)
	defer tkr.Stop()
	_ = rdb.Set(ctx, HeartbeatKey, time.Now().UTC().Format(time.RFC3339), ttl).Err()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tkr.C:
			_ = rdb.Set(ctx, HeartbeatKey, time.Now().UTC().Format(time.RFC3339), ttl).Err()
		}
	}
}

// SubscribeRuleChanges 订阅规则变更频道，ctx 结束时关闭订阅与返回的 channel
func SubscribeRuleChanges(ctx context.Context, rdb *redis.Client) <-chan domain.RuleChange {
	out := make(chan domain.RuleChange)
	sub := rdb.Subscribe(ctx, domain.RuleChangeChannel)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var ch domain.RuleChange
				if err := json.Unmarshal([]byte(m.Payload), &ch); err != nil {
					log.Printf("bad rule change message %q: %v", m.Payload, err)
					continue
				}
				select {
				case out <- ch:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
