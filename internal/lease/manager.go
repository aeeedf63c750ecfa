// Package lease 基于 Redis 的 recipe 互斥锁，同一 (user, recipe) 同时只允许一个执行
package lease

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func LockKey(userID int64, recipe string) string {
	return "lock:recipe:" + strconv.FormatInt(userID, 10) + ":" + recipe
}

type Manager struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewManager(rdb *redis.Client, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Manager{rdb: rdb, ttl: ttl}
}

// Acquire 尝试加锁（仅当不存在时成功），成功时返回持有者 token
func (m *Manager) Acquire(ctx context.Context, userID int64, recipe string) (string, bool, error) {
	owner := uuid.NewString()
	ok, err := m.rdb.SetNX(ctx, LockKey(userID, recipe), owner, m.ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return owner, true, nil
}

// Renew 仅当持有者匹配时续期
func (m *Manager) Renew(ctx context.Context, userID int64, recipe, owner string) (bool, error) {
	script := `
		if redis.call('GET', KEYS[1]) == ARGV[1] then
 			return redis.call('PEXPIRE', KEYS[1], ARGV[2])
		else
			return 0
		end`

	cmd := m.rdb.Eval(ctx, script, []string{LockKey(userID, recipe)}, owner, int(m.ttl.Milliseconds()))
	if err := cmd.Err(); err != nil {
		return false, err
	}
	n, _ := cmd.Int()
	return n == 1, nil
}

// Release 仅当持有者匹配时释放
func (m *Manager) Release(ctx context.Context, userID int64, recipe, owner string) (bool, error) {
	script := `
		if redis.call('GET', KEYS[1]) == ARGV[1] then
			return redis.call('DEL', KEYS[1])
		else
			return 0
		end`

	cmd := m.rdb.Eval(ctx, script, []string{LockKey(userID, recipe)}, owner)
	if err := cmd.Err(); err != nil {
		return false, err
	}
	n, _ := cmd.Int()
	return n == 1, nil
}
