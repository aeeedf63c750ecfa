// Package queue 基于 Redis 的通知列表
// notify_ui 动作把消息 LPUSH 到用户的通知列表，列表长度有上限
package queue

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/KH1188/juliusos/internal/domain"

	"github.com/redis/go-redis/v9"
)

// DefaultNotificationCap 每个用户最多保留的通知条数
const DefaultNotificationCap = 200

// NotificationsKey 用户通知列表的 key，格式 "notifications:{userID}"
func NotificationsKey(userID int64) string {
	return "notifications:" + strconv.FormatInt(userID, 10)
}

// Notifier 把通知写入 Redis 列表
type Notifier struct {
	rdb *redis.Client
	cap int64
}

func NewNotifier(rdb *redis.Client, cap int64) *Notifier {
	if cap <= 0 {
		cap = DefaultNotificationCap
	}
	return &Notifier{rdb: rdb, cap: cap}
}

// Notify LPUSH 到列表头部并 LTRIM 截断，两步在同一事务管道中执行
func (n *Notifier) Notify(ctx context.Context, note domain.Notification) error {
	b, err := json.Marshal(note)
	if err != nil {
		return err
	}
	key := NotificationsKey(note.UserID)
	pipe := n.rdb.TxPipeline()
	pipe.LPush(ctx, key, b)
	pipe.LTrim(ctx, key, 0, n.cap-1)
	_, err = pipe.Exec(ctx)
	return err
}

// ListNotifications 最新在前，limit<=0 返回全部
func ListNotifications(ctx context.Context, rdb *redis.Client, userID int64, limit int64) ([]domain.Notification, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}
	items, err := rdb.LRange(ctx, NotificationsKey(userID), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	res := make([]domain.Notification, 0, len(items))
	for _, it := range items {
		var n domain.Notification
		if err := json.Unmarshal([]byte(it), &n); err != nil {
			continue
		}
		res = append(res, n)
	}
	return res, nil
}

// Connect 解析 URL 建立连接并 PING 验证，失败时关闭客户端
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}
