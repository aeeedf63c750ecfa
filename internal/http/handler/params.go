package handler

import (
	"strconv"
	"time"

	"github.com/KH1188/juliusos/internal/domain"

	"github.com/gin-gonic/gin"
)

// userID 取 query 中的 user_id，缺失或非法时使用默认用户
func userID(c *gin.Context, def int64) int64 {
	if v := c.Query("user_id"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// timeQuery 解析可选的时间参数，未提供时返回 nil
func timeQuery(c *gin.Context, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	t, err := domain.ParseTime(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func intQuery(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
