package contextbuilder

import (
	"encoding/json"
	"time"
)

// Snapshot 一次聚合的结果，不持久化
type Snapshot struct {
	UserID      int64
	WindowStart time.Time
	WindowEnd   time.Time
	WindowDays  int
	Data        map[string]any
	// Degraded 查询失败而降级为空的模块，按出现顺序去重
	Degraded []string
}

func (s *Snapshot) degrade(module string) {
	for _, m := range s.Degraded {
		if m == module {
			return
		}
	}
	s.Degraded = append(s.Degraded, module)
}

// IsDegraded 模块是否发生过降级
func (s *Snapshot) IsDegraded(module string) bool {
	for _, m := range s.Degraded {
		if m == module {
			return true
		}
	}
	return false
}

// List 取某个列表型字段，不存在时返回空
func (s *Snapshot) List(key string) []json.RawMessage {
	if v, ok := s.Data[key].([]json.RawMessage); ok {
		return v
	}
	return []json.RawMessage{}
}

// Get 取任意字段
func (s *Snapshot) Get(key string) any {
	if v, ok := s.Data[key]; ok {
		return v
	}
	return []json.RawMessage{}
}

// MarshalJSON 展平为 {user_id, window_start, window_end, window_days, <module>...}
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Data)+4)
	for k, v := range s.Data {
		out[k] = v
	}
	out["user_id"] = s.UserID
	out["window_start"] = s.WindowStart.UTC().Format(time.RFC3339Nano)
	out["window_end"] = s.WindowEnd.UTC().Format(time.RFC3339Nano)
	out["window_days"] = s.WindowDays
	return json.Marshal(out)
}
