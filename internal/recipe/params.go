package recipe

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
)

// Params recipe 的调用参数（来自 JSON body 或规则的 action.params）
type Params map[string]any

func (p Params) String(key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

func (p Params) Bool(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	}
	return false
}

func (p Params) Strings(key string) []string {
	var out []string
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		for _, it := range v {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
	case string:
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (p Params) Map(key string) map[string]any {
	if m, ok := p[key].(map[string]any); ok && len(m) > 0 {
		return m
	}
	return nil
}

// decodeObject 模型返回的文本必须是 JSON 对象才算解析成功
func decodeObject[T any](text string, def T) T {
	if !gjson.Valid(text) || !gjson.Parse(text).IsObject() {
		return def
	}
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return def
	}
	return v
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// withValues 复制 q 并追加一个键值
func withValues(q url.Values, key, value string) url.Values {
	out := url.Values{}
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	out.Set(key, value)
	return out
}
