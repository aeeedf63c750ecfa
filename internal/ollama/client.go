// Package ollama 本地 Ollama 服务的客户端：有限次重试 + 单级备用模型
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrGeneration = errors.New("ollama generation failed")
	ErrChat       = errors.New("ollama chat failed")
)

const (
	DefaultTimeout   = 120 * time.Second
	defaultAttempts  = 3
	defaultBaseDelay = 2 * time.Second
	defaultMaxDelay  = 10 * time.Second
)

type Config struct {
	BaseURL            string
	Model              string
	FallbackModel      string
	DefaultTemperature float64
	Timeout            time.Duration
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response 归一化后的模型响应；Fallback=true 表示由备用模型产出
type Response struct {
	Response string   `json:"response"`
	Model    string   `json:"model"`
	Done     bool     `json:"done"`
	Fallback bool     `json:"fallback"`
	Message  *Message `json:"message,omitempty"`
}

type GenerateRequest struct {
	Prompt      string
	System      string
	Temperature *float64 // nil 使用默认温度
	MaxTokens   int
	Model       string // 空则使用主模型
	Format      string // "json" 要求结构化输出
}

type ChatRequest struct {
	Messages    []Message
	Temperature *float64
	Model       string
	Format      string
}

type Client struct {
	baseURL     string
	model       string
	fallback    string
	defaultTemp float64
	http        *http.Client

	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		fallback:    cfg.FallbackModel,
		defaultTemp: cfg.DefaultTemperature,
		http:        &http.Client{Timeout: timeout},
		attempts:    defaultAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
	}
}

// WithBackoff 调整重试间隔（初始值与上限）
func (c *Client) WithBackoff(base, maxDelay time.Duration) *Client {
	c.baseDelay = base
	c.maxDelay = maxDelay
	return c
}

// Model 主模型名
func (c *Client) Model() string { return c.model }

// Temp 便于构造 *float64
func Temp(v float64) *float64 { return &v }

type options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generatePayload struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options options `json:"options"`
	System  string  `json:"system,omitempty"`
	Format  string  `json:"format,omitempty"`
}

type chatPayload struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  options   `json:"options"`
	Format   string    `json:"format,omitempty"`
}

type wireResponse struct {
	Model    string   `json:"model"`
	Response string   `json:"response"`
	Message  *Message `json:"message"`
	Done     *bool    `json:"done"`
}

func (w wireResponse) normalize() *Response {
	r := &Response{Model: w.Model, Response: w.Response, Done: true, Message: w.Message}
	if w.Done != nil {
		r.Done = *w.Done
	}
	if w.Message != nil && r.Response == "" {
		r.Response = w.Message.Content
	}
	return r
}

func (c *Client) temperature(t *float64) float64 {
	if t != nil {
		return *t
	}
	return c.defaultTemp
}

// Generate 主模型最多尝试 attempts 次（指数退避），仍失败且配置了不同的备用模型时再请求一次备用模型
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	payload := generatePayload{
		Model:   model,
		Prompt:  req.Prompt,
		Options: options{Temperature: c.temperature(req.Temperature), NumPredict: req.MaxTokens},
		System:  req.System,
	}
	if req.Format == "json" {
		payload.Format = "json"
	}

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			if err := c.wait(ctx, attempt); err != nil {
				lastErr = err
				break
			}
		}
		resp, err := c.post(ctx, "/api/generate", payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}

	if c.fallback != "" && c.fallback != model && ctx.Err() == nil {
		payload.Model = c.fallback
		if resp, err := c.post(ctx, "/api/generate", payload); err == nil {
			resp.Fallback = true
			return resp, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrGeneration, lastErr)
}

// Chat 不重试，失败时仅尝试一次备用模型
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	payload := chatPayload{
		Model:    model,
		Messages: req.Messages,
		Options:  options{Temperature: c.temperature(req.Temperature)},
	}
	if req.Format == "json" {
		payload.Format = "json"
	}

	resp, err := c.post(ctx, "/api/chat", payload)
	if err == nil {
		return resp, nil
	}
	if c.fallback != "" && c.fallback != model {
		payload.Model = c.fallback
		if fb, ferr := c.post(ctx, "/api/chat", payload); ferr == nil {
			fb.Fallback = true
			return fb, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrChat, err)
}

// wait 第 n 次重试前的退避：base * 2^(n-1)，不超过 max
func (c *Client) wait(ctx context.Context, n int) error {
	delay := c.baseDelay << (n - 1)
	if delay > c.maxDelay || delay <= 0 {
		delay = c.maxDelay
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) post(ctx context.Context, path string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var w wireResponse
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return w.normalize(), nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// CheckHealth /api/tags 返回 200 即视为可用，不返回错误
func (c *Client) CheckHealth(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// ListModels 失败时返回空列表
func (c *Client) ListModels(ctx context.Context) []string {
	names := []string{}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return names
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return names
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return names
	}
	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return names
	}
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names
}

// Close 释放连接，调用方负责在用完后调用
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
