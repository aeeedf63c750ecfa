package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	HTTPPort    string `yaml:"http_port"`
	AgentPort   string `yaml:"agent_port"`
	PostgresDSN string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	// Resource API 基础地址（Context Aggregator 与自动化条件读取用）
	APIURL string `yaml:"api_url"`

	OllamaURL           string  `yaml:"ollama_url"`
	OllamaModel         string  `yaml:"ollama_model"`
	OllamaFallbackModel string  `yaml:"ollama_fallback_model"`
	DefaultTemperature  float64 `yaml:"default_temperature"`
	CreativeTemperature float64 `yaml:"creative_temperature"`
	ContextWindowDays   int     `yaml:"default_context_window_days"`

	DefaultUserID int64 `yaml:"default_user_id"`

	AutomationTimezone  string `yaml:"automation_timezone"`
	AutomationHotReload bool   `yaml:"automation_hot_reload"`
	RecipeLock          bool   `yaml:"recipe_lock"`

	ProjectRoot string `yaml:"project_root"`
	PromptsDir  string `yaml:"prompts_dir"`
}

func Default() AppConfig {
	return AppConfig{
		HTTPPort:            "8000",
		AgentPort:           "8001",
		PostgresDSN:         "host=localhost port=5432 user=julios dbname=julios sslmode=disable",
		RedisURL:            "redis://localhost:6379",
		APIURL:              "http://localhost:8000/api/v1",
		OllamaURL:           "http://localhost:11434",
		OllamaModel:         "llama3:8b",
		OllamaFallbackModel: "mistral",
		DefaultTemperature:  0.3,
		CreativeTemperature: 0.7,
		ContextWindowDays:   7,
		DefaultUserID:       1,
		AutomationTimezone:  "Local",
		ProjectRoot:         "/home/julius/juliusos",
	}
}

// Load 默认值 -> JULIOS_CONFIG 指定的 YAML 文件 -> 环境变量，后者覆盖前者
func Load() AppConfig {
	cfg := Default()
	if path := os.Getenv("JULIOS_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			// 配置文件错误不致命，继续使用默认值与环境变量
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
	}
	applyEnv(&cfg)
	return cfg
}

func loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) {
	setString(&cfg.HTTPPort, "HTTP_PORT")
	setString(&cfg.AgentPort, "AGENT_PORT")
	setString(&cfg.PostgresDSN, "DATABASE_URL")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.APIURL, "API_URL")
	setString(&cfg.OllamaURL, "OLLAMA_URL")
	setString(&cfg.OllamaModel, "OLLAMA_MODEL")
	setString(&cfg.OllamaFallbackModel, "OLLAMA_FALLBACK_MODEL")
	setString(&cfg.AutomationTimezone, "AUTOMATION_TIMEZONE")
	setString(&cfg.ProjectRoot, "PROJECT_ROOT")
	setString(&cfg.PromptsDir, "PROMPTS_DIR")

	if v := os.Getenv("DEFAULT_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.DefaultTemperature = f
		}
	}
	if v := os.Getenv("CREATIVE_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.CreativeTemperature = f
		}
	}
	if v := os.Getenv("DEFAULT_CONTEXT_WINDOW_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ContextWindowDays = n
		}
	}
	if v := os.Getenv("DEFAULT_USER_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.DefaultUserID = n
		}
	}
	if v := os.Getenv("AUTOMATION_HOT_RELOAD"); v != "" {
		cfg.AutomationHotReload = parseBool(v)
	}
	if v := os.Getenv("RECIPE_LOCK"); v != "" {
		cfg.RecipeLock = parseBool(v)
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
