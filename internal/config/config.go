// Package config loads the service configuration from defaults, an optional
// TOML file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
)

// Config holds every recognized option. Keys are the lowercased names of the
// environment variables (REDIS_URL -> redis_url).
type Config struct {
	Port      int    `koanf:"port"`
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	RedisURL        string `koanf:"redis_url"`
	PostgresURL     string `koanf:"postgres_url"`
	MongoURL        string `koanf:"mongo_url"`
	MongoDatabase   string `koanf:"mongo_database"`
	MongoCollection string `koanf:"mongo_collection"`

	HistoryBackend string `koanf:"history_backend"`
	HistoryTable   string `koanf:"history_table"`

	LLMProvider    string `koanf:"llm_provider"`
	GeminiAPIKey   string `koanf:"gemini_api_key"`
	OpenAIAPIKey   string `koanf:"openai_api_key"`
	OpenAIBaseURL  string `koanf:"openai_base_url"`
	ParamPrefix    string `koanf:"param_prefix"`
	EmbeddingModel string `koanf:"embedding_model"`

	MainModel       string  `koanf:"main_model"`
	MainTemperature float64 `koanf:"main_temperature"`
	MainTopP        float64 `koanf:"main_top_p"`
	FastModel       string  `koanf:"fast_model"`
	FastTemperature float64 `koanf:"fast_temperature"`
	MaxToolSteps    int     `koanf:"max_tool_steps"`

	MaxContextItems   int           `koanf:"max_context_items"`
	MaxQuestionLength int           `koanf:"max_question_length"`
	StageTimeout      time.Duration `koanf:"stage_timeout"`
	RateLimit         float64       `koanf:"rate_limit"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

func defaults() map[string]any {
	return map[string]any{
		"port":                8000,
		"log_level":           "info",
		"log_format":          "json",
		"redis_url":           "",
		"postgres_url":        "",
		"mongo_url":           "",
		"mongo_database":      "purpura",
		"mongo_collection":    "empresas",
		"history_backend":     BackendRedis,
		"history_table":       "",
		"llm_provider":        ProviderGemini,
		"gemini_api_key":      "",
		"openai_api_key":      "",
		"openai_base_url":     "",
		"param_prefix":        "",
		"embedding_model":     "text-embedding-004",
		"main_model":          "gemini-2.5-flash",
		"main_temperature":    0.7,
		"main_top_p":          0.95,
		"fast_model":          "gemini-2.0-flash",
		"fast_temperature":    0.0,
		"max_tool_steps":      8,
		"max_context_items":   20,
		"max_question_length": 0,
		"stage_timeout":       "30s",
		"rate_limit":          0.0,
		"shutdown_timeout":    "10s",
	}
}

// Load reads configuration. path may be empty.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	defs := defaults()
	if err := k.Load(confmap.Provider(defs, "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path = strings.TrimSpace(path); path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	// Only recognized variables are read; everything else in the
	// environment is ignored.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if _, ok := defs[key]; !ok {
			return ""
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// ModelAPIKey returns the key of the selected provider, if configured inline.
func (c *Config) ModelAPIKey() string {
	if c.LLMProvider == ProviderOpenAI {
		return strings.TrimSpace(c.OpenAIAPIKey)
	}
	return strings.TrimSpace(c.GeminiAPIKey)
}

// Validate reports every missing or invalid option at once.
func (c *Config) Validate() error {
	var errs []error
	required := []struct {
		name  string
		value string
	}{
		{"REDIS_URL", c.RedisURL},
		{"POSTGRES_URL", c.PostgresURL},
		{"MONGO_URL", c.MongoURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}

	switch c.LLMProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, c.LLMProvider))
	}
	if c.ModelAPIKey() == "" && strings.TrimSpace(c.ParamPrefix) == "" {
		errs = append(errs, errors.New("a model API key is required: set GEMINI_API_KEY or OPENAI_API_KEY, or PARAM_PREFIX to read it from SSM"))
	}
	// Embeddings always use Gemini.
	if c.LLMProvider == ProviderOpenAI && strings.TrimSpace(c.GeminiAPIKey) == "" && strings.TrimSpace(c.ParamPrefix) == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required for embeddings"))
	}

	switch c.HistoryBackend {
	case BackendRedis:
	case BackendDynamoDB:
		if strings.TrimSpace(c.HistoryTable) == "" {
			errs = append(errs, errors.New("HISTORY_TABLE is required when HISTORY_BACKEND=dynamodb"))
		}
	default:
		errs = append(errs, fmt.Errorf("HISTORY_BACKEND must be %q or %q, got %q", BackendRedis, BackendDynamoDB, c.HistoryBackend))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.StageTimeout <= 0 {
		errs = append(errs, errors.New("STAGE_TIMEOUT must be positive"))
	}
	if c.MaxQuestionLength < 0 {
		errs = append(errs, errors.New("MAX_QUESTION_LENGTH must not be negative"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("RATE_LIMIT must not be negative"))
	}
	return errors.Join(errs...)
}
