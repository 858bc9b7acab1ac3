// Package config loads the service configuration from a YAML file and
// ARENA_-prefixed environment variables, with environment taking
// precedence. Sections convert into the concrete configs of the
// infrastructure packages they describe.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/modelarena/arena/infrastructure/eventbus"
	"github.com/modelarena/arena/infrastructure/judge"
	"github.com/modelarena/arena/infrastructure/llm"
	"github.com/modelarena/arena/infrastructure/scoring"
	"github.com/modelarena/arena/internal/application"
)

// envPrefix namespaces the environment variables read by Load.
const envPrefix = "ARENA_"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig           `koanf:"server"`
	Models    map[string]ModelConfig `koanf:"models" validate:"required,min=1,dive"`
	LLM       LLMConfig              `koanf:"llm"`
	Embedding EmbeddingConfig        `koanf:"embedding"`
	Judge     JudgeConfig            `koanf:"judge"`
	Scoring   ScoringConfig          `koanf:"scoring"`
	Planner   PlannerConfig          `koanf:"planner"`
	Memory    MemoryConfig           `koanf:"memory"`
	Store     StoreConfig            `koanf:"store"`
	Bus       BusConfig              `koanf:"bus"`
	Logging   LoggingConfig          `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ModelConfig maps one caller-facing model id to a provider backend.
type ModelConfig struct {
	Provider string `koanf:"provider" validate:"required,oneof=openai anthropic google"`
	Model    string `koanf:"model" validate:"required"`
	APIKey   string `koanf:"api_key" validate:"required"`
	BaseURL  string `koanf:"base_url"`
}

// LLMConfig holds the operational settings applied to every model client.
type LLMConfig struct {
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries" validate:"min=0,max=10"`
	RateLimit  float64       `koanf:"rate_limit" validate:"min=0"`
	Burst      int           `koanf:"burst" validate:"min=0"`
}

// EmbeddingConfig configures the OpenAI embedding client.
type EmbeddingConfig struct {
	APIKey  string `koanf:"api_key" validate:"required"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

// JudgeConfig configures the qualitative judge.
type JudgeConfig struct {
	ModelID     string  `koanf:"model_id" validate:"required"`
	RubricPath  string  `koanf:"rubric_path"`
	Temperature float64 `koanf:"temperature" validate:"min=0,max=1"`
	MaxTokens   int     `koanf:"max_tokens" validate:"min=50,max=4000"`
}

// ScoringConfig sets the combined-score weights.
type ScoringConfig struct {
	BLEUWeight   float64 `koanf:"bleu_weight" validate:"min=0,max=1"`
	ROUGELWeight float64 `koanf:"rouge_l_weight" validate:"min=0,max=1"`
	CosineWeight float64 `koanf:"cosine_weight" validate:"min=0,max=1"`
}

// PlannerConfig controls the model fan-out and memory retrieval.
type PlannerConfig struct {
	ModelTimeout   time.Duration `koanf:"model_timeout"`
	MaxConcurrent  int           `koanf:"max_concurrent" validate:"min=1"`
	RetrievalLimit int           `koanf:"retrieval_limit" validate:"min=1"`
	MinRelevance   float64       `koanf:"min_relevance" validate:"min=0,max=1"`
}

// MemoryConfig locates the semantic memory database.
type MemoryConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// StoreConfig locates the session database.
type StoreConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// BusConfig configures the in-process event bus.
type BusConfig struct {
	QueueSize       int           `koanf:"queue_size" validate:"min=1"`
	MaxAttempts     int           `koanf:"max_attempts" validate:"min=1,max=10"`
	RedeliveryDelay time.Duration `koanf:"redelivery_delay"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// defaults applied before file and environment loading.
var defaults = map[string]any{
	"server.addr":             ":8080",
	"server.read_timeout":     "30s",
	"server.write_timeout":    "120s",
	"server.shutdown_timeout": "10s",
	"llm.timeout":             "90s",
	"llm.max_retries":         2,
	"llm.rate_limit":          10.0,
	"llm.burst":               20,
	"embedding.model":         llm.DefaultEmbeddingModel,
	"judge.temperature":       judge.DefaultTemperature,
	"judge.max_tokens":        judge.DefaultMaxTokens,
	"scoring.bleu_weight":     0.25,
	"scoring.rouge_l_weight":  0.25,
	"scoring.cosine_weight":   0.5,
	"planner.model_timeout":   "60s",
	"planner.max_concurrent":  application.DefaultMaxConcurrent,
	"planner.retrieval_limit": application.DefaultRetrievalLimit,
	"planner.min_relevance":   application.DefaultMinRelevance,
	"memory.path":             "arena-memory.db",
	"store.path":              "arena-sessions.db",
	"bus.queue_size":          eventbus.DefaultQueueSize,
	"bus.max_attempts":        eventbus.DefaultMaxAttempts,
	"bus.redelivery_delay":    "250ms",
	"logging.level":           "info",
	"logging.format":          "json",
}

// Load reads configuration from the optional YAML file at path, then
// overlays ARENA_-prefixed environment variables (ARENA_SERVER_ADDR maps to
// server.addr), validates the result, and returns it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// RegistryConfig converts the model table into the client registry config.
func (c *Config) RegistryConfig() llm.RegistryConfig {
	models := make(map[string]llm.ModelSpec, len(c.Models))
	for id, m := range c.Models {
		models[id] = llm.ModelSpec{
			Provider: m.Provider,
			Model:    m.Model,
			APIKey:   m.APIKey,
			BaseURL:  m.BaseURL,
		}
	}
	return llm.RegistryConfig{
		Models:     models,
		Timeout:    c.LLM.Timeout,
		MaxRetries: c.LLM.MaxRetries,
		RateLimit:  c.LLM.RateLimit,
		Burst:      c.LLM.Burst,
	}
}

// ScoringEngineConfig converts the scoring section.
func (c *Config) ScoringEngineConfig() scoring.Config {
	return scoring.Config{
		BLEUWeight:   c.Scoring.BLEUWeight,
		ROUGELWeight: c.Scoring.ROUGELWeight,
		CosineWeight: c.Scoring.CosineWeight,
	}
}

// JudgeEngineConfig converts the judge section.
func (c *Config) JudgeEngineConfig() judge.Config {
	return judge.Config{
		Temperature: c.Judge.Temperature,
		MaxTokens:   c.Judge.MaxTokens,
	}
}

// PlannerServiceConfig converts the planner fan-out settings.
func (c *Config) PlannerServiceConfig() application.PlannerConfig {
	return application.PlannerConfig{
		ModelTimeout:  c.Planner.ModelTimeout,
		MaxConcurrent: c.Planner.MaxConcurrent,
	}
}

// OrchestratorConfig converts the memory retrieval settings.
func (c *Config) OrchestratorConfig() application.OrchestratorConfig {
	return application.OrchestratorConfig{
		RetrievalLimit: c.Planner.RetrievalLimit,
		MinRelevance:   c.Planner.MinRelevance,
	}
}

// BusServiceConfig converts the event bus settings.
func (c *Config) BusServiceConfig() eventbus.Config {
	return eventbus.Config{
		QueueSize:       c.Bus.QueueSize,
		MaxAttempts:     c.Bus.MaxAttempts,
		RedeliveryDelay: c.Bus.RedeliveryDelay,
	}
}
