package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Store       StoreConfig     `yaml:"store"`
	Knowledge   KnowledgeConfig `yaml:"knowledge"`
	LLM         LLMConfig       `yaml:"llm"`
	TTS         TTSConfig       `yaml:"tts"`
	Pipeline    PipelineConfig  `yaml:"pipeline"`
	Cache       CacheConfig     `yaml:"cache"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type KnowledgeConfig struct {
	Dir string `yaml:"dir"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"` // mock, openai, ollama
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Endpoint    string  `yaml:"endpoint"` // ollama
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type TTSConfig struct {
	Provider          string `yaml:"provider"` // mock, openai, minimax, exec
	APIKey            string `yaml:"api_key"`
	BaseURL           string `yaml:"base_url"`
	Model             string `yaml:"model"`
	Voice             string `yaml:"voice"`
	GroupID           string `yaml:"group_id"` // minimax
	Command           string `yaml:"command"`  // exec
	SampleRate        int    `yaml:"sample_rate"`
	Channels          int    `yaml:"channels"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

type PipelineConfig struct {
	MaxAttempts     int    `yaml:"max_attempts"`
	RetryMinWaitMS  int    `yaml:"retry_min_wait_ms"`
	RetryMaxWaitMS  int    `yaml:"retry_max_wait_ms"`
	SegmentBudgetMS int    `yaml:"segment_budget_ms"`
	AudioURLBase    string `yaml:"audio_url_base"`
}

type CacheConfig struct {
	MaxAgeSeconds          int `yaml:"max_age_seconds"`
	CleanupIntervalSeconds int `yaml:"cleanup_interval_seconds"`
}

func Default() Config {
	return Config{
		ServiceName: "mindwave",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Store: StoreConfig{
			Path:          "./data/mindwave.db",
			RetentionDays: 90,
		},
		LLM: LLMConfig{
			Provider:    "mock",
			Endpoint:    "http://localhost:11434",
			Model:       "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		TTS: TTSConfig{
			Provider:       "mock",
			SampleRate:     22050,
			Channels:       1,
			TimeoutSeconds: 30,
		},
		Pipeline: PipelineConfig{
			MaxAttempts:     5,
			RetryMinWaitMS:  2000,
			RetryMaxWaitMS:  10000,
			SegmentBudgetMS: 60000,
			AudioURLBase:    "/v1/meditation/audio",
		},
		Cache: CacheConfig{
			MaxAgeSeconds:          3600,
			CleanupIntervalSeconds: 3600,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "MINDWAVE_SERVICE_NAME")
	overrideString(&cfg.Environment, "MINDWAVE_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "MINDWAVE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "MINDWAVE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "MINDWAVE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "MINDWAVE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "MINDWAVE_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Enabled, "MINDWAVE_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "MINDWAVE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "MINDWAVE_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "MINDWAVE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "MINDWAVE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "MINDWAVE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "MINDWAVE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "MINDWAVE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "MINDWAVE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Store.Path, "MINDWAVE_STORE_PATH")
	overrideInt(&cfg.Store.RetentionDays, "MINDWAVE_STORE_RETENTION_DAYS")
	overrideString(&cfg.Knowledge.Dir, "MINDWAVE_KNOWLEDGE_DIR")
	overrideString(&cfg.LLM.Provider, "MINDWAVE_LLM_PROVIDER")
	overrideString(&cfg.LLM.APIKey, "MINDWAVE_LLM_API_KEY")
	overrideString(&cfg.LLM.BaseURL, "MINDWAVE_LLM_BASE_URL")
	overrideString(&cfg.LLM.Endpoint, "MINDWAVE_LLM_ENDPOINT")
	overrideString(&cfg.LLM.Model, "MINDWAVE_LLM_MODEL")
	overrideInt(&cfg.LLM.MaxTokens, "MINDWAVE_LLM_MAX_TOKENS")
	overrideFloat(&cfg.LLM.Temperature, "MINDWAVE_LLM_TEMPERATURE")
	overrideString(&cfg.TTS.Provider, "MINDWAVE_TTS_PROVIDER")
	overrideString(&cfg.TTS.APIKey, "MINDWAVE_TTS_API_KEY")
	overrideString(&cfg.TTS.BaseURL, "MINDWAVE_TTS_BASE_URL")
	overrideString(&cfg.TTS.Model, "MINDWAVE_TTS_MODEL")
	overrideString(&cfg.TTS.Voice, "MINDWAVE_TTS_VOICE")
	overrideString(&cfg.TTS.GroupID, "MINDWAVE_TTS_GROUP_ID")
	overrideString(&cfg.TTS.Command, "MINDWAVE_TTS_COMMAND")
	overrideInt(&cfg.TTS.SampleRate, "MINDWAVE_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.Channels, "MINDWAVE_TTS_CHANNELS")
	overrideInt(&cfg.TTS.TimeoutSeconds, "MINDWAVE_TTS_TIMEOUT_SECONDS")
	overrideInt(&cfg.TTS.RequestsPerMinute, "MINDWAVE_TTS_REQUESTS_PER_MINUTE")
	overrideInt(&cfg.Pipeline.MaxAttempts, "MINDWAVE_PIPELINE_MAX_ATTEMPTS")
	overrideInt(&cfg.Pipeline.RetryMinWaitMS, "MINDWAVE_PIPELINE_RETRY_MIN_WAIT_MS")
	overrideInt(&cfg.Pipeline.RetryMaxWaitMS, "MINDWAVE_PIPELINE_RETRY_MAX_WAIT_MS")
	overrideInt(&cfg.Pipeline.SegmentBudgetMS, "MINDWAVE_PIPELINE_SEGMENT_BUDGET_MS")
	overrideString(&cfg.Pipeline.AudioURLBase, "MINDWAVE_PIPELINE_AUDIO_URL_BASE")
	overrideInt(&cfg.Cache.MaxAgeSeconds, "MINDWAVE_CACHE_MAX_AGE_SECONDS")
	overrideInt(&cfg.Cache.CleanupIntervalSeconds, "MINDWAVE_CACHE_CLEANUP_INTERVAL_SECONDS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if cfg.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must be >= 0")
	}
	switch cfg.LLM.Provider {
	case "mock", "openai", "ollama":
	default:
		return errors.New("llm.provider must be one of mock|openai|ollama")
	}
	if cfg.LLM.Provider == "ollama" && cfg.LLM.Endpoint == "" {
		return errors.New("llm.endpoint must be set when provider=ollama")
	}
	if cfg.LLM.MaxTokens < 0 {
		return errors.New("llm.max_tokens must be >= 0")
	}
	switch cfg.TTS.Provider {
	case "mock", "openai", "minimax", "exec":
	default:
		return errors.New("tts.provider must be one of mock|openai|minimax|exec")
	}
	if cfg.TTS.Provider == "exec" {
		if cfg.TTS.Command == "" {
			return errors.New("tts.command must be set when provider=exec")
		}
		if cfg.TTS.SampleRate <= 0 {
			return errors.New("tts.sample_rate must be positive")
		}
		if cfg.TTS.Channels <= 0 {
			return errors.New("tts.channels must be positive")
		}
	}
	if cfg.TTS.Provider == "minimax" && cfg.TTS.GroupID == "" {
		return errors.New("tts.group_id must be set when provider=minimax")
	}
	if cfg.TTS.RequestsPerMinute < 0 {
		return errors.New("tts.requests_per_minute must be >= 0")
	}
	if cfg.Pipeline.MaxAttempts <= 0 {
		return errors.New("pipeline.max_attempts must be >= 1")
	}
	if cfg.Pipeline.RetryMinWaitMS <= 0 || cfg.Pipeline.RetryMaxWaitMS < cfg.Pipeline.RetryMinWaitMS {
		return errors.New("pipeline retry waits must satisfy 0 < min <= max")
	}
	if cfg.Pipeline.SegmentBudgetMS < 0 {
		return errors.New("pipeline.segment_budget_ms must be >= 0")
	}
	if cfg.Pipeline.AudioURLBase == "" {
		return errors.New("pipeline.audio_url_base must not be empty")
	}
	if cfg.Cache.MaxAgeSeconds <= 0 {
		return errors.New("cache.max_age_seconds must be positive")
	}
	if cfg.Cache.CleanupIntervalSeconds <= 0 {
		return errors.New("cache.cleanup_interval_seconds must be positive")
	}
	return nil
}
