package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Pipeline.MaxAttempts != 5 {
		t.Fatalf("expected default max attempts, got %d", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Pipeline.RetryMinWaitMS != 2000 || cfg.Pipeline.RetryMaxWaitMS != 10000 {
		t.Fatalf("expected default retry waits, got %d/%d", cfg.Pipeline.RetryMinWaitMS, cfg.Pipeline.RetryMaxWaitMS)
	}
	if cfg.Cache.MaxAgeSeconds != 3600 {
		t.Fatalf("expected default cache max age, got %d", cfg.Cache.MaxAgeSeconds)
	}
	if cfg.TTS.Provider != "mock" || cfg.LLM.Provider != "mock" {
		t.Fatalf("expected mock providers by default, got %s/%s", cfg.TTS.Provider, cfg.LLM.Provider)
	}
	if cfg.Bus.Enabled {
		t.Fatal("bus must be disabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
service_name: mindwave-test
tts:
  provider: minimax
  group_id: g-123
  api_key: k
pipeline:
  max_attempts: 3
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServiceName != "mindwave-test" {
		t.Fatalf("service name = %q", cfg.ServiceName)
	}
	if cfg.TTS.Provider != "minimax" || cfg.TTS.GroupID != "g-123" {
		t.Fatalf("tts = %+v", cfg.TTS)
	}
	if cfg.Pipeline.MaxAttempts != 3 {
		t.Fatalf("max attempts = %d", cfg.Pipeline.MaxAttempts)
	}
	// Untouched sections keep their defaults.
	if cfg.Pipeline.AudioURLBase != "/v1/meditation/audio" {
		t.Fatalf("audio url base = %q", cfg.Pipeline.AudioURLBase)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MINDWAVE_TTS_PROVIDER", "openai")
	t.Setenv("MINDWAVE_TTS_API_KEY", "sk-test")
	t.Setenv("MINDWAVE_TTS_VOICE", "nova")
	t.Setenv("MINDWAVE_TTS_REQUESTS_PER_MINUTE", "30")
	t.Setenv("MINDWAVE_LLM_PROVIDER", "ollama")
	t.Setenv("MINDWAVE_LLM_MODEL", "llama3.2:latest")
	t.Setenv("MINDWAVE_PIPELINE_SEGMENT_BUDGET_MS", "30000")
	t.Setenv("MINDWAVE_CACHE_MAX_AGE_SECONDS", "120")
	t.Setenv("MINDWAVE_BUS_SERVERS", "nats://one:4222, nats://two:4222")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TTS.Provider != "openai" || cfg.TTS.APIKey != "sk-test" || cfg.TTS.Voice != "nova" {
		t.Fatalf("tts override = %+v", cfg.TTS)
	}
	if cfg.TTS.RequestsPerMinute != 30 {
		t.Fatalf("requests per minute = %d", cfg.TTS.RequestsPerMinute)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "llama3.2:latest" {
		t.Fatalf("llm override = %+v", cfg.LLM)
	}
	if cfg.Pipeline.SegmentBudgetMS != 30000 {
		t.Fatalf("segment budget = %d", cfg.Pipeline.SegmentBudgetMS)
	}
	if cfg.Cache.MaxAgeSeconds != 120 {
		t.Fatalf("cache max age = %d", cfg.Cache.MaxAgeSeconds)
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
}

func TestValidateRejectsBadProvider(t *testing.T) {
	t.Setenv("MINDWAVE_TTS_PROVIDER", "espeak")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for unknown tts provider")
	}
}

func TestValidateRequiresMiniMaxGroup(t *testing.T) {
	t.Setenv("MINDWAVE_TTS_PROVIDER", "minimax")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error when group_id is missing")
	}
}
