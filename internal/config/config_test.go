package config

import (
	"testing"
	"time"
)

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("GENERATION_BACKEND", "openai")
	t.Setenv("GENERATION_MODEL", "gpt-4o-mini")
	t.Setenv("GENERATION_TIMEOUT", "soon")
	t.Setenv("RATE_LIMIT_RPS", "fast")
	t.Setenv("RATE_LIMIT_BURST", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Generation.Timeout != 90*time.Second {
		t.Errorf("Expected 90s timeout, got %v", cfg.Generation.Timeout)
	}
	if cfg.RateLimit.RequestsPerSecond != 0.2 {
		t.Errorf("Expected 0.2 rps, got %v", cfg.RateLimit.RequestsPerSecond)
	}
	if cfg.RateLimit.Burst != 5 {
		t.Errorf("Expected burst 5, got %d", cfg.RateLimit.Burst)
	}
}

func TestLoadGRPCBackend(t *testing.T) {
	t.Setenv("GENERATION_BACKEND", "GRPC")
	t.Setenv("GENERATION_GRPC_ADDR", "sidecar:50051")
	t.Setenv("GENERATION_TIMEOUT", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Generation.Backend != BackendGRPC {
		t.Errorf("Expected grpc backend, got %q", cfg.Generation.Backend)
	}
	if cfg.Generation.Timeout != 2*time.Minute {
		t.Errorf("Expected 2m timeout, got %v", cfg.Generation.Timeout)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:       "8080",
			DBPath:     "db",
			Generation: GenerationConfig{Backend: BackendOpenAI, Model: "m", Timeout: time.Second},
			RateLimit:  RateLimitConfig{RequestsPerSecond: 1, Burst: 1},
			ChatLog:    ChatLogConfig{Enabled: true, Dir: "logs", QueueSize: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"empty port", func(c *Config) { c.Port = "" }, true},
		{"empty db", func(c *Config) { c.DBPath = "" }, true},
		{"unknown backend", func(c *Config) { c.Generation.Backend = "carrier-pigeon" }, true},
		{"openai without model", func(c *Config) { c.Generation.Model = "" }, true},
		{"grpc without addr", func(c *Config) { c.Generation.Backend = BackendGRPC }, true},
		{"zero timeout", func(c *Config) { c.Generation.Timeout = 0 }, true},
		{"zero rps", func(c *Config) { c.RateLimit.RequestsPerSecond = 0 }, true},
		{"zero burst", func(c *Config) { c.RateLimit.Burst = 0 }, true},
		{"chat log without dir", func(c *Config) { c.ChatLog.Dir = "" }, true},
		{"disabled chat log", func(c *Config) { c.ChatLog = ChatLogConfig{} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfluenceEnabled(t *testing.T) {
	c := ConfluenceConfig{BaseURL: "https://wiki", SpaceKey: "BA", Email: "a@b.c"}
	if c.Enabled() {
		t.Error("Expected disabled without API token")
	}
	c.APIToken = "token"
	if !c.Enabled() {
		t.Error("Expected enabled with all settings")
	}
}

func TestIsDevelopment(t *testing.T) {
	tests := map[string]bool{
		"":                        true,
		"http://localhost:3000":   true,
		"http://127.0.0.1:8080":   true,
		"https://analyst.example": false,
	}
	for url, want := range tests {
		cfg := &Config{FrontendURL: url}
		if got := cfg.IsDevelopment(); got != want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", url, got, want)
		}
	}
}
