package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("PROMPT_PROVIDER", "")
	t.Setenv("MAX_UPLOAD_SIZE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "8000")
	}
	if cfg.PromptProvider != "static" {
		t.Fatalf("PromptProvider mismatch: got %q want %q", cfg.PromptProvider, "static")
	}
	if cfg.MaxUploadSize != 20*1000*1000 {
		t.Fatalf("MaxUploadSize mismatch: got %d", cfg.MaxUploadSize)
	}
	if cfg.PromptRetryDelay != 5*time.Second {
		t.Fatalf("PromptRetryDelay mismatch: got %s", cfg.PromptRetryDelay)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("CORSAllowedOrigins mismatch: %#v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigParsesUploadSize(t *testing.T) {
	t.Setenv("MAX_UPLOAD_SIZE", "512KiB")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.MaxUploadSize != 512*1024 {
		t.Fatalf("MaxUploadSize mismatch: got %d want %d", cfg.MaxUploadSize, 512*1024)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad upload size", env: map[string]string{"MAX_UPLOAD_SIZE": "lots"}},
		{name: "unknown provider", env: map[string]string{"PROMPT_PROVIDER": "gemini"}},
		{name: "openai without key", env: map[string]string{"PROMPT_PROVIDER": "openai", "OPENAI_API_KEY": ""}},
		{name: "zero retries", env: map[string]string{"PROMPT_RETRIES": "0"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadConfigSplitsOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a.test, ,http://b.test ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	want := []string{"http://a.test", "http://b.test"}
	if len(cfg.CORSAllowedOrigins) != len(want) {
		t.Fatalf("CORSAllowedOrigins mismatch: got %#v want %#v", cfg.CORSAllowedOrigins, want)
	}
	for i := range want {
		if cfg.CORSAllowedOrigins[i] != want[i] {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], want[i])
		}
	}
}
