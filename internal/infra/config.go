package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	units "github.com/labstack/gommon/bytes"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	ComfyUIURL  string
	DatabaseURL string
	SQLitePath  string
	StoragePath string
	AssetsDir   string
	GeoIPDBPath string

	TemplatesPath string

	PromptProvider   string
	PromptRetries    int
	PromptRetryDelay time.Duration
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string

	RedisURL              string
	TrendsCacheTTL        time.Duration
	TrendsRefreshSchedule string
	NewsBaseURL           string

	MaxUploadSize      int64
	CORSAllowedOrigins []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	ComfyUITimeout   time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		Port:                  getEnv("PORT", "8000"),
		ComfyUIURL:            getEnv("COMFYUI_URL", "http://127.0.0.1:8188"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		SQLitePath:            os.Getenv("SQLITE_PATH"),
		StoragePath:           getEnv("STORAGE_PATH", "./data/generated"),
		AssetsDir:             getEnv("ASSETS_DIR", "./assets"),
		GeoIPDBPath:           os.Getenv("GEOIP_DB_PATH"),
		TemplatesPath:         os.Getenv("TEMPLATES_PATH"),
		PromptProvider:        strings.ToLower(getEnv("PROMPT_PROVIDER", "static")),
		PromptRetries:         getEnvInt("PROMPT_RETRIES", 3),
		PromptRetryDelay:      time.Second * time.Duration(getEnvInt("PROMPT_RETRY_DELAY_SECONDS", 5)),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		RedisURL:              os.Getenv("REDIS_URL"),
		TrendsCacheTTL:        time.Second * time.Duration(getEnvInt("TRENDS_CACHE_TTL_SECONDS", 900)),
		TrendsRefreshSchedule: getEnv("TRENDS_REFRESH_SCHEDULE", "@every 30m"),
		NewsBaseURL:           getEnv("NEWS_BASE_URL", "https://news.google.com"),
		CORSAllowedOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		HTTPReadTimeout:       time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:      time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:       time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		ComfyUITimeout:        time.Second * time.Duration(getEnvInt("COMFYUI_TIMEOUT_SECONDS", 240)),
		RateLimitPerMin:       getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	size, err := units.Parse(getEnv("MAX_UPLOAD_SIZE", "20MB"))
	if err != nil {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE: %w", err)
	}
	if size <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	cfg.MaxUploadSize = size

	switch cfg.PromptProvider {
	case "static":
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when PROMPT_PROVIDER=openai")
		}
	default:
		return nil, fmt.Errorf("unknown PROMPT_PROVIDER %q", cfg.PromptProvider)
	}

	if cfg.PromptRetries < 1 {
		return nil, fmt.Errorf("PROMPT_RETRIES must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
