package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultWorkflowEndpoint = "https://api.dify.ai/mcp/server/u4cbxV8X77O1fKSZ/mcp"

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	LogLevel           string
	Port               string
	WorkflowEndpoint   string
	WorkflowAPIKey     string
	WorkflowTimeout    time.Duration
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
	MaxRequestBytes    int64
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		LogLevel:           strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		Port:               getEnv("PORT", "8080"),
		WorkflowEndpoint:   getEnv("WORKFLOW_ENDPOINT", defaultWorkflowEndpoint),
		WorkflowAPIKey:     strings.TrimSpace(os.Getenv("DIFY_API_KEY")),
		WorkflowTimeout:    time.Second * time.Duration(getEnvInt("WORKFLOW_TIMEOUT_SECONDS", 55)),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		MaxRequestBytes:    int64(getEnvInt("MAX_REQUEST_BYTES", 64<<10)),
	}

	u, err := url.Parse(cfg.WorkflowEndpoint)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("WORKFLOW_ENDPOINT must be an absolute http(s) URL, got %q", cfg.WorkflowEndpoint)
	}

	if cfg.HTTPWriteTimeout <= cfg.WorkflowTimeout {
		return nil, fmt.Errorf("HTTP_WRITE_TIMEOUT_SECONDS (%s) must exceed WORKFLOW_TIMEOUT_SECONDS (%s)", cfg.HTTPWriteTimeout, cfg.WorkflowTimeout)
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
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
