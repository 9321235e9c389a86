package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment
// variables. All external-capability settings live here and are passed down
// explicitly; no package keeps global client state.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string

	TikTokAPIKey  string
	TikTokBaseURL string

	StorageBackend string
	StoragePath    string
	S3Bucket       string
	S3Region       string

	GeoIPDBPath string

	WorkerCount   int
	TaskQueueSize int
	RetentionDays int

	PageFetchTimeout time.Duration
	PageSettleDelay  time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string
}

// LoadConfig reads configuration from the environment, consulting .env files
// when present, and applies defaults where sensible.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		TikTokAPIKey:  os.Getenv("TIKTOK_API_KEY"),
		TikTokBaseURL: getEnv("TIKTOK_BASE_URL", "https://tiktok-video-no-watermark2.p.rapidapi.com"),

		StorageBackend: getEnv("STORAGE_BACKEND", "fs"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       os.Getenv("S3_REGION"),

		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		WorkerCount:   getEnvInt("WORKER_COUNT", 4),
		TaskQueueSize: getEnvInt("TASK_QUEUE_SIZE", 64),
		RetentionDays: getEnvInt("TASK_RETENTION_DAYS", 30),

		PageFetchTimeout: time.Second * time.Duration(getEnvInt("PAGE_FETCH_TIMEOUT_SECONDS", 60)),
		PageSettleDelay:  time.Second * time.Duration(getEnvInt("PAGE_SETTLE_DELAY_SECONDS", 2)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.StorageBackend == "s3" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
