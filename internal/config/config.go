package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centralizes the configuration loaded from the environment.
type Config struct {
	Port             int
	DBDSN            string
	RedisURL         string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration
	JWTSecret        string
	AllowOrigins     []string
	AppURL           string
	APIURL           string
	AuthFlow         string
	RateLimitPublic  RateLimitConfig
	RateLimitAuth    RateLimitConfig
	RateLimitAccount RateLimitConfig
	Idle             IdleConfig
	Storage          StorageConfig
	MailWebhookURL   string
	NATSURL          string
	BusyTTL          time.Duration
}

// RateLimitConfig holds simple throttling limits.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// IdleConfig controls forced expiry of inactive sessions.
type IdleConfig struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

// StorageConfig selects the object storage backend.
type StorageConfig struct {
	Provider    string
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("invalid PORT")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN is required")
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 characters")
	}

	accessTTL, err := parseDurationEnv("JWT_ACCESS_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.JWTAccessTTL = accessTTL

	refreshTTL, err := parseDurationEnv("JWT_REFRESH_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.JWTRefreshTTL = refreshTTL

	for _, origin := range strings.Split(getEnv("ALLOW_ORIGINS", ""), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	cfg.AppURL = strings.TrimRight(strings.TrimSpace(getEnv("APP_URL", "http://localhost:5173/")), "/") + "/"

	cfg.APIURL = strings.TrimRight(strings.TrimSpace(getEnv("API_URL", "http://localhost:"+portStr)), "/")

	cfg.AuthFlow = strings.ToLower(strings.TrimSpace(getEnv("AUTH_FLOW", "implicit")))
	if cfg.AuthFlow != "implicit" && cfg.AuthFlow != "pkce" {
		return nil, errors.New("AUTH_FLOW must be implicit or pkce")
	}

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 5, Burst: 10}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 10, Burst: 40}
	cfg.RateLimitAccount = RateLimitConfig{RequestsPerSecond: 5.0 / 60, Burst: 5}

	idleTimeout, err := parseDurationEnv("IDLE_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	idlePoll, err := parseDurationEnv("IDLE_POLL_INTERVAL", 20*time.Second)
	if err != nil {
		return nil, err
	}
	if idlePoll <= 0 || idleTimeout <= 0 {
		return nil, errors.New("IDLE_TIMEOUT and IDLE_POLL_INTERVAL must be positive")
	}
	cfg.Idle = IdleConfig{Timeout: idleTimeout, PollInterval: idlePoll}

	cfg.Storage = StorageConfig{
		Provider:    strings.ToLower(strings.TrimSpace(getEnv("STORAGE_PROVIDER", "noop"))),
		S3Endpoint:  strings.TrimSpace(getEnv("S3_ENDPOINT", "")),
		S3Region:    strings.TrimSpace(getEnv("S3_REGION", "")),
		S3Bucket:    strings.TrimSpace(getEnv("S3_BUCKET", "")),
		S3AccessKey: strings.TrimSpace(getEnv("S3_ACCESS_KEY", "")),
		S3SecretKey: strings.TrimSpace(getEnv("S3_SECRET_KEY", "")),
		S3PublicURL: strings.TrimSpace(getEnv("S3_PUBLIC_URL", "")),
	}

	cfg.MailWebhookURL = strings.TrimSpace(getEnv("MAIL_WEBHOOK_URL", ""))
	cfg.NATSURL = strings.TrimSpace(getEnv("NATS_URL", ""))

	busyTTL, err := parseDurationEnv("BUSY_TTL", 2*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.BusyTTL = busyTTL

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return dur, nil
}
