package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	// Quota
	FreeGenerationLimit int
	DevPasskey          string

	// Worker
	JobPollInterval time.Duration
	JobMaxRetries   int

	// Providers
	ReplicateAPIToken   string
	ReplicateBaseURL    string
	HFAPIToken          string
	HFSpace             string
	HFDefaultModel      string
	ProviderTimeout     time.Duration
	ProviderPollEvery   time.Duration

	// Storage
	StorageBackend  string // "filesystem" or "s3"
	StoragePath     string
	StorageBaseURL  string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	SignedURLTTL    time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		FreeGenerationLimit: getEnvInt("FREE_GENERATION_LIMIT", 5),
		DevPasskey:          getEnv("DEV_PASSKEY", "artmorph-dev-2026"),

		JobPollInterval: time.Second * time.Duration(getEnvInt("JOB_POLL_INTERVAL_SECONDS", 2)),
		JobMaxRetries:   getEnvInt("JOB_MAX_RETRIES", 3),

		ReplicateAPIToken: os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL:  getEnv("REPLICATE_BASE_URL", "https://api.replicate.com"),
		HFAPIToken:        os.Getenv("HF_API_TOKEN"),
		HFSpace:           getEnv("HF_DEFAULT_SPACE", "black-forest-labs/FLUX.1-Kontext-Dev"),
		HFDefaultModel:    getEnv("HF_DEFAULT_MODEL", "black-forest-labs/FLUX.1-Kontext-dev"),
		ProviderTimeout:   time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 180)),
		ProviderPollEvery: time.Second * time.Duration(getEnvInt("PROVIDER_POLL_SECONDS", 2)),

		StorageBackend: getEnv("STORAGE_BACKEND", "filesystem"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		SignedURLTTL:   time.Second * time.Duration(getEnvInt("GENERATED_URL_TTL_SECONDS", 600)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
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

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
