package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.FreeGenerationLimit != 5 {
		t.Errorf("FreeGenerationLimit = %d, want 5", cfg.FreeGenerationLimit)
	}
	if cfg.JobPollInterval != 2*time.Second {
		t.Errorf("JobPollInterval = %v, want 2s", cfg.JobPollInterval)
	}
	if cfg.JobMaxRetries != 3 {
		t.Errorf("JobMaxRetries = %d, want 3", cfg.JobMaxRetries)
	}
	if cfg.ProviderTimeout != 180*time.Second {
		t.Errorf("ProviderTimeout = %v, want 180s", cfg.ProviderTimeout)
	}
	if cfg.SignedURLTTL != 600*time.Second {
		t.Errorf("SignedURLTTL = %v, want 600s", cfg.SignedURLTTL)
	}
	if cfg.StorageBackend != "filesystem" {
		t.Errorf("StorageBackend = %q, want filesystem", cfg.StorageBackend)
	}
	if cfg.ReplicateBaseURL != "https://api.replicate.com" {
		t.Errorf("ReplicateBaseURL = %q", cfg.ReplicateBaseURL)
	}
}

func TestLoadConfigRequiredVars(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() expected error without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() expected error without JWT_SECRET")
	}
}

func TestLoadConfigS3RequiresBucket(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_BACKEND", "s3")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() expected error without S3_BUCKET")
	}

	t.Setenv("S3_BUCKET", "artifacts")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.S3Bucket != "artifacts" {
		t.Errorf("S3Bucket = %q", cfg.S3Bucket)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("FREE_GENERATION_LIMIT", "10")
	t.Setenv("JOB_POLL_INTERVAL_SECONDS", "7")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.FreeGenerationLimit != 10 {
		t.Errorf("FreeGenerationLimit = %d, want 10", cfg.FreeGenerationLimit)
	}
	if cfg.JobPollInterval != 7*time.Second {
		t.Errorf("JobPollInterval = %v, want 7s", cfg.JobPollInterval)
	}
}
