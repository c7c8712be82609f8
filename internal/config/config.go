package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string // FIZZY_DATABASE_URL (required)
	HTTPAddr    string // FIZZY_HTTP_ADDR (default ":8080")
	NATSURL     string // FIZZY_NATS_URL (optional, empty = no bus mirroring)
	AuthToken   string // FIZZY_AUTH_TOKEN (optional, empty = auth disabled)

	// Worker pool settings
	Workers      int           // FIZZY_WORKERS (default 4)
	PollInterval time.Duration // FIZZY_POLL_INTERVAL (default 1s)
	JobTimeout   time.Duration // FIZZY_JOB_TIMEOUT (default 30s)
	MaxAttempts  int           // FIZZY_MAX_ATTEMPTS (default 8)

	// Webhook delivery settings
	WebhookTimeout time.Duration // FIZZY_WEBHOOK_TIMEOUT (default 10s)

	// Entropy sweep settings
	EntropyInterval  time.Duration // FIZZY_ENTROPY_INTERVAL (default 1h; 0 = disabled)
	EntropyIdleAfter time.Duration // FIZZY_ENTROPY_IDLE_AFTER (default 336h = 14 days)
	EntropyPostpone  time.Duration // FIZZY_ENTROPY_POSTPONE (default 168h = 7 days)

	// Export settings
	ExportInterval   time.Duration // FIZZY_EXPORT_INTERVAL (default 0 = disabled)
	ExportS3Bucket   string        // FIZZY_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // FIZZY_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // FIZZY_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string        // FIZZY_EXPORT_S3_KEY (default "fizzy/events.jsonl")
	ExportDir        string        // FIZZY_EXPORT_DIR (enables local file export when set)
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:      os.Getenv("FIZZY_DATABASE_URL"),
		HTTPAddr:         envOrDefault("FIZZY_HTTP_ADDR", ":8080"),
		NATSURL:          os.Getenv("FIZZY_NATS_URL"),
		AuthToken:        os.Getenv("FIZZY_AUTH_TOKEN"),
		ExportS3Bucket:   os.Getenv("FIZZY_EXPORT_S3_BUCKET"),
		ExportS3Endpoint: os.Getenv("FIZZY_EXPORT_S3_ENDPOINT"),
		ExportS3Region:   envOrDefault("FIZZY_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Key:      envOrDefault("FIZZY_EXPORT_S3_KEY", "fizzy/events.jsonl"),
		ExportDir:        os.Getenv("FIZZY_EXPORT_DIR"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("FIZZY_DATABASE_URL is required")
	}

	var err error
	if c.Workers, err = envInt("FIZZY_WORKERS", 4); err != nil {
		return nil, err
	}
	if c.Workers < 1 {
		return nil, fmt.Errorf("FIZZY_WORKERS must be at least 1")
	}
	if c.MaxAttempts, err = envInt("FIZZY_MAX_ATTEMPTS", 8); err != nil {
		return nil, err
	}
	if c.MaxAttempts < 1 {
		return nil, fmt.Errorf("FIZZY_MAX_ATTEMPTS must be at least 1")
	}

	if c.PollInterval, err = envDuration("FIZZY_POLL_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if c.JobTimeout, err = envDuration("FIZZY_JOB_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if c.WebhookTimeout, err = envDuration("FIZZY_WEBHOOK_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if c.EntropyInterval, err = envDuration("FIZZY_ENTROPY_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if c.EntropyIdleAfter, err = envDuration("FIZZY_ENTROPY_IDLE_AFTER", 14*24*time.Hour); err != nil {
		return nil, err
	}
	if c.EntropyPostpone, err = envDuration("FIZZY_ENTROPY_POSTPONE", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if c.ExportInterval, err = envDuration("FIZZY_EXPORT_INTERVAL", 0); err != nil {
		return nil, err
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
