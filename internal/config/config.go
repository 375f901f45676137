package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string

	ExtractorBaseURL string
	ExtractorAPIKey  string
	ExtractorTimeout time.Duration

	SubscriptionBaseURL string

	// Independent upload ceilings. The public grader accepts larger files
	// because anonymous callers upload once, not continuously.
	PublicMaxUploadBytes int64
	VendorMaxUploadBytes int64

	RateLimitMax    int
	RateLimitWindow time.Duration

	// TrustProxy enables X-Forwarded-For / X-Real-IP resolution. Only set
	// behind a gateway that strips those headers from client traffic;
	// otherwise callers could mint fresh rate-limit identities at will.
	TrustProxy bool

	AuditBuffer int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		_, err := fmt.Sscanf(v, "%d", &out)
		if err == nil {
			return out
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func Load() (Config, error) {
	cfg := Config{
		Env:                  getenv("APP_ENV", "development"),
		ListenAddr:           getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		ExtractorBaseURL:     getenv("EXTRACTOR_BASE_URL", "http://localhost:9090"),
		ExtractorAPIKey:      os.Getenv("EXTRACTOR_API_KEY"),
		ExtractorTimeout:     getenvDuration("EXTRACTOR_TIMEOUT", 60*time.Second),
		SubscriptionBaseURL:  getenv("SUBSCRIPTION_BASE_URL", "http://localhost:9091"),
		PublicMaxUploadBytes: int64(getenvInt("PUBLIC_MAX_UPLOAD_MB", 25)) << 20,
		VendorMaxUploadBytes: int64(getenvInt("VENDOR_MAX_UPLOAD_MB", 10)) << 20,
		RateLimitMax:         getenvInt("RATE_LIMIT_MAX", 5),
		RateLimitWindow:      getenvDuration("RATE_LIMIT_WINDOW", 24*time.Hour),
		TrustProxy:           getenvBool("TRUST_PROXY", false),
		AuditBuffer:          getenvInt("AUDIT_BUFFER", 256),
	}
	if cfg.DatabaseURL == "" {
		// Not fatal for early local runs; warn via error value so callers can decide.
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}
