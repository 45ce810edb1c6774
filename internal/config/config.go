package config

import (
	"fmt"
	"log"
	"os"
	"time"
)

// App holds the runtime configuration loaded from environment variables.
// It is resolved once at startup; nothing reads the environment later.
type App struct {
	Env      string
	HTTPPort string

	// WeChat cloud credentials; all three present selects the cloud
	// provider, otherwise the mock dataset serves.
	WxAppID    string
	WxSecret   string
	WxCloudEnv string

	SessionSecret  string
	SessionTTL     time.Duration
	SessionBackend string // memory | redis
	RedisAddr      string

	QueueBackend string // memory | redis
	CacheTTL     time.Duration

	// FailSoft keeps registration reads succeeding with placeholder
	// data when the provider is down; false surfaces the error.
	FailSoft bool

	LoginRatePerMin int
}

// Load returns application config populated from environment variables with sensible defaults.
func Load() App {
	return App{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "3000"),
		WxAppID:         getEnv("WX_APPID", ""),
		WxSecret:        getEnv("WX_SECRET", ""),
		WxCloudEnv:      getEnv("WX_CLOUD_ENV", ""),
		SessionSecret:   getEnv("SESSION_SECRET", "admin_dashboard_secret_change"),
		SessionTTL:      durationEnv("SESSION_TTL", 24*time.Hour),
		SessionBackend:  getEnv("SESSION_BACKEND", "memory"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		QueueBackend:    getEnv("QUEUE_BACKEND", "memory"),
		CacheTTL:        durationEnv("CACHE_TTL", 5*time.Minute),
		FailSoft:        boolEnv("FAIL_SOFT", true),
		LoginRatePerMin: intEnv("LOGIN_RATE_PER_MIN", 30),
	}
}

// UseCloud reports whether the cloud provider should be constructed.
func (a App) UseCloud() bool {
	return a.WxAppID != "" && a.WxSecret != "" && a.WxCloudEnv != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
