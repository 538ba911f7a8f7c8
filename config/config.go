package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL        string
	WSBaseURL         string
	Port              string
	GinMode           string
	StorageDriver     string
	StorageDSN        string
	RedisAddr         string
	RedisPassword     string
	BranchID          string
	PollInterval      time.Duration
	RefreshBackoff    time.Duration
	RefreshMaxRetries int
	CoalesceRefresh   bool
	ReservationWindow time.Duration
	PageSize          int
	LogLevel          string
	CORSOrigin        string
	LoginBurst        int
	LoginEvery        time.Duration
	RequestsPerMinute int
}

// LoadEnv reads .env if present. A missing file is not an error.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func Load() Config {
	apiBase := strings.TrimRight(getenv("API_BASE_URL", "http://127.0.0.1:8080/api"), "/")
	return Config{
		APIBaseURL:        apiBase,
		WSBaseURL:         strings.TrimRight(getenv("WS_BASE_URL", websocketBase(apiBase)), "/"),
		Port:              getenv("CONSOLE_PORT", "8090"),
		GinMode:           getenv("GIN_MODE", "debug"),
		StorageDriver:     strings.ToLower(getenv("STORAGE_DRIVER", "sqlite")),
		StorageDSN:        getenv("STORAGE_DSN", "floor-console.db"),
		RedisAddr:         getenv("REDIS_ADDR", ""),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		BranchID:          getenv("BRANCH_ID", ""),
		PollInterval:      getenvDuration("POLL_INTERVAL", 30*time.Second),
		RefreshBackoff:    getenvDuration("REFRESH_BACKOFF", 2*time.Second),
		RefreshMaxRetries: getenvInt("REFRESH_MAX_RETRIES", 3),
		CoalesceRefresh:   getenvBool("COALESCE_REFRESH", false),
		ReservationWindow: getenvDuration("RESERVATION_WINDOW", 2*time.Hour),
		PageSize:          getenvInt("PAGE_SIZE", 50),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		CORSOrigin:        getenv("CORS_ORIGIN", "http://127.0.0.1:5500"),
		LoginBurst:        getenvInt("LOGIN_BURST", 5),
		LoginEvery:        getenvDuration("LOGIN_EVERY", time.Minute),
		RequestsPerMinute: getenvInt("REQUESTS_PER_MINUTE", 600),
	}
}

// websocketBase derives the stream origin from the REST base URL.
func websocketBase(apiBase string) string {
	switch {
	case strings.HasPrefix(apiBase, "https://"):
		return "wss://" + strings.TrimPrefix(apiBase, "https://")
	case strings.HasPrefix(apiBase, "http://"):
		return "ws://" + strings.TrimPrefix(apiBase, "http://")
	}
	return apiBase
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
