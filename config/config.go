package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	DBDriver string
	DBURL    string

	JWTSecret  string
	JWTIssuer  string
	SessionTTL time.Duration

	LockoutThreshold int
	LockoutDuration  time.Duration

	Argon2Time      uint32
	Argon2MemoryKB  uint32
	Argon2Threads   uint8
	Argon2KeyLength uint32

	AllowedOrigins []string
	CookieSecure   bool
	BuildMarker    string

	RedisURL          string
	LoginRateLimit    int
	LoginRateWindow   time.Duration
	APIRateLimitRPS   float64
	APIRateLimitBurst int

	MaintenanceInterval time.Duration

	ScoreFeedURL      string
	ScoreFeedToken    string
	ScoreFeedInterval time.Duration
	IngestToken       string

	R2AccountID    string
	R2AccessKeyID  string
	R2AccessSecret string
	R2Bucket       string
	CDNBaseURL     string

	TelegramBotToken string
	TelegramChatID   int64
}

func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Port:     getEnvString("PORT", "5200"),
		DBDriver: getEnvString("DB_DRIVER", "postgres"),
		DBURL:    getEnvString("DATABASE_URL", ""),

		JWTSecret:  getEnvString("JWT_SECRET", ""),
		JWTIssuer:  getEnvString("JWT_ISSUER", "prize-hub"),
		SessionTTL: getEnvDuration("SESSION_TTL", 8*time.Hour),

		LockoutThreshold: getEnvInt("LOCKOUT_THRESHOLD", 5),
		LockoutDuration:  getEnvDuration("LOCKOUT_DURATION", 15*time.Minute),

		Argon2Time:      uint32(getEnvInt("ARGON2_TIME", 3)),
		Argon2MemoryKB:  uint32(getEnvInt("ARGON2_MEMORY", 64*1024)),
		Argon2Threads:   uint8(getEnvInt("ARGON2_THREADS", 2)),
		Argon2KeyLength: uint32(getEnvInt("ARGON2_KEY_LENGTH", 32)),

		AllowedOrigins: getEnvStringSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		CookieSecure:   getEnvBool("COOKIE_SECURE", true),
		BuildMarker:    getEnvString("BUILD_MARKER", "202509"),

		RedisURL:          getEnvString("REDIS_URL", ""),
		LoginRateLimit:    getEnvInt("LOGIN_RATE_LIMIT", 20),
		LoginRateWindow:   getEnvDuration("LOGIN_RATE_WINDOW", 10*time.Minute),
		APIRateLimitRPS:   getEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: getEnvInt("API_RATE_LIMIT_BURST", 40),

		MaintenanceInterval: getEnvDuration("MAINTENANCE_INTERVAL", time.Hour),

		ScoreFeedURL:      getEnvString("SCORE_FEED_URL", ""),
		ScoreFeedToken:    getEnvString("SCORE_FEED_TOKEN", ""),
		ScoreFeedInterval: getEnvDuration("SCORE_FEED_INTERVAL", 5*time.Minute),
		IngestToken:       getEnvString("INGEST_SERVICE_TOKEN", ""),

		R2AccountID:    getEnvString("CLOUDFLARE_ACCOUNT_ID", ""),
		R2AccessKeyID:  getEnvString("R2_ACCESS_KEY_ID", ""),
		R2AccessSecret: getEnvString("R2_ACCESS_KEY_SECRET", ""),
		R2Bucket:       getEnvString("R2_BUCKET_NAME", ""),
		CDNBaseURL:     getEnvString("CDN_BASE_URL", ""),

		TelegramBotToken: getEnvString("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   int64(getEnvInt("TELEGRAM_CHAT_ID", 0)),
	}

	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.DBURL == "" {
		return errors.New("DATABASE_URL environment variable not set")
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		return errors.New("DB_DRIVER must be postgres or sqlite")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 bytes")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.LockoutThreshold < 1 {
		return errors.New("LOCKOUT_THRESHOLD must be at least 1")
	}
	return nil
}

// R2Enabled reports whether archive uploads are configured.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2AccessSecret != "" && c.R2Bucket != ""
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
