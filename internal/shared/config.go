package shared

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	Storage      string // mysql|memory
	MySQLDSN     string
	Migrate      bool
	UserDBDriver string // mysql|postgres|sqlite
	UserDBDSN    string

	RedisAddr     string
	RedisDB       int
	RedisPass     string
	OverrideStore string // memory|redis
	CacheTTL      time.Duration

	JWTSecret      string
	RoleMatrixFile string
	RateLimitRPS   float64
	RateLimitBurst int
	TrustProxy     bool

	FeedBase       string
	FeedKey        string
	FeedRPS        int
	Workers        int
	ReviewCount    int
	IngestEntities []string
}

// Load reads the environment, after an optional .env file in the working directory.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg(".env not loaded")
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),

		Storage:      strings.ToLower(env("STORAGE", "mysql")),
		MySQLDSN:     env("MYSQL_DSN", "root:root@tcp(localhost:3306)/reviewhub?parseTime=true&charset=utf8mb4&loc=UTC"),
		Migrate:      boolean("MIGRATE", false),
		UserDBDriver: strings.ToLower(env("USER_DB_DRIVER", "sqlite")),
		UserDBDSN:    env("USER_DB_DSN", "file:reviewhub_users.db?cache=shared"),

		RedisAddr:     env("REDIS_ADDR", ""),
		RedisPass:     env("REDIS_PASSWORD", ""),
		RedisDB:       atoi("REDIS_DB", 0),
		OverrideStore: strings.ToLower(env("OVERRIDE_STORE", "memory")),
		CacheTTL:      time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,

		JWTSecret:      env("JWT_SECRET", ""),
		RoleMatrixFile: env("ROLE_MATRIX_FILE", "default"),
		RateLimitRPS:   atof("RATE_LIMIT_RPS", 0),
		RateLimitBurst: atoi("RATE_LIMIT_BURST", 0),
		TrustProxy:     boolean("TRUST_PROXY", false),

		FeedBase:       env("FEED_BASE_URL", ""),
		FeedKey:        env("FEED_API_KEY", ""),
		FeedRPS:        atoi("FEED_RPS", 5),
		Workers:        atoi("INGEST_WORKERS", 8),
		ReviewCount:    atoi("INGEST_REVIEW_COUNT", 100),
		IngestEntities: list("INGEST_ENTITIES"),
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer setting")
	}
	return def
}

func atof(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-numeric setting")
	}
	return def
}

func boolean(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// list splits a comma-separated setting, dropping blanks.
func list(k string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(k), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
