package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	BackendAddr   string
	MetricsAddr   string
	MySQLDSN      string
	CacheBackend  string // bolt|redis
	BoltPath      string
	RedisAddr     string
	RedisDB       int
	RedisPass     string
	SheetsURL     string
	RemoteTimeout time.Duration
	RemoteRPS     int
	AdminEmail    string
	AdminPassword string
	SessionSecret string
	BcryptCost    int
	AMQPURL       string
	Workers       int
}

func Load() Config {
	// .env is optional; real environment wins
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:        env("APP_ENV", "prod"),
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		BackendAddr:   env("BACKEND_ADDR", ":8081"),
		MetricsAddr:   env("METRICS_ADDR", ""),
		MySQLDSN:      env("MYSQL_DSN", "root:root@tcp(localhost:3306)/villas?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		CacheBackend:  env("CACHE_BACKEND", "bolt"),
		BoltPath:      env("BOLT_PATH", "villas.db"),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		RedisPass:     env("REDIS_PASSWORD", ""),
		RedisDB:       atoi("REDIS_DB", 0),
		SheetsURL:     env("SHEETS_URL", ""),
		RemoteTimeout: time.Duration(atoi("REMOTE_TIMEOUT_MS", 5000)) * time.Millisecond,
		RemoteRPS:     atoi("REMOTE_RPS", 5),
		AdminEmail:    env("ADMIN_EMAIL", "admin@luxuryvillas.local"),
		AdminPassword: env("ADMIN_PASSWORD", ""),
		SessionSecret: env("SESSION_SECRET", ""),
		BcryptCost:    atoi("BCRYPT_COST", 10),
		AMQPURL:       env("AMQP_URL", ""),
		Workers:       atoi("WARM_WORKERS", 3),
	}
	if c.SheetsURL == "" {
		log.Warn().Msg("SHEETS_URL is empty; serving from cache and defaults only")
	}
	if c.AdminPassword == "" {
		log.Warn().Msg("ADMIN_PASSWORD is empty; admin account will not be seeded")
	}
	if c.SessionSecret == "" {
		log.Warn().Msg("SESSION_SECRET is empty; using an insecure development secret")
		c.SessionSecret = "dev-insecure-secret"
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
