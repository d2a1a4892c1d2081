package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	Port  int
	DBURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTLPEndpoint string
	ServiceName  string

	JWTAccessSecret     string
	JWTRefreshSecret    string
	JWTAccessTTLMinutes int
	JWTRefreshTTLDays   int

	CORSOrigins     []string
	MaxBodyBytes    int64
	AuthRateLimit   int
	AuthRateWindow  time.Duration
	FallbackEnabled bool

	RunMigrations bool
	SeedDemo      bool

	AdminEmail    string
	AdminPassword string

	WorkerID           string
	WorkerPollInterval time.Duration
	WorkerConcurrency  int
	WorkerLockTTL      time.Duration
	WorkerHealthPort   int
	WorkerSweepSpec    string

	NotifierDelay time.Duration
	NotifierFail  bool

	// Provider credentials are carried for the integrations that live
	// outside this service; nothing in-process reads them yet.
	Providers ProviderKeys
}

type ProviderKeys struct {
	MeilisearchHost   string
	MeilisearchAPIKey string
	S3Bucket          string
	S3Region          string
	S3AccessKey       string
	S3SecretKey       string
	StripeSecretKey   string
	StripeWebhook     string
	PayPalClientID    string
	PayPalSecret      string
	KYCProvider       string
	KYCAPIKey         string
}

const minSecretLen = 32

// Load reads .env.local and .env when present, then the process environment.
// Values already in the environment win over file values.
func Load() Config {
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("config.env_file", "file", f, "err", err)
		}
	}

	env := getEnv("APP_ENV", "dev")

	host, _ := os.Hostname()

	return Config{
		Env:   env,
		Port:  getEnvInt("PORT", 8080),
		DBURL: getEnv("DATABASE_URL", buildDBURL()),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "urwriter-api"),

		JWTAccessSecret:     getEnv("JWT_ACCESS_SECRET", ""),
		JWTRefreshSecret:    getEnv("JWT_REFRESH_SECRET", ""),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 15),
		JWTRefreshTTLDays:   getEnvInt("JWT_REFRESH_TTL_DAYS", 7),

		CORSOrigins:     getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		MaxBodyBytes:    int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		AuthRateLimit:   getEnvInt("AUTH_RATE_LIMIT", 20),
		AuthRateWindow:  getEnvDuration("AUTH_RATE_WINDOW", time.Minute),
		FallbackEnabled: getEnvBool("JOBS_FALLBACK_ENABLED", env != "prod"),

		RunMigrations: getEnvBool("DB_MIGRATE", true),
		SeedDemo:      getEnvBool("SEED_DEMO", false),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		WorkerID:           getEnv("WORKER_ID", host+"-"+strconv.Itoa(os.Getpid())),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 500*time.Millisecond),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 4),
		WorkerLockTTL:      getEnvDuration("WORKER_LOCK_TTL", 2*time.Minute),
		WorkerHealthPort:   getEnvInt("WORKER_HEALTH_PORT", 8081),
		WorkerSweepSpec:    getEnv("WORKER_SWEEP_SPEC", "@every 30s"),

		NotifierDelay: time.Duration(getEnvInt("NOTIFIER_SLEEP_MS", 0)) * time.Millisecond,
		NotifierFail:  getEnvBool("NOTIFIER_FAIL", false),

		Providers: ProviderKeys{
			MeilisearchHost:   getEnv("MEILISEARCH_HOST", ""),
			MeilisearchAPIKey: getEnv("MEILISEARCH_API_KEY", ""),
			S3Bucket:          getEnv("S3_BUCKET", ""),
			S3Region:          getEnv("S3_REGION", ""),
			S3AccessKey:       getEnv("S3_ACCESS_KEY", ""),
			S3SecretKey:       getEnv("S3_SECRET_KEY", ""),
			StripeSecretKey:   getEnv("STRIPE_SECRET_KEY", ""),
			StripeWebhook:     getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PayPalClientID:    getEnv("PAYPAL_CLIENT_ID", ""),
			PayPalSecret:      getEnv("PAYPAL_CLIENT_SECRET", ""),
			KYCProvider:       getEnv("KYC_PROVIDER", ""),
			KYCAPIKey:         getEnv("KYC_API_KEY", ""),
		},
	}
}

// Validate rejects configurations the API cannot safely run with.
func (c Config) Validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("config: PORT must be positive, got %d", c.Port)
	}

	if c.JWTAccessTTLMinutes <= 0 || c.JWTRefreshTTLDays <= 0 {
		return errors.New("config: token TTLs must be positive")
	}

	if c.Env == "dev" || c.Env == "test" {
		return nil
	}

	if len(c.JWTAccessSecret) < minSecretLen {
		return fmt.Errorf("config: JWT_ACCESS_SECRET must be at least %d characters", minSecretLen)
	}
	if len(c.JWTRefreshSecret) < minSecretLen {
		return fmt.Errorf("config: JWT_REFRESH_SECRET must be at least %d characters", minSecretLen)
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("config: access and refresh secrets must differ")
	}

	return nil
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshTTLDays) * 24 * time.Hour
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "urwriter")
	pass := getEnv("DB_PASSWORD", "urwriter")
	name := getEnv("DB_NAME", "urwriter")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("config.invalid_int", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("config.invalid_bool", "key", key, "value", v)
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("config.invalid_duration", "key", key, "value", v)
			return fallback
		}
		return d
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
