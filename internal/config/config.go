package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sponnect/sponnect/internal/domain/notification"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL   string
	DBMaxConns    int32
	ServerAddr    string
	LogLevel      zerolog.Level
	MigrationsDir string

	JWTSecret string
	JWTIssuer string

	PlatformFeeRate decimal.Decimal
	// StaleNegotiationAfter enables automatic expiry of idle negotiations.
	// Zero, the default, leaves them open.
	StaleNegotiationAfter time.Duration
	PendingReminderAfter  time.Duration
	PendingUrgentAfter    time.Duration
	StaleNoticeAfter      time.Duration
	VeryStaleNoticeAfter  time.Duration
	SweepInterval         time.Duration
	SweepBatchSize        int
	EventBuffer           int
	NotificationRules     []notification.Rule
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "sponnect")
		pass := getenv("POSTGRES_PASSWORD", "sponnect_pass")
		db := getenv("POSTGRES_DB", "sponnect")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(getenv("LOG_LEVEL", "info")))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	feeRate, err := decimal.NewFromString(getenv("PLATFORM_FEE_RATE", "0.01"))
	if err != nil {
		return nil, fmt.Errorf("PLATFORM_FEE_RATE: %w", err)
	}
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("PLATFORM_FEE_RATE must be in [0, 1), got %s", feeRate)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	rules, err := notification.ParseRules(os.Getenv("NOTIFICATION_RULES"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:           dsn,
		DBMaxConns:            int32(parseInt(getenv("DB_MAX_CONNS", ""), 0)),
		ServerAddr:            getenv("SERVER_ADDR", "0.0.0.0:8080"),
		LogLevel:              level,
		MigrationsDir:         getenv("MIGRATIONS_DIR", "internal/migrations"),
		JWTSecret:             secret,
		JWTIssuer:             os.Getenv("JWT_ISSUER"),
		PlatformFeeRate:       feeRate,
		StaleNegotiationAfter: parseDuration(os.Getenv("STALE_NEGOTIATION_AFTER"), 0),
		PendingReminderAfter:  parseDuration(getenv("PENDING_REMINDER_AFTER", "72h"), 72*time.Hour),
		PendingUrgentAfter:    parseDuration(getenv("PENDING_URGENT_AFTER", "168h"), 168*time.Hour),
		StaleNoticeAfter:      parseDuration(getenv("STALE_NOTICE_AFTER", "336h"), 336*time.Hour),
		VeryStaleNoticeAfter:  parseDuration(getenv("VERY_STALE_NOTICE_AFTER", "720h"), 720*time.Hour),
		SweepInterval:         parseDuration(getenv("SWEEP_INTERVAL", "1h"), time.Hour),
		SweepBatchSize:        parseInt(getenv("SWEEP_BATCH_SIZE", "100"), 100),
		EventBuffer:           parseInt(getenv("EVENT_BUFFER", "256"), 256),
		NotificationRules:     rules,
	}
	if cfg.PendingUrgentAfter <= cfg.PendingReminderAfter {
		return nil, fmt.Errorf("PENDING_URGENT_AFTER (%s) must exceed PENDING_REMINDER_AFTER (%s)", cfg.PendingUrgentAfter, cfg.PendingReminderAfter)
	}
	if cfg.VeryStaleNoticeAfter <= cfg.StaleNoticeAfter {
		return nil, fmt.Errorf("VERY_STALE_NOTICE_AFTER (%s) must exceed STALE_NOTICE_AFTER (%s)", cfg.VeryStaleNoticeAfter, cfg.StaleNoticeAfter)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return def
	}
	return n
}
