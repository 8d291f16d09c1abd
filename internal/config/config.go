package config

import (
	"fmt"
	"strings"
	"time"

	"libraryhub/internal/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all configuration for the application
type Config struct {
	AppMode   string
	Port      string
	Origins   string
	Database  DatabaseConfig
	JWT       JWTConfig
	Cookie    CookieConfig
	Lending   LendingConfig
	Scheduler SchedulerConfig
	Mail      MailConfig
	Log       logger.Options
	Admin     AdminSeed
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver     string // mysql | postgres | sqlite
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SQLitePath string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	RefreshSecret    string
	AccessTokenMins  int
	RefreshTokenDays int
}

// CookieConfig holds cookie configuration
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// LendingConfig holds loan period and fine policy
type LendingConfig struct {
	LoanPeriodDays     int
	FineRatePerDay     decimal.Decimal
	FineCacheTTL       time.Duration
	DueSoonWindow      time.Duration
	DirectIssueEnabled bool
}

// SchedulerConfig holds cron specs and outbox tuning
type SchedulerConfig struct {
	OverdueSweepSpec  string
	DueSoonSpec       string
	OutboxSpec        string
	SweepTimeout      time.Duration
	OutboxBatchSize   int
	OutboxWorkers     int
	OutboxMaxAttempts int
	OutboxBaseDelay   time.Duration
	OutboxTimeout     time.Duration
}

// MailConfig holds SMTP settings. An empty Host disables mail delivery.
type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Timeout  time.Duration
}

// AdminSeed is the bootstrap administrator account
type AdminSeed struct {
	Username string
	Email    string
	Password string
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env, an optional CONFIG_FILE and the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Warn(".env file not found, using environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "unable to read config file %s", file)
		}
	}

	config, err := FromViper(v)
	if err != nil {
		return nil, err
	}

	AppConfig = config

	logger.Info("configuration loaded", zap.String("mode", config.AppMode), zap.String("db_driver", config.Database.Driver))
	return config, nil
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	appMode := strings.TrimSpace(v.GetString("APP_MODE"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	driver := strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER")))
	switch driver {
	case "mysql", "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER: '%s' (must be mysql, postgres or sqlite)", driver)
	}

	rate, err := decimal.NewFromString(v.GetString("FINE_RATE_PER_DAY"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid FINE_RATE_PER_DAY")
	}
	if rate.IsNegative() {
		return nil, errors.New("FINE_RATE_PER_DAY must not be negative")
	}

	loanDays := v.GetInt("LOAN_PERIOD_DAYS")
	if loanDays < 1 {
		return nil, errors.New("LOAN_PERIOD_DAYS must be positive")
	}

	prefix := modePrefix(appMode)

	return &Config{
		AppMode: appMode,
		Port:    v.GetString("PORT"),
		Origins: v.GetString("ALLOWED_ORIGINS"),
		Database: DatabaseConfig{
			Driver:     driver,
			Host:       v.GetString(prefix + "DB_HOST"),
			Port:       v.GetString(prefix + "DB_PORT"),
			User:       v.GetString(prefix + "DB_USER"),
			Password:   v.GetString(prefix + "DB_PASS"),
			DBName:     v.GetString(prefix + "DB_NAME"),
			SQLitePath: v.GetString("SQLITE_PATH"),
		},
		JWT: JWTConfig{
			Secret:           v.GetString(prefix + "JWT_SECRET"),
			RefreshSecret:    v.GetString(prefix + "JWT_REFRESH_SECRET"),
			AccessTokenMins:  v.GetInt("ACCESS_TOKEN_MINUTES"),
			RefreshTokenDays: v.GetInt("REFRESH_TOKEN_DAYS"),
		},
		Cookie: CookieConfig{
			Secure:   v.GetBool(prefix + "COOKIE_SECURE"),
			SameSite: v.GetString("COOKIE_SAMESITE"),
			Domain:   v.GetString("COOKIE_DOMAIN"),
		},
		Lending: LendingConfig{
			LoanPeriodDays:     loanDays,
			FineRatePerDay:     rate,
			FineCacheTTL:       v.GetDuration("FINE_CACHE_TTL"),
			DueSoonWindow:      v.GetDuration("DUE_SOON_WINDOW"),
			DirectIssueEnabled: v.GetBool("DIRECT_ISSUE_ENABLED"),
		},
		Scheduler: SchedulerConfig{
			OverdueSweepSpec:  v.GetString("CRON_OVERDUE_SWEEP"),
			DueSoonSpec:       v.GetString("CRON_DUE_SOON"),
			OutboxSpec:        v.GetString("CRON_OUTBOX"),
			SweepTimeout:      v.GetDuration("SWEEP_TIMEOUT"),
			OutboxBatchSize:   v.GetInt("OUTBOX_BATCH_SIZE"),
			OutboxWorkers:     v.GetInt("OUTBOX_WORKERS"),
			OutboxMaxAttempts: v.GetInt("OUTBOX_MAX_ATTEMPTS"),
			OutboxBaseDelay:   v.GetDuration("OUTBOX_BASE_DELAY"),
			OutboxTimeout:     v.GetDuration("OUTBOX_TIMEOUT"),
		},
		Mail: MailConfig{
			Host:     v.GetString("MAIL_HOST"),
			Port:     v.GetInt("MAIL_PORT"),
			User:     v.GetString("MAIL_USER"),
			Password: v.GetString("MAIL_PASS"),
			From:     v.GetString("MAIL_FROM"),
			Timeout:  v.GetDuration("MAIL_TIMEOUT"),
		},
		Log: logger.Options{
			Level:      v.GetString("LOG_LEVEL"),
			File:       v.GetString("LOG_FILE"),
			MaxSize:    v.GetInt("LOG_MAX_SIZE"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
			MaxAge:     v.GetInt("LOG_MAX_AGE"),
			Compress:   v.GetBool("LOG_COMPRESS"),
		},
		Admin: AdminSeed{
			Username: v.GetString("ADMIN_USERNAME"),
			Email:    v.GetString("ADMIN_EMAIL"),
			Password: v.GetString("ADMIN_PASSWORD"),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_MODE", "dev")
	v.SetDefault("PORT", "3000")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("SQLITE_PATH", "libraryhub.db")

	for _, prefix := range []string{"DEV_", "PROD_"} {
		v.SetDefault(prefix+"DB_HOST", "localhost")
		v.SetDefault(prefix+"DB_PORT", "3306")
		v.SetDefault(prefix+"DB_USER", "root")
		v.SetDefault(prefix+"DB_PASS", "")
		v.SetDefault(prefix+"DB_NAME", "libraryhub")
		v.SetDefault(prefix+"JWT_SECRET", "default_secret")
		v.SetDefault(prefix+"JWT_REFRESH_SECRET", "default_refresh_secret")
		v.SetDefault(prefix+"COOKIE_SECURE", false)
	}

	v.SetDefault("ACCESS_TOKEN_MINUTES", 60)
	v.SetDefault("REFRESH_TOKEN_DAYS", 7)
	v.SetDefault("COOKIE_SAMESITE", "lax")

	v.SetDefault("LOAN_PERIOD_DAYS", 15)
	v.SetDefault("FINE_RATE_PER_DAY", "5")
	v.SetDefault("FINE_CACHE_TTL", time.Hour)
	v.SetDefault("DUE_SOON_WINDOW", 24*time.Hour)
	v.SetDefault("DIRECT_ISSUE_ENABLED", false)

	v.SetDefault("CRON_OVERDUE_SWEEP", "0 1 * * *")
	v.SetDefault("CRON_DUE_SOON", "0 8 * * *")
	v.SetDefault("CRON_OUTBOX", "@every 1m")
	v.SetDefault("SWEEP_TIMEOUT", 2*time.Minute)
	v.SetDefault("OUTBOX_BATCH_SIZE", 50)
	v.SetDefault("OUTBOX_WORKERS", 4)
	v.SetDefault("OUTBOX_MAX_ATTEMPTS", 6)
	v.SetDefault("OUTBOX_BASE_DELAY", 30*time.Second)
	v.SetDefault("OUTBOX_TIMEOUT", 2*time.Minute)

	v.SetDefault("MAIL_PORT", 587)
	v.SetDefault("MAIL_FROM", "library@localhost")
	v.SetDefault("MAIL_TIMEOUT", 15*time.Second)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_MAX_SIZE", 50)
	v.SetDefault("LOG_MAX_BACKUPS", 3)
	v.SetDefault("LOG_MAX_AGE", 28)
	v.SetDefault("LOG_COMPRESS", false)

	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_EMAIL", "admin@library.local")
	v.SetDefault("ADMIN_PASSWORD", "")
}

func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// NewViper returns a viper instance with the application defaults applied
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := c.Origins
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://library.example.org"
	}
	return origins
}
