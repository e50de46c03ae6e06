package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	CookieSecure      bool
	GuestCookieSecret string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RateLimit RateLimitConfig

	Affiliate AffiliateConfig
	Credit    CreditConfig

	StripeWebhookSecret string
}

// RateLimitConfig guards the public click-tracking endpoint.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ClickRate     float64
	ClickBurst    int
}

// AffiliateConfig carries ledger defaults for the referral program.
type AffiliateConfig struct {
	DefaultCommissionRate float64
	SignupBaseAmount      int64 // cents credited per qualifying signup
	ReferralCookieTTLDays int
}

// CreditConfig carries the AI-credit ledger defaults.
type CreditConfig struct {
	SignupBonus       int64
	GuestAllowance    int64
	GuestCookieDays   int
	LowBalanceWarning int64
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	cookieSecure := environment == "production"
	if !cookieSecure {
		cookieSecure = getenvBool("COOKIE_SECURE", false)
	}

	return Config{
		AppName:     getenv("APP_SERVICE", "domijob"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		CookieSecure:      cookieSecure,
		GuestCookieSecret: strings.TrimSpace(getenv("GUEST_COOKIE_SECRET", "")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "domijob"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			ClickRate:     getenvFloat("RATE_LIMIT_CLICK_RATE", 10),
			ClickBurst:    getenvInt("RATE_LIMIT_CLICK_BURST", 30),
		},

		Affiliate: AffiliateConfig{
			DefaultCommissionRate: getenvFloat("AFFILIATE_DEFAULT_COMMISSION_RATE", 0.10),
			SignupBaseAmount:      getenvInt64("AFFILIATE_SIGNUP_BASE_AMOUNT", 10000),
			ReferralCookieTTLDays: getenvInt("AFFILIATE_REFERRAL_COOKIE_DAYS", 30),
		},

		Credit: CreditConfig{
			SignupBonus:       getenvInt64("CREDIT_SIGNUP_BONUS", 50),
			GuestAllowance:    getenvInt64("CREDIT_GUEST_ALLOWANCE", 50),
			GuestCookieDays:   getenvInt("CREDIT_GUEST_COOKIE_DAYS", 30),
			LowBalanceWarning: getenvInt64("CREDIT_LOW_BALANCE_WARNING", 10),
		},

		StripeWebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
