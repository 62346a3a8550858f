package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvProduction is the deployment mode that hides diagnostic detail and
// restricts CORS to the configured front-end origin.
const EnvProduction = "production"

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	FrontendURL   string
	BusinessEmail string
	BusinessPhone string
	EmailFrom     string
	AdminSecret   string

	// Google Sheets store
	GoogleServiceAccountEmail string
	GooglePrivateKey          string
	GoogleSheetID             string
	GoogleSheetRange          string
	StoreTimeout              time.Duration

	// Mail transports, in precedence order
	SendGridAPIKey      string
	ResendAPIKey        string
	SESEnabled          bool
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	SMTPHost            string
	SMTPPort            int
	SMTPUser            string
	SMTPPass            string
	SMTPSecure          bool
	MailTimeout         time.Duration
	MailDryRun          bool

	// Perimeter
	// TrustProxy takes the client address from X-Forwarded-For style headers.
	// Enable only behind a proxy that overwrites them.
	TrustProxy          bool
	RedisAddr           string
	RedisPassword       string
	RedisTLS            bool
	RateLimitWindow     time.Duration
	RateLimitMax        int
	LeadRateLimitWindow time.Duration
	LeadRateLimitMax    int
	MaxBodyBytes        int64
	IdempotencyTTL      time.Duration
	MetricsEnabled      bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "5000"),
		Env:           strings.ToLower(strings.TrimSpace(getEnv("ENV", ""))),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		FrontendURL:   strings.TrimRight(strings.TrimSpace(getEnv("FRONTEND_URL", "")), "/"),
		BusinessEmail: strings.TrimSpace(getEnv("BUSINESS_EMAIL", "")),
		BusinessPhone: getEnv("BUSINESS_PHONE", "(416) 555-0123"),
		EmailFrom:     getEnv("EMAIL_FROM", "PrimeMortgage <noreply@primemortgage.ca>"),
		AdminSecret:   getEnv("ADMIN_SECRET", ""),

		GoogleServiceAccountEmail: getEnv("GOOGLE_SERVICE_ACCOUNT_EMAIL", ""),
		GooglePrivateKey:          unescapeNewlines(getEnv("GOOGLE_PRIVATE_KEY", "")),
		GoogleSheetID:             getEnv("GOOGLE_SHEET_ID", ""),
		GoogleSheetRange:          getEnv("GOOGLE_SHEET_RANGE", "Leads!A:F"),
		StoreTimeout:              getEnvAsDuration("STORE_TIMEOUT", 10*time.Second),

		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		ResendAPIKey:        getEnv("RESEND_API_KEY", ""),
		SESEnabled:          getEnvAsBool("SES_ENABLED", false),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:            getEnv("SMTP_USER", ""),
		SMTPPass:            getEnv("SMTP_PASS", ""),
		SMTPSecure:          getEnvAsBool("SMTP_SECURE", false),
		MailTimeout:         getEnvAsDuration("MAIL_TIMEOUT", 10*time.Second),
		MailDryRun:          getEnvAsBool("MAIL_DRY_RUN", false),

		TrustProxy:          getEnvAsBool("TRUST_PROXY", false),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisTLS:            getEnvAsBool("REDIS_TLS", false),
		RateLimitWindow:     getEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		RateLimitMax:        getEnvAsInt("RATE_LIMIT_MAX", 100),
		LeadRateLimitWindow: getEnvAsDuration("LEAD_RATE_LIMIT_WINDOW", time.Hour),
		LeadRateLimitMax:    getEnvAsInt("LEAD_RATE_LIMIT_MAX", 10),
		MaxBodyBytes:        int64(getEnvAsInt("MAX_BODY_BYTES", 50*1024)),
		IdempotencyTTL:      getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		MetricsEnabled:      getEnvAsBool("METRICS_ENABLED", true),
	}
}

// Validate reports every required variable that is missing. Store and mail
// credentials are not checked here; they fail on first use instead.
func (c *Config) Validate() error {
	var missing []string
	if c.Env == "" {
		missing = append(missing, "ENV")
	}
	if c.FrontendURL == "" {
		missing = append(missing, "FRONTEND_URL")
	}
	if c.BusinessEmail == "" {
		missing = append(missing, "BUSINESS_EMAIL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// IsProduction reports whether the deployment mode is production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// AllowedOrigins returns the CORS allow-list for the deployment mode.
func (c *Config) AllowedOrigins() []string {
	if c.IsProduction() {
		return []string{c.FrontendURL}
	}
	return []string{
		"http://localhost:5173",
		"http://127.0.0.1:5173",
		"http://localhost:3000",
		c.FrontendURL,
	}
}

// unescapeNewlines expands literal "\n" sequences, which is how PEM keys
// usually survive being pasted into a single-line env var.
func unescapeNewlines(value string) string {
	return strings.ReplaceAll(value, `\n`, "\n")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
