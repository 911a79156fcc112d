// Package config loads service configuration from the environment and the
// product catalog file.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultPort              = "8080"
	defaultFrontendURL       = "http://localhost:5173"
	defaultInstagramURL      = "https://instagram.com/kfimusic"
	defaultSupportEmail      = "info.kfimusic@gmail.com"
	defaultBucket            = "beats"
	defaultOnboardingFrom    = "KFI Music <onboarding@resend.dev>"
	defaultUnverifiedPattern = `(?i)@send\.kfimusic\.com\b`
	defaultCatalogPath       = "products.yaml"
	defaultLogLevel          = "info"
	defaultLogFormat         = "json"
)

type Config struct {
	Port         string `yaml:"port"`
	FrontendURL  string `yaml:"frontend_url"`
	InstagramURL string `yaml:"instagram_url"`
	LogoURL      string `yaml:"logo_url"`
	SupportEmail string `yaml:"support_email"`
	AdminToken   string `yaml:"admin_token"`
	DatabaseURL  string `yaml:"database_url"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
	CatalogPath  string `yaml:"catalog_path"`

	Stripe  StripeConfig  `yaml:"stripe"`
	Storage StorageConfig `yaml:"storage"`
	Email   EmailConfig   `yaml:"email"`
	SMTP    SMTPConfig    `yaml:"smtp"`

	Catalog Catalog `yaml:"catalog"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

func (c StripeConfig) Enabled() bool { return c.SecretKey != "" }

type StorageConfig struct {
	URL    string `yaml:"url"`
	Key    string `yaml:"key"`
	Bucket string `yaml:"bucket"`
}

func (c StorageConfig) Enabled() bool { return c.URL != "" && c.Key != "" }

type EmailConfig struct {
	ResendAPIKey      string `yaml:"resend_api_key"`
	From              string `yaml:"from"`
	FallbackFrom      string `yaml:"fallback_from"`
	OnboardingFrom    string `yaml:"onboarding_from"`
	SenderMode        string `yaml:"sender_mode"`
	UnverifiedPattern string `yaml:"unverified_pattern"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Enabled mirrors the relay requirement: every field must be present.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Port != 0 && c.User != "" && c.Password != "" && c.From != ""
}

func (c SMTPConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Load reads a .env file when present, then the environment, then the catalog.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARNING: failed to read .env file: %v", err)
	}

	cfg := FromEnv()

	catalog, err := LoadCatalog(cfg.CatalogPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load product catalog %s: %w", cfg.CatalogPath, err)
		}
		log.Printf("WARNING: product catalog %s not found; price and product IDs will not resolve.", cfg.CatalogPath)
	}
	cfg.Catalog = catalog

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables only.
func FromEnv() Config {
	cfg := Config{
		Port:         getEnv("PORT", defaultPort),
		FrontendURL:  strings.TrimRight(getEnv("FRONTEND_URL", defaultFrontendURL), "/"),
		InstagramURL: getEnv("INSTAGRAM_URL", defaultInstagramURL),
		LogoURL:      os.Getenv("EMAIL_LOGO_URL"),
		SupportEmail: getEnv("SUPPORT_EMAIL", defaultSupportEmail),
		AdminToken:   os.Getenv("ADMIN_TOKEN"),
		DatabaseURL:  os.Getenv("DB_CONNECTION_STRING"),
		LogLevel:     getEnv("LOG_LEVEL", defaultLogLevel),
		LogFormat:    getEnv("LOG_FORMAT", defaultLogFormat),
		CatalogPath:  getEnv("PRODUCT_CATALOG", defaultCatalogPath),
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
		Storage: StorageConfig{
			URL:    strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
			Key:    firstNonEmpty(os.Getenv("SUPABASE_KEY"), os.Getenv("SUPABASE_SERVICE_ROLE_KEY")),
			Bucket: getEnv("STORAGE_BUCKET", defaultBucket),
		},
		Email: EmailConfig{
			ResendAPIKey:      os.Getenv("RESEND_API_KEY"),
			From:              os.Getenv("RESEND_FROM"),
			FallbackFrom:      getEnv("RESEND_FALLBACK_FROM", defaultOnboardingFrom),
			OnboardingFrom:    defaultOnboardingFrom,
			SenderMode:        strings.ToLower(getEnv("FORCE_SENDER_MODE", "auto")),
			UnverifiedPattern: getEnv("UNVERIFIED_SENDER_PATTERN", defaultUnverifiedPattern),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     os.Getenv("SMTP_FROM"),
		},
	}

	if raw := os.Getenv("SMTP_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			log.Printf("WARNING: SMTP_PORT %q is not a number; SMTP fallback disabled.", raw)
		}
		cfg.SMTP.Port = port
	}

	if !cfg.Stripe.Enabled() {
		log.Println("WARNING: STRIPE_SECRET_KEY not set. Session lookups will fail at runtime.")
	}
	if cfg.Stripe.WebhookSecret == "" {
		log.Println("WARNING: STRIPE_WEBHOOK_SECRET not set. Payment webhooks will be acknowledged and ignored.")
	}
	if !cfg.Storage.Enabled() {
		log.Println("WARNING: SUPABASE_URL or SUPABASE_KEY missing; downloads will fail until set.")
	}
	if cfg.Email.ResendAPIKey == "" && !cfg.SMTP.Enabled() {
		log.Println("WARNING: no email transport configured. Delivery emails will not be sent.")
	}
	return cfg
}

// Validate rejects settings that would misbehave silently at runtime.
func (c Config) Validate() error {
	switch c.Email.SenderMode {
	case "auto", "onboarding", "branded":
	default:
		return fmt.Errorf("FORCE_SENDER_MODE must be auto|onboarding|branded, got %q", c.Email.SenderMode)
	}
	if c.Storage.Bucket == "" {
		return errors.New("STORAGE_BUCKET cannot be empty")
	}
	return c.Catalog.Validate()
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	out := c
	out.AdminToken = mask(c.AdminToken)
	out.DatabaseURL = mask(c.DatabaseURL)
	out.Stripe.SecretKey = mask(c.Stripe.SecretKey)
	out.Stripe.WebhookSecret = mask(c.Stripe.WebhookSecret)
	out.Storage.Key = mask(c.Storage.Key)
	out.Email.ResendAPIKey = mask(c.Email.ResendAPIKey)
	out.SMTP.Password = mask(c.SMTP.Password)
	return out
}

func mask(v string) string {
	if v == "" {
		return ""
	}
	return "[REDACTED]"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
