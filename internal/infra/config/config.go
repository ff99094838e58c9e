// Package config provides application-wide configuration loaded from env vars, an optional
// .env file and an optional YAML outreach file. All fields have safe defaults so the binary
// runs locally without any env setup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for leadcrm.
type Config struct {
	// HTTP
	Addr    string // LEADCRM_ADDR: default ":8080"
	BaseURL string // APP_BASE_URL: default "http://localhost:3000"; used in tracked links

	// Storage
	DatabaseURL string // DATABASE_URL: SQLite path or postgres:// URL

	// Auth
	AppPassword     string        // APP_PASSWORD: empty disables auth
	AppPasswordHash string        // APP_PASSWORD_HASH: bcrypt hash, alternative to APP_PASSWORD
	SessionSecret   string        // SESSION_SECRET: signs login tokens; empty disables them
	SessionTTL      time.Duration // SESSION_TTL_HOURS: default 168h

	// Mail
	MailProvider   string // MAIL_PROVIDER: resend | sendgrid | ses | log
	ResendAPIKey   string // RESEND_API_KEY
	SendGridAPIKey string // SENDGRID_API_KEY
	AWSRegion      string // AWS_REGION: for SES
	SenderName     string // SENDER_NAME: default "SersweAI"
	FromEmail      string // FROM_EMAIL: outreach From address
	ReplyTo        string // REPLY_TO
	SenderEmail    string // SENDER_EMAIL: From address for contact notifications
	NotifyEmail    string // NOTIFY_EMAIL: recipient of contact notifications
	BookingURL     string // BOOKING_URL

	// Webhooks
	ResendWebhookSecret   string // RESEND_WEBHOOK_SECRET
	SendGridWebhookSecret string // SENDGRID_WEBHOOK_SECRET

	// Outreach policy
	DailySendLimit int    // DAILY_SEND_LIMIT: default 25
	SendTimezone   string // SEND_TIMEZONE: default "America/Los_Angeles"
	OutreachFile   string // OUTREACH_CONFIG: YAML overrides
	Outreach       OutreachFile

	// Import inbox
	ImportInbox string // IMPORT_INBOX

	// Logging
	LogLevel  string // LOG_LEVEL: default "info"
	LogFormat string // LOG_FORMAT: json | console
}

// OutreachFile is the YAML shape of OUTREACH_CONFIG. Nil pointers inside FollowUpDays mean
// "no follow-up" for that template; missing keys fall back to built-in tables.
type OutreachFile struct {
	Sender struct {
		Name       string `yaml:"name"`
		Email      string `yaml:"email"`
		Website    string `yaml:"website"`
		BookingURL string `yaml:"booking_url"`
	} `yaml:"sender"`
	DefaultFollowUpDays map[string]*int            `yaml:"default_follow_up_days"`
	FollowUpDays        map[string]map[string]*int `yaml:"follow_up_days"`
	CategoryExamples    map[string][]string        `yaml:"category_examples"`
}

const (
	envKeyAddr                  = "LEADCRM_ADDR"
	envKeyBaseURL               = "APP_BASE_URL"
	envKeyDatabaseURL           = "DATABASE_URL"
	envKeyAppPassword           = "APP_PASSWORD"
	envKeyAppPasswordHash       = "APP_PASSWORD_HASH"
	envKeySessionSecret         = "SESSION_SECRET"
	envKeySessionTTLHours       = "SESSION_TTL_HOURS"
	envKeyMailProvider          = "MAIL_PROVIDER"
	envKeyResendAPIKey          = "RESEND_API_KEY"
	envKeySendGridAPIKey        = "SENDGRID_API_KEY"
	envKeyAWSRegion             = "AWS_REGION"
	envKeySenderName            = "SENDER_NAME"
	envKeyFromEmail             = "FROM_EMAIL"
	envKeyReplyTo               = "REPLY_TO"
	envKeySenderEmail           = "SENDER_EMAIL"
	envKeyNotifyEmail           = "NOTIFY_EMAIL"
	envKeyBookingURL            = "BOOKING_URL"
	envKeyResendWebhookSecret   = "RESEND_WEBHOOK_SECRET"
	envKeySendGridWebhookSecret = "SENDGRID_WEBHOOK_SECRET"
	envKeyDailySendLimit        = "DAILY_SEND_LIMIT"
	envKeySendTimezone          = "SEND_TIMEZONE"
	envKeyOutreachConfig        = "OUTREACH_CONFIG"
	envKeyImportInbox           = "IMPORT_INBOX"
	envKeyLogLevel              = "LOG_LEVEL"
	envKeyLogFormat             = "LOG_FORMAT"
)

const (
	defaultDailySendLimit  = 25
	defaultSessionTTLHours = 168
)

// Load reads a .env file from the working directory when present, then environment variables,
// then the outreach YAML file named by OUTREACH_CONFIG.
func Load() (Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env is optional
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	senderEmail := os.Getenv(envKeySenderEmail)
	cfg := Config{
		Addr:                  envOr(envKeyAddr, ":8080"),
		BaseURL:               strings.TrimRight(envOr(envKeyBaseURL, "http://localhost:3000"), "/"),
		DatabaseURL:           envOr(envKeyDatabaseURL, "./data/leadcrm.db"),
		AppPassword:           os.Getenv(envKeyAppPassword),
		AppPasswordHash:       os.Getenv(envKeyAppPasswordHash),
		SessionSecret:         os.Getenv(envKeySessionSecret),
		SessionTTL:            time.Duration(envIntOr(envKeySessionTTLHours, defaultSessionTTLHours)) * time.Hour,
		MailProvider:          strings.ToLower(envOr(envKeyMailProvider, "resend")),
		ResendAPIKey:          os.Getenv(envKeyResendAPIKey),
		SendGridAPIKey:        os.Getenv(envKeySendGridAPIKey),
		AWSRegion:             envOr(envKeyAWSRegion, "us-west-2"),
		SenderName:            envOr(envKeySenderName, "SersweAI"),
		FromEmail:             envOr(envKeyFromEmail, "auto@sersweai.com"),
		ReplyTo:               envOr(envKeyReplyTo, "sersweai2@gmail.com"),
		SenderEmail:           senderEmail,
		NotifyEmail:           envOr(envKeyNotifyEmail, senderEmail),
		BookingURL:            os.Getenv(envKeyBookingURL),
		ResendWebhookSecret:   os.Getenv(envKeyResendWebhookSecret),
		SendGridWebhookSecret: os.Getenv(envKeySendGridWebhookSecret),
		DailySendLimit:        envIntOr(envKeyDailySendLimit, defaultDailySendLimit),
		SendTimezone:          envOr(envKeySendTimezone, "America/Los_Angeles"),
		OutreachFile:          os.Getenv(envKeyOutreachConfig),
		ImportInbox:           os.Getenv(envKeyImportInbox),
		LogLevel:              envOr(envKeyLogLevel, "info"),
		LogFormat:             envOr(envKeyLogFormat, "json"),
	}

	if cfg.OutreachFile != "" {
		file, err := LoadOutreachFile(cfg.OutreachFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Outreach = file
	}
	return cfg, nil
}

// LoadOutreachFile parses the YAML outreach overrides at path.
func LoadOutreachFile(path string) (OutreachFile, error) {
	var file OutreachFile
	data, err := os.ReadFile(path)
	if err != nil {
		return file, fmt.Errorf("read outreach config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse outreach config %q: %w", path, err)
	}
	for category, examples := range file.CategoryExamples {
		if len(examples) != 2 {
			return file, fmt.Errorf("outreach config %q: category %q needs exactly 2 examples, got %d", path, category, len(examples))
		}
	}
	return file, nil
}

// AuthEnabled reports whether protected routes require a credential.
func (c Config) AuthEnabled() bool {
	return c.AppPassword != "" || c.AppPasswordHash != ""
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envIntOr parses key as a positive int, returning fallback when unset or invalid.
func envIntOr(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
