// No t.Parallel(): env vars are process-global.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	envKeyAddr, envKeyBaseURL, envKeyDatabaseURL, envKeyAppPassword, envKeyAppPasswordHash,
	envKeySessionSecret, envKeySessionTTLHours, envKeyMailProvider, envKeyResendAPIKey,
	envKeySendGridAPIKey, envKeyAWSRegion, envKeySenderName, envKeyFromEmail, envKeyReplyTo,
	envKeySenderEmail, envKeyNotifyEmail, envKeyBookingURL, envKeyResendWebhookSecret,
	envKeySendGridWebhookSecret, envKeyDailySendLimit, envKeySendTimezone, envKeyOutreachConfig,
	envKeyImportInbox, envKeyLogLevel, envKeyLogFormat,
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "http://localhost:3000", cfg.BaseURL)
	assert.Equal(t, "./data/leadcrm.db", cfg.DatabaseURL)
	assert.Equal(t, "resend", cfg.MailProvider)
	assert.Equal(t, "SersweAI", cfg.SenderName)
	assert.Equal(t, "auto@sersweai.com", cfg.FromEmail)
	assert.Equal(t, 25, cfg.DailySendLimit)
	assert.Equal(t, "America/Los_Angeles", cfg.SendTimezone)
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.AuthEnabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(envKeyBaseURL, "https://crm.example.com/")
	t.Setenv(envKeyMailProvider, "SendGrid")
	t.Setenv(envKeyDailySendLimit, "40")
	t.Setenv(envKeyAppPassword, "hunter2")
	t.Setenv(envKeySenderEmail, "hello@example.com")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://crm.example.com", cfg.BaseURL, "trailing slash trimmed")
	assert.Equal(t, "sendgrid", cfg.MailProvider)
	assert.Equal(t, 40, cfg.DailySendLimit)
	assert.True(t, cfg.AuthEnabled())
	assert.Equal(t, "hello@example.com", cfg.NotifyEmail, "notify falls back to sender email")
}

func TestFromEnv_InvalidIntFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv(envKeyDailySendLimit, "lots")
	t.Setenv(envKeySessionTTLHours, "-3")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.DailySendLimit)
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
}

func TestFromEnv_OutreachFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "outreach.yaml")
	content := `
sender:
  name: Neil
  booking_url: https://cal.example.com/neil
default_follow_up_days:
  email1: 4
  email3: null
follow_up_days:
  Technology:
    email1: 1
category_examples:
  Technology: ["ticket triage", "onboarding flows"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(envKeyOutreachConfig, path)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "Neil", cfg.Outreach.Sender.Name)
	assert.Equal(t, "https://cal.example.com/neil", cfg.Outreach.Sender.BookingURL)
	require.NotNil(t, cfg.Outreach.DefaultFollowUpDays["email1"])
	assert.Equal(t, 4, *cfg.Outreach.DefaultFollowUpDays["email1"])
	v, ok := cfg.Outreach.DefaultFollowUpDays["email3"]
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, 1, *cfg.Outreach.FollowUpDays["Technology"]["email1"])
	assert.Equal(t, []string{"ticket triage", "onboarding flows"}, cfg.Outreach.CategoryExamples["Technology"])
}

func TestLoadOutreachFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadOutreachFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("category_examples:\n  Retail: [\"only one\"]\n"), 0o600))
	_, err = LoadOutreachFile(bad)
	assert.ErrorContains(t, err, "exactly 2 examples")
}
