package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setCredentials(t *testing.T) {
	t.Setenv("CALDAV_USERNAME", "alice")
	t.Setenv("CALDAV_PASSWORD", "secret")
	t.Setenv("CALDAV_URL", "dav.example.com")
}

func TestLoad(t *testing.T) {
	setCredentials(t)
	t.Setenv("CALDAV_TIMEZONE", "Europe/Berlin")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://dav.example.com/alice/", cfg.BaseURL)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone.String())
}

func TestLoad_MissingEnv(t *testing.T) {
	for _, name := range []string{"CALDAV_USERNAME", "CALDAV_PASSWORD", "CALDAV_URL"} {
		t.Run(name, func(t *testing.T) {
			setCredentials(t)
			unsetEnv(t, name)

			_, err := Load()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingEnv))
			assert.Contains(t, err.Error(), name)
		})
	}
}

// unsetEnv removes name for the duration of the test; t.Setenv restores it.
func unsetEnv(t *testing.T, name string) {
	t.Helper()
	t.Setenv(name, "")
	require.NoError(t, os.Unsetenv(name))
}

func TestLoad_EmptyValueIsNotMissing(t *testing.T) {
	setCredentials(t)
	t.Setenv("CALDAV_PASSWORD", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Password)
}

func TestLoad_InvalidTimezone(t *testing.T) {
	setCredentials(t)
	t.Setenv("CALDAV_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDaemon_Defaults(t *testing.T) {
	setCredentials(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("CALDAV_REFRESH_PERIOD_MINUTES", "")
	t.Setenv("CALDAV_NOTIFY_BEFORE_MINUTES", "abc")
	t.Setenv("CALDAV_SERVER_OFFSET_HOURS", "")
	t.Setenv("DATABASE_PATH", "")

	cfg, err := LoadDaemon()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.RefreshPeriod)
	assert.Equal(t, 5*time.Minute, cfg.NotifyBefore)
	assert.Equal(t, time.Duration(0), cfg.ServerOffset)
	assert.Equal(t, "./data/caldav-daemon.db", cfg.DatabasePath)
	assert.Empty(t, cfg.TelegramToken)
}

func TestLoadDaemon_Overrides(t *testing.T) {
	setCredentials(t)
	t.Setenv("CALDAV_REFRESH_PERIOD_MINUTES", "3")
	t.Setenv("CALDAV_NOTIFY_BEFORE_MINUTES", "15")
	t.Setenv("CALDAV_SERVER_OFFSET_HOURS", "-3")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := LoadDaemon()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Minute, cfg.RefreshPeriod)
	assert.Equal(t, 15*time.Minute, cfg.NotifyBefore)
	assert.Equal(t, -3*time.Hour, cfg.ServerOffset)
	assert.Equal(t, int64(42), cfg.TelegramChatID)
}

func TestLoadDaemon_BadChatID(t *testing.T) {
	setCredentials(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "me")

	_, err := LoadDaemon()
	assert.Error(t, err)
}
