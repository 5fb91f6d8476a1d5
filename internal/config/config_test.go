package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "letmein")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "letmein", cfg.AdminPassword)
	assert.Equal(t, DriverFile, cfg.StoreDriver)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.WhatsApp.Enabled)
	assert.Equal(t, "972", cfg.WhatsApp.CountryCode)
}

func TestLoadConfigRequiresPassword(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "")
	os.Unsetenv("ADMIN_PASSWORD")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoadConfigFromDotenv(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "from-env")
	t.Setenv("STORE_DRIVER", "")
	os.Unsetenv("STORE_DRIVER")
	t.Setenv("WHATSAPP_ORGANIZER_PHONE", "")
	os.Unsetenv("WHATSAPP_ORGANIZER_PHONE")

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("STORE_DRIVER=sqlite\nSTORE_PATH=events.db\nWHATSAPP_ORGANIZER_PHONE=0521234567\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		os.Unsetenv("STORE_DRIVER")
		os.Unsetenv("STORE_PATH")
		os.Unsetenv("WHATSAPP_ORGANIZER_PHONE")
	})

	assert.Equal(t, "from-env", cfg.AdminPassword, "existing environment wins over .env")
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "events.db", cfg.StorePath)
	assert.Equal(t, "0521234567", cfg.WhatsApp.OrganizerPhone)
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := &Config{StoreDriver: "postgres", SessionTTL: time.Hour}
	assert.Error(t, cfg.Validate())
}
