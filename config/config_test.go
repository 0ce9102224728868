package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Web.Port)
	assert.Equal(t, "json", cfg.Storage.Type)
	assert.Equal(t, "TEST_TAG", cfg.Device.TestTag)
	assert.Equal(t, 24*time.Hour, cfg.Web.TokenTTL)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfile := filepath.Join(dir, "smartcart.yml")
	content := `
web:
  port: 8080
storage:
  type: bbolt
  timeout: 2s
device:
  require_token: true
  tokens:
    cart-01: s3cret
`
	require.NoError(t, os.WriteFile(cfile, []byte(content), 0o600))

	t.Setenv("PORT", "9090")
	t.Setenv("SMARTCART_DEVICE_TOKENS", "cart-02:other")
	t.Setenv("SMARTCART_STORAGE_TIMEOUT", "3s")

	cfg, err := LoadConfig(cfile)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Web.Port)
	assert.Equal(t, "bbolt", cfg.Storage.Type)
	assert.Equal(t, 3*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, "s3cret", cfg.Device.Tokens["cart-01"])
	assert.Equal(t, "other", cfg.Device.Tokens["cart-02"])
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"storage", "storage:\n  type: mongo\n"},
		{"payment", "payment:\n  provider: paypal\n"},
		{"razorpay keys", "payment:\n  provider: razorpay\n"},
		{"tokens", "device:\n  require_token: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfile := filepath.Join(t.TempDir(), "c.yml")
			require.NoError(t, os.WriteFile(cfile, []byte(tt.content), 0o600))
			_, err := LoadConfig(cfile)
			assert.Error(t, err)
		})
	}
}

func TestDefaultsAreNotShared(t *testing.T) {
	a := defaults()
	a.Device.Tokens["x"] = "y"
	b := defaults()
	assert.Empty(t, b.Device.Tokens)
}
