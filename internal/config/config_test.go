package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "utf-16", cfg.Input.Encoding)
	assert.Equal(t, "prices.csv", cfg.Output.TablePath)
	assert.Equal(t, "prices.log", cfg.Output.AppendLogPath)
	assert.Equal(t, "pricescout.db", cfg.Store.Path)
	assert.Equal(t, "https://www.skroutz.gr", cfg.Skroutz.BaseURL)
	assert.Equal(t, 3, cfg.Skroutz.MaxAttempts)
	assert.Equal(t, 5, cfg.Skroutz.RetryWaitSecs)
	assert.InDelta(t, 1.0, cfg.Skroutz.RatePerSec, 0.001)
	assert.True(t, cfg.Session.Headless)
	assert.Equal(t, 45, cfg.Session.NavTimeoutSecs)
	assert.Equal(t, 10, cfg.Session.RotateEveryUses)
	assert.Equal(t, 30, cfg.Scrape.TimeoutSecs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
input:
  path: products.csv
  encoding: utf-8
skroutz:
  own_shop_id: "12345"
  max_attempts: 5
session:
  headless: false
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "products.csv", cfg.Input.Path)
	assert.Equal(t, "utf-8", cfg.Input.Encoding)
	assert.Equal(t, "12345", cfg.Skroutz.OwnShopID)
	assert.Equal(t, 5, cfg.Skroutz.MaxAttempts)
	assert.False(t, cfg.Session.Headless)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.Session.RotateEveryUses)
	assert.Equal(t, 5, cfg.Skroutz.RetryWaitSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
skroutz:
  own_shop_id: "12345"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PRICESCOUT_LOG_LEVEL", "warn")
	t.Setenv("PRICESCOUT_SKROUTZ_OWN_SHOP_ID", "67890")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "67890", cfg.Skroutz.OwnShopID)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("PRICESCOUT_SESSION_ROTATE_EVERY_USES", "20")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Session.RotateEveryUses)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Input:   InputConfig{Path: "products.csv", Encoding: "utf-16"},
			Skroutz: SkroutzConfig{MaxAttempts: 3, RetryWaitSecs: 5, RatePerSec: 1},
			Session: SessionConfig{RotateEveryUses: 10},
			Scrape:  ScrapeConfig{TimeoutSecs: 30},
		}
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Input.Path = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input.path is required")

	cfg = valid()
	cfg.Input.Encoding = "latin-7"
	cfg.Skroutz.MaxAttempts = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input.encoding")
	assert.Contains(t, err.Error(), "skroutz.max_attempts")

	cfg = valid()
	cfg.Session.RotateEveryUses = 0
	assert.Error(t, cfg.Validate())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
