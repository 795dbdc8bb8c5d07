package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 1000, cfg.Translation.CacheSize)
	require.Equal(t, time.Hour, cfg.Translation.CacheTTL)
	require.Equal(t, 4, cfg.Translation.GateCapacity)
	require.Equal(t, "google", cfg.Translation.DefaultEngine)
	require.Equal(t, []string{"zh-TW"}, cfg.Translation.DefaultLanguages)
	require.Equal(t, 500, cfg.Group.Size)
	require.Equal(t, 5*time.Minute, cfg.Group.TTL)
	require.Equal(t, 20, cfg.Reaper.InactiveDays)
	require.Equal(t, 1500*time.Millisecond, cfg.Provider.Google.ConnectTimeout)
	require.Equal(t, 5*time.Second, cfg.Provider.DeepL.ReadTimeout)
	require.Equal(t, "https://api-free.deepl.com", cfg.Provider.DeepL.BaseURL)
	require.Len(t, cfg.Languages, len(DefaultLanguageTable))
	require.Equal(t, "zh-TW", cfg.Languages[0].Code)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TRANSLATION_GATE_CAPACITY", "8")
	t.Setenv("REAPER_INACTIVE_DAYS", "30")
	t.Setenv("ADMIN_TOKEN", "secret")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Translation.GateCapacity)
	require.Equal(t, 30, cfg.Reaper.InactiveDays)
	require.Equal(t, "secret", cfg.Admin.Token)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
APP_ENV: production
PROVIDER:
  DEEPL:
    API_KEY: key-123
    READ_TIMEOUT: 7s
LANGUAGES:
  - LABEL: English
    CODE: en
  - LABEL: Japanese
    CODE: ja
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "production", cfg.AppEnv)
	require.Equal(t, "key-123", cfg.Provider.DeepL.APIKey)
	require.Equal(t, 7*time.Second, cfg.Provider.DeepL.ReadTimeout)
	require.Equal(t, []Language{{Label: "English", Code: "en"}, {Label: "Japanese", Code: "ja"}}, cfg.Languages)
}
