package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gamehub "github.com/sportsmo/gamehub-go"
)

func TestSetConfigValue(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, setConfigValue(cfg, "hub.url", "https://localhost:7269/gameHub"))
	require.NoError(t, setConfigValue(cfg, "hub.environment", "local"))
	require.NoError(t, setConfigValue(cfg, "auth.token", "eyJhbGciOi.payload.sig"))

	assert.Equal(t, "https://localhost:7269/gameHub", cfg.Hub.URL)
	assert.Equal(t, "local", cfg.Hub.Environment)
	assert.Equal(t, "eyJhbGciOi.payload.sig", cfg.Auth.Token)

	assert.Error(t, setConfigValue(cfg, "token", "x"))
	assert.Error(t, setConfigValue(cfg, "hub.port", "x"))
	assert.Error(t, setConfigValue(cfg, "auth.user", "x"))
	assert.Error(t, setConfigValue(cfg, "default.api_key", "x"))
}

func TestConfigRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)

	cfg.Hub.URL = "http://localhost:5000/gameHub"
	cfg.Auth.Token = "secret-token-value"
	require.NoError(t, saveConfig(cfg))

	path, err := configPath()
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, ".gamehub", filepath.Base(filepath.Dir(path)))

	loaded, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestResolveSettingsPrecedence(t *testing.T) {
	cfg := &Config{
		Hub:  ConfigHub{URL: "http://config.test/gameHub"},
		Auth: ConfigAuth{Token: "from-config"},
	}

	t.Setenv("GAMEHUB_URL", "")
	t.Setenv("GAMEHUB_TOKEN", "")
	s := resolveSettings(cfg)
	assert.Equal(t, "http://config.test/gameHub", s.hubURL)
	assert.Equal(t, "from-config", s.token)

	t.Setenv("GAMEHUB_URL", "http://env.test/gameHub")
	t.Setenv("GAMEHUB_TOKEN", "from-env")
	s = resolveSettings(cfg)
	assert.Equal(t, "http://env.test/gameHub", s.hubURL)
	assert.Equal(t, "from-env", s.token)

	flagURL, flagToken = "http://flag.test/gameHub", "from-flag"
	t.Cleanup(func() { flagURL, flagToken = "", "" })
	s = resolveSettings(cfg)
	assert.Equal(t, "http://flag.test/gameHub", s.hubURL)
	assert.Equal(t, "from-flag", s.token)
}

func TestSettingsEndpoint(t *testing.T) {
	assert.Equal(t, gamehub.DefaultHubURL, settings{}.endpoint())
	assert.Equal(t, "https://localhost:7269/gameHub", settings{environment: "local"}.endpoint())
	assert.Equal(t, "http://x.test/gameHub", settings{hubURL: "http://x.test/gameHub/", environment: "local"}.endpoint())
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", maskKey("short"))
	assert.Equal(t, "eyJhbG...9xYz", maskKey("eyJhbGciOiJIUzI1NiJ9xYz"))
}

func TestValueOrDefault(t *testing.T) {
	assert.Equal(t, "(not set)", valueOrDefault("", "(not set)"))
	assert.Equal(t, "local", valueOrDefault("local", "(not set)"))
}
