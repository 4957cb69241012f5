package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		configPathEnv, httpAddrEnv, databaseDriverEnv, databaseDSNEnv, logLevelEnv,
		llmProviderEnv, openAIAPIKeyEnv, openAIModelEnv, openAIBaseURLEnv,
		geminiAPIKeyEnv, geminiModelEnv, extractionURLEnv, extractionAPIKeyEnv,
		telegramTokenEnv, telegramChatIDEnv,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Nil(t, cfg.LLM.Temperature)
	assert.Equal(t, 0.1, cfg.LLM.ResolvedTemperature())
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.ResolvedModel())
	assert.Equal(t, defaultOpenAIBaseURL, cfg.LLM.ResolvedEndpoint())
	assert.False(t, cfg.Notifications.Telegram.Enabled())
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
server:
  addr: ":9090"
database:
  driver: postgres
  dsn: "postgres://file"
llm:
  provider: gemini
pipeline:
  layerTimeout: 30s
notifications:
  telegram:
    chatId: "42"
`)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	clearEnv(t)
	t.Setenv(configPathEnv, path)
	t.Setenv(databaseDSNEnv, "postgres://env")
	t.Setenv(geminiAPIKeyEnv, "gem-key")
	t.Setenv(openAIAPIKeyEnv, "ignored")
	t.Setenv(telegramTokenEnv, "bot")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://env", cfg.Database.DSN)
	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "gem-key", cfg.LLM.APIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.ResolvedModel())
	assert.Equal(t, 30*time.Second, cfg.Pipeline.LayerTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Notifications.Telegram.Enabled())
}

func TestLoadIgnoresBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	clearEnv(t)
	t.Setenv(configPathEnv, path)

	cfg := Load()
	assert.Equal(t, defaultConfig(), cfg)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"driver":   func(c *Config) { c.Database.Driver = "mysql" },
		"dsn":      func(c *Config) { c.Database.DSN = "  " },
		"provider": func(c *Config) { c.LLM.Provider = "claude" },
		"timeout":  func(c *Config) { c.Pipeline.LayerTimeout = 0 },
		"sweeper":  func(c *Config) { c.Sweeper.StaleAfter = -time.Second },
		"temperature": func(c *Config) {
			v := -0.5
			c.LLM.Temperature = &v
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadKeepsZeroTemperature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  temperature: 0\n"), 0o600))
	clearEnv(t)
	t.Setenv(configPathEnv, path)

	cfg := Load()
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.LLM.Temperature)
	assert.Equal(t, 0.0, cfg.LLM.ResolvedTemperature())
}
