package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
models:
  default_chat: gemini
  definitions:
    gemini:
      provider: gemini
      model_name: gemini-2.0-flash
      api_key: ${APICHAT_TEST_KEY}
      base_url: https://generativelanguage.googleapis.com/v1beta/openai/
api:
  spec: ./openapi.yaml
  base_url: http://localhost:3001
chat:
  max_rounds: 4
  message_timeout: 45s
`

func TestParse_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("APICHAT_TEST_KEY", "secret")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	model, err := cfg.GetChatModel("")
	require.NoError(t, err)
	assert.Equal(t, "secret", model.APIKey)
	assert.Equal(t, "gemini-2.0-flash", model.ModelName)

	assert.Equal(t, 4, cfg.Chat.MaxRounds)
	assert.Equal(t, 45*time.Second, cfg.Chat.MessageTimeout)
	assert.Equal(t, 30*time.Second, cfg.Chat.ToolTimeout)
	require.NotNil(t, cfg.Chat.ParallelTools)
	assert.True(t, *cfg.Chat.ParallelTools)

	assert.Equal(t, "30s", cfg.API.Timeout)
	assert.Equal(t, ":3000", cfg.Server.Listen)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.App.LogLevel)
}

func TestGetChatModel_MissingKeyIsFatal(t *testing.T) {
	t.Setenv("APICHAT_TEST_KEY", "")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	_, err = cfg.GetChatModel("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "no default model",
			yaml: "models:\n  definitions: {}\n",
		},
		{
			name: "default model not defined",
			yaml: "models:\n  default_chat: missing\n  definitions:\n    other:\n      api_key: x\n",
		},
		{
			name: "bad api timeout",
			yaml: "models:\n  default_chat: m\n  definitions:\n    m:\n      api_key: x\napi:\n  timeout: soon\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("APICHAT_DOTENV_KEY=from-dotenv\n"), 0o644))
	cfgYAML := "models:\n  default_chat: m\n  definitions:\n    m:\n      api_key: ${APICHAT_DOTENV_KEY}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfgYAML), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("APICHAT_DOTENV_KEY") })

	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)

	model, err := cfg.GetChatModel("m")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", model.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
