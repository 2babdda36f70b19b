package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/apichat/pkg/config"
	"github.com/ilkoid/apichat/pkg/openapi"
)

const testSpec = `
openapi: 3.0.3
info: {title: Locadora, version: "1"}
servers:
  - url: http://localhost:3001/
paths:
  /filmes:
    get:
      operationId: getMovies
      parameters:
        - {name: titulo, in: query, schema: {type: string}}
      responses:
        "200": {description: ok}
  /filmes/{id}:
    get:
      operationId: getMovie
      parameters:
        - {name: id, in: path, required: true, schema: {type: integer}}
      responses:
        "200": {description: ok}
`

func writeConfig(t *testing.T, apiSection string) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	specPath := filepath.Join(dir, "openapi.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(testSpec), 0o644))

	raw := `
models:
  default_chat: gemini
  definitions:
    gemini:
      provider: gemini
      model_name: gemini-2.0-flash
      api_key: test-key
      base_url: https://generativelanguage.googleapis.com/v1beta/openai/
api:
  spec: ` + specPath + "\n" + apiSection

	cfg, err := config.Parse([]byte(raw))
	require.NoError(t, err)
	return cfg
}

func TestInitialize_WiresComponents(t *testing.T) {
	cfg := writeConfig(t, "")

	c, err := Initialize(context.Background(), cfg)
	require.NoError(t, err)

	assert.Len(t, c.Operations, 2)
	assert.Equal(t, []string{"getMovie", "getMovies"}, c.ToolNames())
	assert.Equal(t, "gemini-2.0-flash", c.ModelName)
	assert.Equal(t, "http://localhost:3001", c.API.BaseURL(), "falls back to servers[0]")
	assert.Len(t, c.Orchestrator.Declarations(), 2)
	assert.Equal(t, 0, c.Sessions.Len())
}

func TestInitialize_ExplicitBaseURL(t *testing.T) {
	cfg := writeConfig(t, "  base_url: http://api.internal:8080\n")

	c, err := Initialize(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "http://api.internal:8080", c.API.BaseURL())
}

func TestInitialize_BadSpecIsFatal(t *testing.T) {
	cfg := writeConfig(t, "")
	cfg.API.Spec = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := Initialize(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, openapi.ErrSchema))
}

func TestInitialize_MissingModelKeyIsFatal(t *testing.T) {
	cfg := writeConfig(t, "")
	def := cfg.Models.Definitions["gemini"]
	def.APIKey = ""
	cfg.Models.Definitions["gemini"] = def

	_, err := Initialize(context.Background(), cfg)
	assert.True(t, errors.Is(err, config.ErrMissingAPIKey))
}

func TestInitialize_ModelCheckedBeforeSpecLoad(t *testing.T) {
	cfg := writeConfig(t, "")
	cfg.API.Spec = filepath.Join(t.TempDir(), "missing.yaml")
	def := cfg.Models.Definitions["gemini"]
	def.APIKey = ""
	cfg.Models.Definitions["gemini"] = def

	_, err := Initialize(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrMissingAPIKey))
	assert.False(t, errors.Is(err, openapi.ErrSchema))
}

func TestDefaultConfigPathFinder_Flag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	finder := &DefaultConfigPathFinder{ConfigFlag: path}
	assert.Equal(t, path, finder.FindConfigPath())
}
