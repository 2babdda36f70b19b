package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePrompt(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "system.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSystemPrompt_Renders(t *testing.T) {
	path := writePrompt(t, `
messages:
  - role: system
    content: |
      Você é o assistente da locadora ({{.BaseURL}}).
      Ferramentas:{{range .Tools}} {{.}}{{end}}
`)

	got, err := LoadSystemPrompt(path, Data{BaseURL: "http://localhost:3001", Tools: []string{"getMovies", "getRentals"}})
	require.NoError(t, err)
	assert.Equal(t, "Você é o assistente da locadora (http://localhost:3001).\nFerramentas: getMovies getRentals\n", got)
}

func TestLoadSystemPrompt_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no system message", "messages:\n  - role: user\n    content: oi\n"},
		{"bad template", "messages:\n  - role: system\n    content: \"{{.Nope\"\n"},
		{"unknown field", "messages:\n  - role: system\n    content: \"{{.Nope}}\"\n"},
		{"bad yaml", "messages: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSystemPrompt(writePrompt(t, tt.content), Data{})
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt file not found")
}
