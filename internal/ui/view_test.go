package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/apichat/pkg/chat"
)

// fakeSender запоминает промпты и отвечает заготовкой.
type fakeSender struct {
	prompts  []string
	sessions []*chat.Session
	reply    chat.Reply
	err      error
}

func (f *fakeSender) Send(_ context.Context, session *chat.Session, prompt string) (chat.Reply, error) {
	f.prompts = append(f.prompts, prompt)
	f.sessions = append(f.sessions, session)
	return f.reply, f.err
}

func sized(t *testing.T, m MainModel) MainModel {
	t.Helper()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(MainModel)
}

func submit(t *testing.T, m MainModel, input string) (MainModel, tea.Cmd) {
	t.Helper()
	m.textarea.SetValue(input)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return updated.(MainModel), cmd
}

func logText(m MainModel) string {
	return strings.Join(m.logLines, "\n")
}

func TestView_NotReadyUntilSized(t *testing.T) {
	m := InitialModel(context.Background(), &fakeSender{}, "gemini-2.0-flash", nil)
	assert.Equal(t, "Initializing UI...", m.View())

	m = sized(t, m)
	view := m.View()
	assert.Contains(t, view, "MODEL: gemini-2.0-flash")
	assert.Contains(t, view, "ready")
}

func TestUpdate_SendsPromptAndShowsReply(t *testing.T) {
	sender := &fakeSender{reply: chat.Reply{
		Text: "Há 3 filmes de drama disponíveis.",
		ToolCalls: []chat.CallRecord{
			{Name: "getMovies", Args: `{"genero":"Drama"}`, Duration: 15 * time.Millisecond},
		},
	}}
	m := sized(t, InitialModel(context.Background(), sender, "test", []string{"getMovies"}))

	m, cmd := submit(t, m, "Quais dramas estão disponíveis?")
	require.NotNil(t, cmd)
	assert.True(t, m.isProcessing)
	assert.Empty(t, m.textarea.Value())

	// Повторный Enter во время обработки игнорируется
	m, again := submit(t, m, "outra pergunta")
	assert.Nil(t, again)

	msg := cmd()
	updated, _ := m.Update(msg)
	m = updated.(MainModel)

	assert.False(t, m.isProcessing)
	assert.Equal(t, []string{"Quais dramas estão disponíveis?"}, sender.prompts)
	assert.Same(t, m.session, sender.sessions[0])

	log := logText(m)
	assert.Contains(t, log, "Quais dramas estão disponíveis?")
	assert.Contains(t, log, `getMovies {"genero":"Drama"} (ok, 15ms)`)
	assert.Contains(t, log, "Há 3 filmes de drama disponíveis.")
}

func TestUpdate_ShowsError(t *testing.T) {
	sender := &fakeSender{err: errors.New("model unavailable")}
	m := sized(t, InitialModel(context.Background(), sender, "test", nil))

	m, cmd := submit(t, m, "oi")
	require.NotNil(t, cmd)
	updated, _ := m.Update(cmd())
	m = updated.(MainModel)

	assert.Contains(t, logText(m), "model unavailable")
	assert.False(t, m.isProcessing)
}

func TestUpdate_LocalCommands(t *testing.T) {
	sender := &fakeSender{}
	m := sized(t, InitialModel(context.Background(), sender, "test", []string{"getMovies", "getRentals"}))
	before := m.session

	m, cmd := submit(t, m, "/tools")
	assert.Nil(t, cmd)
	assert.Contains(t, logText(m), "getMovies, getRentals")

	m, cmd = submit(t, m, "/reset")
	assert.Nil(t, cmd)
	assert.NotSame(t, before, m.session)
	assert.NotEqual(t, before.ID, m.session.ID)

	assert.Empty(t, sender.prompts, "local commands never reach the model")
}

func TestFormatReply_MarksFailedCalls(t *testing.T) {
	lines := formatReply(chat.Reply{
		Text:      "Não encontrei esse filme.",
		ToolCalls: []chat.CallRecord{{Name: "getMovie", Args: `{"id":99}`, Failed: true}},
	})
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "getMovie")
	assert.Contains(t, lines[0], "failed")
	assert.Contains(t, lines[1], "Não encontrei esse filme.")
}

func TestReflow_WrapsToWidth(t *testing.T) {
	m := InitialModel(context.Background(), &fakeSender{}, "test", nil)
	m.appendLog(strings.Repeat("palavra ", 40))

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 30, Height: 20})
	m = updated.(MainModel)

	for _, line := range strings.Split(m.viewport.View(), "\n") {
		assert.LessOrEqual(t, len([]rune(stripANSI(line))), 30)
	}
}

// stripANSI убирает escape последовательности цветов.
func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			inEscape = false
		case !inEscape:
			b.WriteRune(r)
		}
	}
	return b.String()
}
