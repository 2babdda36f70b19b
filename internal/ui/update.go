// Логика - обрабатывает нажатия клавиш и ответы оркестратора.

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wrap"

	"github.com/ilkoid/apichat/pkg/chat"
)

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		headerHeight := 1
		footerHeight := m.textarea.Height() + 2

		// Минимум 1 строка: при нулевой высоте viewport перестаёт скроллиться
		vpHeight := max(msg.Height-headerHeight-footerHeight, 1)

		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
		m.textarea.SetWidth(msg.Width)
		m.ready = true
		m.reflow()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" || m.isProcessing {
				return m, nil
			}
			m.textarea.Reset()
			return m.handleInput(input)
		}

	case spinner.TickMsg:
		var spCmd tea.Cmd
		m.spinner, spCmd = m.spinner.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd, spCmd)

	case replyMsg:
		m.isProcessing = false
		if msg.err != nil {
			m.appendLog(errorMsgStyle("ERROR: ") + msg.err.Error())
		} else {
			for _, line := range formatReply(msg.reply) {
				m.appendLog(line)
			}
		}
		m.textarea.Focus()
	}

	return m, tea.Batch(tiCmd, vpCmd)
}

// handleInput разбирает локальные команды или отправляет сообщение модели.
func (m MainModel) handleInput(input string) (tea.Model, tea.Cmd) {
	switch input {
	case "/tools":
		m.appendLog(systemMsgStyle("Tools: ") + strings.Join(m.toolNames, ", "))
		return m, nil

	case "/reset":
		m.session = chat.NewSession("")
		m.appendLog(systemMsgStyle("Session reset."))
		return m, nil
	}

	m.appendLog(userMsgStyle("USER > ") + input)
	m.isProcessing = true
	return m, m.send(input)
}

// send вызывает оркестратор в отдельной горутине Bubble Tea.
func (m MainModel) send(prompt string) tea.Cmd {
	sender, session, ctx := m.sender, m.session, m.ctx
	return func() tea.Msg {
		reply, err := sender.Send(ctx, session, prompt)
		return replyMsg{reply: reply, err: err}
	}
}

// formatReply превращает ответ в строки лога: сначала вызовы, потом текст.
func formatReply(reply chat.Reply) []string {
	lines := make([]string, 0, len(reply.ToolCalls)+1)
	for _, call := range reply.ToolCalls {
		status := "ok"
		if call.Failed {
			status = "failed"
		}
		lines = append(lines, toolMsgStyle(fmt.Sprintf("  → %s %s (%s, %dms)",
			call.Name, call.Args, status, call.Duration.Milliseconds())))
	}
	lines = append(lines, systemMsgStyle("AI > ")+reply.Text)
	return lines
}

// appendLog добавляет строку в лог и прокручивает вниз.
func (m *MainModel) appendLog(line string) {
	m.logLines = append(m.logLines, line)
	m.reflow()
	m.viewport.GotoBottom()
}

// reflow переносит исходные строки лога по текущей ширине.
func (m *MainModel) reflow() {
	if m.viewport.Width <= 0 {
		m.viewport.SetContent(strings.Join(m.logLines, "\n"))
		return
	}
	wrapped := make([]string, 0, len(m.logLines))
	for _, line := range m.logLines {
		wrapped = append(wrapped, wrap.String(line, m.viewport.Width))
	}
	m.viewport.SetContent(strings.Join(wrapped, "\n"))
}
