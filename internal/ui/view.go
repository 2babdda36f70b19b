// Рендер

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m MainModel) View() string {
	if !m.ready {
		return "Initializing UI..."
	}

	state := "ready"
	if m.isProcessing {
		state = m.spinner.View() + " thinking"
	}
	status := fmt.Sprintf(" MODEL: %s | SESSION: %s | %s ", m.modelName, shortID(m.session.ID), state)

	header := headerStyle.
		Width(m.viewport.Width).
		Render(status)

	border := lipgloss.NewStyle().
		Foreground(grayColor).
		Width(m.viewport.Width).
		Render(strings.Repeat("─", max(m.viewport.Width, 1)))

	return fmt.Sprintf("%s\n%s\n%s\n%s",
		header,
		m.viewport.View(),
		border,
		m.textarea.View(),
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
