// Package ui реализует терминальный чат (Bubble Tea) поверх оркестратора.
//
// Это второй входной интерфейс к тому же циклу, что и HTTP сервер:
// одна сессия на запуск, ответы и вызовы инструментов печатаются в лог.
package ui

import (
	"context"
	"strconv"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ilkoid/apichat/pkg/chat"
)

// Sender - то, что умеет обработать сообщение пользователя (chat.Orchestrator).
type Sender interface {
	Send(ctx context.Context, session *chat.Session, prompt string) (chat.Reply, error)
}

// replyMsg - результат Send, прилетает асинхронно.
type replyMsg struct {
	reply chat.Reply
	err   error
}

// MainModel - модель UI чата.
//
// logLines хранит исходные строки без переноса: при изменении ширины
// окна лог переносится заново.
type MainModel struct {
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	sender  Sender
	session *chat.Session
	ctx     context.Context

	modelName string
	toolNames []string

	logLines     []string
	isProcessing bool
	ready        bool
}

// InitialModel создаёт начальное состояние UI.
func InitialModel(ctx context.Context, sender Sender, modelName string, toolNames []string) MainModel {
	ta := textarea.New()
	ta.Placeholder = "Pergunte algo sobre a locadora... (/tools, /reset, Esc para sair)"
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 2000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(spinnerColor)

	m := MainModel{
		viewport:  viewport.New(0, 0),
		textarea:  ta,
		spinner:   sp,
		sender:    sender,
		session:   chat.NewSession(""),
		ctx:       ctx,
		modelName: modelName,
		toolNames: toolNames,
	}
	m.appendLog(systemMsgStyle("apichat ready."))
	m.appendLog(systemMsgStyle("Tools loaded: ") + strconv.Itoa(len(toolNames)))
	return m
}

// Init запускается один раз при старте программы.
func (m MainModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// Run запускает TUI и блокируется до выхода пользователя или отмены ctx.
func Run(ctx context.Context, sender Sender, modelName string, toolNames []string) error {
	p := tea.NewProgram(
		InitialModel(ctx, sender, modelName, toolNames),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}
