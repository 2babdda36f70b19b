package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/apichat/pkg/config"
	"github.com/ilkoid/apichat/pkg/debug"
	"github.com/ilkoid/apichat/pkg/llm"
	"github.com/ilkoid/apichat/pkg/rest"
	"github.com/ilkoid/apichat/pkg/tools"
)

// MockLLMProvider - скриптованная модель.
type MockLLMProvider struct {
	mu sync.Mutex
	// Responses - последовательность ответов для возврата
	Responses []llm.Message
	// Calls - сообщения каждого вызова Generate
	Calls [][]llm.Message
	// LastTools - последние tools definitions
	LastTools []tools.ToolDefinition
	// Block - ждать отмены контекста вместо ответа
	Block bool
	// Repeat - если ответы закончились, повторять последний
	Repeat bool
}

func (m *MockLLMProvider) Generate(ctx context.Context, messages []llm.Message, toolsArgs ...any) (llm.Message, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, append([]llm.Message(nil), messages...))
	if len(toolsArgs) > 0 {
		if defs, ok := toolsArgs[0].([]tools.ToolDefinition); ok {
			m.LastTools = defs
		}
	}
	n := len(m.Calls)
	block := m.Block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return llm.Message{}, &llm.ModelServiceError{Model: "mock", Err: ctx.Err()}
	}

	if n > len(m.Responses) {
		if m.Repeat && len(m.Responses) > 0 {
			return m.Responses[len(m.Responses)-1], nil
		}
		return llm.Message{}, &llm.ModelServiceError{Model: "mock", Err: errors.New("unexpected call: no more responses")}
	}
	return m.Responses[n-1], nil
}

func (m *MockLLMProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockLLMProvider) LastMessages() []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[len(m.Calls)-1]
}

// MockTool - инструмент с подменяемой логикой.
type MockTool struct {
	Name        string
	ExecuteFunc func(ctx context.Context, argsJSON string) (string, error)
	calls       atomic.Int32
}

func (m *MockTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        m.Name,
		Description: "Mock tool for testing",
		Parameters:  tools.JSONSchema{"type": "object", "properties": map[string]any{}},
	}
}

func (m *MockTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	m.calls.Add(1)
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, argsJSON)
	}
	return `{"result": "mock success"}`, nil
}

func toolCalls(calls ...llm.ToolCall) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, ToolCalls: calls}
}

func text(s string) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, Content: s}
}

func newOrchestrator(t *testing.T, provider llm.Provider, chat config.ChatConfig, ts ...tools.Tool) *Orchestrator {
	t.Helper()
	reg := tools.NewRegistry()
	for _, tool := range ts {
		require.NoError(t, reg.Register(tool))
	}
	reg.Freeze()

	o, err := New(Config{Provider: provider, Catalog: reg, Chat: chat})
	require.NoError(t, err)
	return o
}

func TestSend_PlainAnswer(t *testing.T) {
	provider := &MockLLMProvider{Responses: []llm.Message{text("Olá! Como posso ajudar?")}}
	o := newOrchestrator(t, provider, config.ChatConfig{}, &MockTool{Name: "getMovies"})
	session := NewSession("")

	reply, err := o.Send(context.Background(), session, "oi")
	require.NoError(t, err)

	assert.Equal(t, "Olá! Como posso ajudar?", reply.Text)
	assert.Equal(t, 1, reply.ModelCalls)
	assert.Equal(t, 0, reply.Rounds)

	first := provider.Calls[0]
	assert.Equal(t, llm.RoleSystem, first[0].Role)
	assert.Equal(t, DefaultSystemPrompt, first[0].Content)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "oi"}, first[1])
	require.Len(t, provider.LastTools, 1)
	assert.Equal(t, "getMovies", provider.LastTools[0].Name)

	assert.Len(t, session.History(), 2)
}

func TestSend_NRoundsNPlusOneModelCalls(t *testing.T) {
	for _, rounds := range []int{1, 2, 3} {
		t.Run(fmt.Sprintf("%d rounds", rounds), func(t *testing.T) {
			var responses []llm.Message
			for i := range rounds {
				responses = append(responses, toolCalls(llm.ToolCall{ID: fmt.Sprintf("call_%d", i), Name: "getMovies", Args: `{}`}))
			}
			responses = append(responses, text("Temos 100 filmes."))

			provider := &MockLLMProvider{Responses: responses}
			tool := &MockTool{Name: "getMovies"}
			o := newOrchestrator(t, provider, config.ChatConfig{}, tool)

			reply, err := o.Send(context.Background(), NewSession(""), "quantos filmes?")
			require.NoError(t, err)

			assert.Equal(t, "Temos 100 filmes.", reply.Text)
			assert.Equal(t, rounds, reply.Rounds)
			assert.Equal(t, rounds+1, reply.ModelCalls)
			assert.Equal(t, rounds+1, provider.CallCount())
			assert.Equal(t, int32(rounds), tool.calls.Load())
		})
	}
}

func TestSend_TwoCallsBatchedInRequestOrder(t *testing.T) {
	provider := &MockLLMProvider{Responses: []llm.Message{
		toolCalls(
			llm.ToolCall{ID: "call_a", Name: "getMovies", Args: `{"titulo":"Dune"}`},
			llm.ToolCall{ID: "call_b", Name: "getUsers", Args: `{}`},
		),
		text("Pronto."),
	}}

	// Первый вызов медленнее второго: порядок не должен зависеть от времени завершения
	slow := &MockTool{Name: "getMovies", ExecuteFunc: func(ctx context.Context, _ string) (string, error) {
		time.Sleep(30 * time.Millisecond)
		return `[{"id":1}]`, nil
	}}
	fast := &MockTool{Name: "getUsers", ExecuteFunc: func(ctx context.Context, _ string) (string, error) {
		return `[{"id":7}]`, nil
	}}
	o := newOrchestrator(t, provider, config.ChatConfig{}, slow, fast)

	reply, err := o.Send(context.Background(), NewSession(""), "filmes e clientes")
	require.NoError(t, err)
	assert.Equal(t, 2, reply.ModelCalls)
	assert.Equal(t, 1, reply.Rounds)

	followUp := provider.LastMessages()
	require.GreaterOrEqual(t, len(followUp), 2)
	results := followUp[len(followUp)-2:]

	assert.Equal(t, llm.Message{Role: llm.RoleTool, ToolCallID: "call_a", Name: "getMovies", Content: `[{"id":1}]`}, results[0])
	assert.Equal(t, llm.Message{Role: llm.RoleTool, ToolCallID: "call_b", Name: "getUsers", Content: `[{"id":7}]`}, results[1])

	require.Len(t, reply.ToolCalls, 2)
	assert.Equal(t, "call_a", reply.ToolCalls[0].ID)
	assert.Equal(t, "call_b", reply.ToolCalls[1].ID)
}

func TestSend_SequentialDispatch(t *testing.T) {
	parallel := false
	var order []string
	var mu sync.Mutex
	record := func(name string) func(context.Context, string) (string, error) {
		return func(context.Context, string) (string, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return `{}`, nil
		}
	}

	provider := &MockLLMProvider{Responses: []llm.Message{
		toolCalls(llm.ToolCall{ID: "1", Name: "b"}, llm.ToolCall{ID: "2", Name: "a"}),
		text("ok"),
	}}
	o := newOrchestrator(t, provider, config.ChatConfig{ParallelTools: &parallel},
		&MockTool{Name: "a", ExecuteFunc: record("a")},
		&MockTool{Name: "b", ExecuteFunc: record("b")},
	)

	_, err := o.Send(context.Background(), NewSession(""), "go")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, order)
}

func TestSend_UnknownToolLeavesSessionUsable(t *testing.T) {
	provider := &MockLLMProvider{Responses: []llm.Message{
		toolCalls(
			llm.ToolCall{ID: "1", Name: "getMovies"},
			llm.ToolCall{ID: "2", Name: "launchRockets"},
		),
		text("Segunda mensagem ok."),
	}}
	known := &MockTool{Name: "getMovies"}
	o := newOrchestrator(t, provider, config.ChatConfig{}, known)
	session := NewSession("s1")

	_, err := o.Send(context.Background(), session, "primeira")
	require.Error(t, err)
	assert.True(t, errors.Is(err, tools.ErrUnknownTool))
	assert.Equal(t, int32(0), known.calls.Load(), "no call dispatched when any name is unknown")
	assert.Empty(t, session.History(), "failed message leaves session unchanged")

	reply, err := o.Send(context.Background(), session, "segunda")
	require.NoError(t, err)
	assert.Equal(t, "Segunda mensagem ok.", reply.Text)

	history := session.History()
	require.Len(t, history, 2)
	assert.Equal(t, "segunda", history[0].Content)
}

func TestSend_RemoteFailureBecomesPayload(t *testing.T) {
	provider := &MockLLMProvider{Responses: []llm.Message{
		toolCalls(llm.ToolCall{ID: "1", Name: "getMovie", Args: `{"id": 999}`}),
		text("Esse filme não existe."),
	}}
	failing := &MockTool{Name: "getMovie", ExecuteFunc: func(context.Context, string) (string, error) {
		return "", &rest.RemoteCallError{Operation: "getMovie", Type: rest.ErrNotFound, Status: 404}
	}}
	o := newOrchestrator(t, provider, config.ChatConfig{}, failing)

	reply, err := o.Send(context.Background(), NewSession(""), "filme 999")
	require.NoError(t, err)
	assert.Equal(t, "Esse filme não existe.", reply.Text)

	require.Len(t, reply.ToolCalls, 1)
	assert.True(t, reply.ToolCalls[0].Failed)

	last := provider.LastMessages()
	payload := last[len(last)-1]
	assert.Equal(t, llm.RoleTool, payload.Role)
	assert.JSONEq(t, `{"error":{"type":"not_found","message":"The requested record does not exist."}}`, payload.Content)
}

func TestSend_MaxRounds(t *testing.T) {
	provider := &MockLLMProvider{
		Responses: []llm.Message{toolCalls(llm.ToolCall{ID: "x", Name: "getMovies"})},
		Repeat:    true,
	}
	o := newOrchestrator(t, provider, config.ChatConfig{MaxRounds: 3}, &MockTool{Name: "getMovies"})
	session := NewSession("")

	_, err := o.Send(context.Background(), session, "loop")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMaxRounds))
	assert.Equal(t, 4, provider.CallCount())
	assert.Empty(t, session.History())
}

func TestSend_MessageTimeout(t *testing.T) {
	provider := &MockLLMProvider{Block: true}
	o := newOrchestrator(t, provider, config.ChatConfig{MessageTimeout: 30 * time.Millisecond})

	_, err := o.Send(context.Background(), NewSession(""), "demora")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMessageTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSend_ToolTimeoutBecomesPayload(t *testing.T) {
	provider := &MockLLMProvider{Responses: []llm.Message{
		toolCalls(llm.ToolCall{ID: "1", Name: "slow"}),
		text("O sistema demorou a responder."),
	}}
	slow := &MockTool{Name: "slow", ExecuteFunc: func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	o := newOrchestrator(t, provider, config.ChatConfig{ToolTimeout: 20 * time.Millisecond}, slow)

	reply, err := o.Send(context.Background(), NewSession(""), "x")
	require.NoError(t, err)
	require.Len(t, reply.ToolCalls, 1)
	assert.JSONEq(t, `{"error":{"type":"timeout","message":"The operation did not finish in time."}}`, reply.ToolCalls[0].Result)
}

func TestSend_ModelErrorAborts(t *testing.T) {
	provider := &MockLLMProvider{}
	o := newOrchestrator(t, provider, config.ChatConfig{})

	_, err := o.Send(context.Background(), NewSession(""), "x")
	assert.True(t, errors.Is(err, llm.ErrModelService))
}

func TestSend_EmptyPrompt(t *testing.T) {
	o := newOrchestrator(t, &MockLLMProvider{}, config.ChatConfig{})
	_, err := o.Send(context.Background(), NewSession(""), "")
	assert.True(t, errors.Is(err, ErrEmptyPrompt))
}

func TestSend_BusySession(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	provider := &MockLLMProvider{Responses: []llm.Message{
		toolCalls(llm.ToolCall{ID: "1", Name: "wait"}),
		text("feito"),
	}}
	waiting := &MockTool{Name: "wait", ExecuteFunc: func(context.Context, string) (string, error) {
		close(started)
		<-release
		return `{}`, nil
	}}
	o := newOrchestrator(t, provider, config.ChatConfig{RejectConcurrent: true}, waiting)
	session := NewSession("")

	done := make(chan error, 1)
	go func() {
		_, err := o.Send(context.Background(), session, "primeira")
		done <- err
	}()

	<-started
	_, err := o.Send(context.Background(), session, "segunda")
	assert.True(t, errors.Is(err, ErrSessionBusy))

	close(release)
	require.NoError(t, <-done)
}

func TestSend_QueuedMessageHonoursCallerDeadline(t *testing.T) {
	provider := &MockLLMProvider{Block: true}
	o := newOrchestrator(t, provider, config.ChatConfig{MessageTimeout: 2 * time.Second})
	session := NewSession("")

	done := make(chan error, 1)
	go func() {
		_, err := o.Send(context.Background(), session, "primeira")
		done <- err
	}()
	require.Eventually(t, func() bool { return provider.CallCount() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := o.Send(ctx, session, "segunda")
	assert.Less(t, time.Since(start), time.Second, "queued message must not wait for the first one")
	assert.True(t, errors.Is(err, ErrMessageTimeout))
	assert.Equal(t, 1, provider.CallCount(), "queued message never reaches the model")

	require.Error(t, <-done)
}

func TestSend_QueuedMessageCancelled(t *testing.T) {
	provider := &MockLLMProvider{Block: true}
	o := newOrchestrator(t, provider, config.ChatConfig{MessageTimeout: 2 * time.Second})
	session := NewSession("")

	firstCtx, stopFirst := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.Send(firstCtx, session, "primeira")
		done <- err
	}()
	require.Eventually(t, func() bool { return provider.CallCount() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	queued := make(chan error, 1)
	go func() {
		_, err := o.Send(ctx, session, "segunda")
		queued <- err
	}()
	cancel()

	select {
	case err := <-queued:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("cancelled message still waiting for the session")
	}

	stopFirst()
	require.Error(t, <-done)
}

func TestSend_ChartIDsPerSession(t *testing.T) {
	chart := text("```html\n<div id=\"graph_app\"><canvas id=\"canvas_app\"></canvas></div>\n```")
	provider := &MockLLMProvider{Responses: []llm.Message{chart}, Repeat: true}
	o := newOrchestrator(t, provider, config.ChatConfig{})

	a, b := NewSession("a"), NewSession("b")

	r1, err := o.Send(context.Background(), a, "gráfico")
	require.NoError(t, err)
	r2, err := o.Send(context.Background(), a, "outro gráfico")
	require.NoError(t, err)
	r3, err := o.Send(context.Background(), b, "gráfico")
	require.NoError(t, err)

	assert.Contains(t, r1.Text, `id="graph1"`)
	assert.Contains(t, r2.Text, `id="graph2"`)
	assert.Contains(t, r3.Text, `id="graph1"`)
	assert.NotContains(t, r1.Text, "```")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Catalog: tools.NewRegistry()})
	assert.Error(t, err)

	_, err = New(Config{Provider: &MockLLMProvider{}})
	assert.Error(t, err)

	o, err := New(Config{Provider: &MockLLMProvider{}, Catalog: tools.NewRegistry(), SystemPrompt: "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", o.systemPrompt)
	assert.Equal(t, 8, o.cfg.MaxRounds)
}

func TestSend_WritesTrace(t *testing.T) {
	dir := t.TempDir()
	provider := &MockLLMProvider{Responses: []llm.Message{
		toolCalls(llm.ToolCall{ID: "1", Name: "getMovies", Args: `{"genero":"Drama"}`}),
		text("Achei um filme."),
	}}
	o := newOrchestrator(t, provider, config.ChatConfig{TraceDir: dir}, &MockTool{Name: "getMovies"})

	_, err := o.Send(context.Background(), NewSession("s1"), "dramas?")
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(dir, "trace_*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	var trace debug.Trace
	require.NoError(t, json.Unmarshal(data, &trace))

	assert.Equal(t, "s1", trace.SessionID)
	assert.Equal(t, "dramas?", trace.Prompt)
	assert.Equal(t, "Achei um filme.", trace.Reply)
	require.Len(t, trace.Rounds, 2)
	assert.Equal(t, 2, trace.Rounds[0].Model.MessagesCount)
	require.Len(t, trace.Rounds[0].Tools, 1)
	assert.Equal(t, `{"result": "mock success"}`, trace.Rounds[0].Tools[0].Result)
	assert.True(t, trace.Rounds[1].IsFinal)
	assert.Equal(t, 2, trace.Summary.TotalModelCalls)
}
