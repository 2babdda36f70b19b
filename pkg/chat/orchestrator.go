// Package chat ведёт диалог: чередует ходы модели с реальными вызовами
// инструментов, пока модель не даст финальный текстовый ответ.
//
// Цикл одного сообщения:
//
//	AwaitingModelTurn ──(tool calls)──> DispatchingTools ──> AwaitingModelTurn
//	        │                                                      ...
//	        └──(text)──> Done
//
// Любая ошибка модели, неизвестный инструмент, превышение лимита раундов
// или дедлайна переводит сообщение в Failed. Ошибки самих вызовов backend
// не прерывают цикл: модель получает их как результат инструмента.
package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/ilkoid/apichat/pkg/config"
	"github.com/ilkoid/apichat/pkg/debug"
	"github.com/ilkoid/apichat/pkg/llm"
	"github.com/ilkoid/apichat/pkg/postprocess"
	"github.com/ilkoid/apichat/pkg/rest"
	"github.com/ilkoid/apichat/pkg/tools"
	"github.com/ilkoid/apichat/pkg/utils"
)

var (
	// ErrMaxRounds - модель продолжает запрашивать инструменты сверх лимита.
	ErrMaxRounds = errors.New("max tool rounds exceeded")

	// ErrSessionBusy - сессия уже обрабатывает сообщение.
	ErrSessionBusy = errors.New("session is busy")

	// ErrMessageTimeout - сообщение не уложилось в chat.message_timeout.
	ErrMessageTimeout = errors.New("message deadline exceeded")

	// ErrEmptyPrompt - пустое сообщение оператора.
	ErrEmptyPrompt = errors.New("empty prompt")
)

// ToolCatalog - то, что оркестратору нужно от реестра.
//
// Реализован *tools.Registry.
type ToolCatalog interface {
	Get(name string) (tools.Tool, error)
	All() iter.Seq[tools.ToolDefinition]
}

// Config - зависимости и параметры оркестратора.
type Config struct {
	Provider     llm.Provider
	Catalog      ToolCatalog
	SystemPrompt string // пусто - DefaultSystemPrompt
	Chat         config.ChatConfig
}

// Orchestrator обрабатывает сообщения сессий. Безопасен для
// конкурентного использования разными сессиями.
type Orchestrator struct {
	provider     llm.Provider
	catalog      ToolCatalog
	systemPrompt string
	declarations []tools.ToolDefinition
	cfg          config.ChatConfig
}

// CallRecord - один выполненный вызов инструмента.
type CallRecord struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Args     string        `json:"args"`
	Result   string        `json:"result"`
	Failed   bool          `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Reply - результат успешного сообщения.
type Reply struct {
	Text       string        // после post-processing
	Rounds     int           // раундов вызова инструментов
	ModelCalls int           // обращений к модели
	ToolCalls  []CallRecord  // в порядке запросов модели
	Duration   time.Duration // полное время сообщения
}

// New создаёт оркестратор. Декларации инструментов снимаются
// с каталога один раз.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("chat: provider is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("chat: tool catalog is required")
	}

	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}

	return &Orchestrator{
		provider:     cfg.Provider,
		catalog:      cfg.Catalog,
		systemPrompt: prompt,
		declarations: slices.Collect(cfg.Catalog.All()),
		cfg:          cfg.Chat.GetDefaults(),
	}, nil
}

// Declarations возвращает декларации, которые видит модель.
func (o *Orchestrator) Declarations() []tools.ToolDefinition {
	return slices.Clone(o.declarations)
}

// Send обрабатывает одно сообщение оператора в рамках сессии.
//
// Сообщения одной сессии сериализуются: при chat.reject_concurrent
// занятая сессия сразу возвращает ErrSessionBusy, иначе ждёт.
// Дедлайн сообщения отсчитывается с момента вызова и включает ожидание
// очереди; отмена ctx снимает сообщение с ожидания.
func (o *Orchestrator) Send(ctx context.Context, session *Session, prompt string) (Reply, error) {
	if prompt == "" {
		return Reply{}, ErrEmptyPrompt
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.cfg.MessageTimeout)
	defer cancel()

	if o.cfg.RejectConcurrent {
		if !session.tryAcquire() {
			return Reply{}, ErrSessionBusy
		}
	} else if err := session.acquire(ctx); err != nil {
		utils.Warn("Message dropped while waiting for session", "session_id", session.ID, "error", err)
		return Reply{}, deadline(ctx)
	}
	defer session.release()

	trace := o.newTrace(session.ID)
	trace.Start(prompt)

	reply, history, err := o.run(ctx, session, prompt, trace)
	reply.Duration = time.Since(start)
	o.saveTrace(trace, reply, err)
	if err != nil {
		utils.Error("Message failed",
			"session_id", session.ID,
			"model_calls", reply.ModelCalls,
			"rounds", reply.Rounds,
			"error", err,
			"duration_ms", reply.Duration.Milliseconds())
		return Reply{}, err
	}

	session.commit(history)
	reply.Text = postprocess.Process(reply.Text, session.Artifacts)

	utils.Info("Message completed",
		"session_id", session.ID,
		"model_calls", reply.ModelCalls,
		"rounds", reply.Rounds,
		"tool_calls", len(reply.ToolCalls),
		"duration_ms", reply.Duration.Milliseconds())
	return reply, nil
}

// run - цикл одного сообщения на рабочей копии истории.
func (o *Orchestrator) run(ctx context.Context, session *Session, prompt string, trace *debug.Recorder) (Reply, []llm.Message, error) {
	var reply Reply
	working := append(session.History(), llm.Message{Role: llm.RoleUser, Content: prompt})

	for {
		roundStart := time.Now()
		trace.StartRound(reply.ModelCalls + 1)

		// AwaitingModelTurn: ровно один вызов модели
		resp, err := o.generate(ctx, working)
		reply.ModelCalls++
		trace.RecordModelTurn(modelTurn(len(working)+1, resp, err, time.Since(roundStart)))
		if err != nil {
			return reply, nil, err
		}
		resp.Role = llm.RoleAssistant
		working = append(working, resp)

		if len(resp.ToolCalls) == 0 {
			trace.EndRound(time.Since(roundStart))
			reply.Text = resp.Content
			return reply, working, nil
		}

		if reply.Rounds >= o.cfg.MaxRounds {
			return reply, nil, fmt.Errorf("%w: limit %d", ErrMaxRounds, o.cfg.MaxRounds)
		}

		// DispatchingTools: сначала все имена, потом вызовы
		resolved := make([]tools.Tool, len(resp.ToolCalls))
		for i, tc := range resp.ToolCalls {
			tool, err := o.catalog.Get(tc.Name)
			if err != nil {
				utils.Warn("Model requested unknown tool", "session_id", session.ID, "tool", tc.Name)
				return reply, nil, err
			}
			resolved[i] = tool
		}

		records := o.dispatch(ctx, resp.ToolCalls, resolved)
		reply.Rounds++
		reply.ToolCalls = append(reply.ToolCalls, records...)

		for _, rec := range records {
			trace.RecordToolExecution(debug.ToolExecution{
				Name:     rec.Name,
				Args:     rec.Args,
				Result:   rec.Result,
				Duration: rec.Duration.Milliseconds(),
				Success:  !rec.Failed,
			})
			working = append(working, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: rec.ID,
				Name:       rec.Name,
				Content:    rec.Result,
			})
		}

		trace.EndRound(time.Since(roundStart))

		if err := deadline(ctx); err != nil {
			return reply, nil, err
		}
	}
}

// newTrace создаёт рекордер при заданном chat.trace_dir.
// Ошибка создания не мешает обработке сообщения.
func (o *Orchestrator) newTrace(sessionID string) *debug.Recorder {
	if o.cfg.TraceDir == "" {
		return nil
	}
	rec, err := debug.NewRecorder(debug.RecorderConfig{
		LogsDir:            o.cfg.TraceDir,
		IncludeToolArgs:    true,
		IncludeToolResults: true,
		MaxResultSize:      traceMaxResult,
	}, sessionID)
	if err != nil {
		utils.Warn("Trace disabled for message", "session_id", sessionID, "error", err)
		return nil
	}
	return rec
}

func (o *Orchestrator) saveTrace(trace *debug.Recorder, reply Reply, runErr error) {
	if trace == nil {
		return
	}
	path, err := trace.Finalize(reply.Text, runErr, reply.Duration)
	if err != nil {
		utils.Warn("Failed to save trace", "error", err)
		return
	}
	utils.Debug("Trace saved", "path", path)
}

// traceMaxResult - лимит длины результата инструмента в трейсе.
const traceMaxResult = 4096

func modelTurn(messages int, resp llm.Message, err error, took time.Duration) debug.ModelTurn {
	turn := debug.ModelTurn{
		MessagesCount: messages,
		Content:       resp.Content,
		Duration:      took.Milliseconds(),
	}
	for _, tc := range resp.ToolCalls {
		turn.ToolCalls = append(turn.ToolCalls, debug.ToolCallInfo{ID: tc.ID, Name: tc.Name, Args: tc.Args})
	}
	if err != nil {
		turn.Error = err.Error()
	}
	return turn
}

// generate вызывает модель с системной инструкцией и декларациями.
func (o *Orchestrator) generate(ctx context.Context, history []llm.Message) (llm.Message, error) {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: o.systemPrompt})
	messages = append(messages, history...)

	resp, err := o.provider.Generate(ctx, messages, o.declarations)
	if err != nil {
		if dlErr := deadline(ctx); dlErr != nil {
			return llm.Message{}, dlErr
		}
		return llm.Message{}, err
	}
	return resp, nil
}

// deadline превращает истёкший контекст сообщения в ErrMessageTimeout.
func deadline(ctx context.Context) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return fmt.Errorf("%w: %w", ErrMessageTimeout, ctx.Err())
	default:
		return ctx.Err()
	}
}

// dispatch выполняет вызовы и возвращает записи в порядке запросов.
func (o *Orchestrator) dispatch(ctx context.Context, calls []llm.ToolCall, resolved []tools.Tool) []CallRecord {
	records := make([]CallRecord, len(calls))

	if !*o.cfg.ParallelTools || len(calls) == 1 {
		for i, tc := range calls {
			records[i] = o.executeToolCall(ctx, tc, resolved[i])
		}
		return records
	}

	var wg sync.WaitGroup
	for i, tc := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			records[i] = o.executeToolCall(ctx, tc, resolved[i])
		}()
	}
	wg.Wait()
	return records
}

// executeToolCall выполняет один вызов с собственным timeout.
//
// Ошибка инструмента не возвращается: она становится payload
// {"error": {"type": ..., "message": ...}} для модели.
func (o *Orchestrator) executeToolCall(ctx context.Context, tc llm.ToolCall, tool tools.Tool) CallRecord {
	start := time.Now()
	rec := CallRecord{ID: tc.ID, Name: tc.Name, Args: tc.Args}

	toolCtx, cancel := context.WithTimeout(ctx, o.cfg.ToolTimeout)
	defer cancel()

	type execResult struct {
		output string
		err    error
	}
	resultChan := make(chan execResult, 1)

	go func() {
		out, err := tool.Execute(toolCtx, tc.Args)
		resultChan <- execResult{out, err}
	}()

	var err error
	select {
	case <-toolCtx.Done():
		err = toolCtx.Err()
	case res := <-resultChan:
		rec.Result, err = res.output, res.err
	}
	rec.Duration = time.Since(start)

	if err != nil {
		rec.Failed = true
		rec.Result = rest.ErrorPayload(err)
		utils.Warn("Tool call failed",
			"tool", tc.Name,
			"error", err,
			"duration_ms", rec.Duration.Milliseconds())
		return rec
	}

	if rec.Result == "" {
		rec.Result = "null"
	}
	utils.Debug("Tool call completed", "tool", tc.Name, "duration_ms", rec.Duration.Milliseconds())
	return rec
}
