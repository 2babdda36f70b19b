package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder накапливает трейс одного сообщения и сохраняет его в JSON файл.
//
// Потокобезопасен: инструменты одного раунда записываются из разных горутин.
// Методы записи на nil *Recorder ничего не делают.
type Recorder struct {
	mu sync.Mutex

	config RecorderConfig
	trace  Trace

	// current - открытый раунд, nil между раундами
	current *Round

	visitedTools map[string]struct{}
	errors       []string
}

// RecorderConfig - настройки Recorder.
type RecorderConfig struct {
	// LogsDir - директория для трейсов, создаётся при необходимости
	LogsDir string

	IncludeToolArgs    bool
	IncludeToolResults bool

	// MaxResultSize - лимит длины результата инструмента, 0 - без лимита
	MaxResultSize int
}

// NewRecorder создаёт Recorder для сообщения сессии sessionID.
func NewRecorder(cfg RecorderConfig, sessionID string) (*Recorder, error) {
	if cfg.LogsDir != "" {
		if err := os.MkdirAll(cfg.LogsDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create trace directory: %w", err)
		}
	}

	now := time.Now()
	runID := fmt.Sprintf("trace_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8])

	return &Recorder{
		config: cfg,
		trace: Trace{
			RunID:     runID,
			SessionID: sessionID,
			Timestamp: now,
		},
		visitedTools: make(map[string]struct{}),
	}, nil
}

// Start фиксирует сообщение оператора.
func (r *Recorder) Start(prompt string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trace.Prompt = prompt
	r.trace.Timestamp = time.Now()
}

// StartRound открывает раунд с номером num (с 1).
func (r *Recorder) StartRound(num int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.current = &Round{Number: num}
}

// RecordModelTurn записывает вызов модели в текущий раунд.
func (r *Recorder) RecordModelTurn(turn ModelTurn) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return
	}
	r.current.Model = turn
	r.current.IsFinal = turn.Error == "" && len(turn.ToolCalls) == 0
	if turn.Error != "" {
		r.errors = append(r.errors, "model: "+turn.Error)
	}
}

// RecordToolExecution записывает выполнение инструмента в текущий раунд.
func (r *Recorder) RecordToolExecution(exec ToolExecution) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return
	}

	if !r.config.IncludeToolArgs {
		exec.Args = ""
	}
	if !r.config.IncludeToolResults {
		exec.Result = ""
	} else if r.config.MaxResultSize > 0 && len(exec.Result) > r.config.MaxResultSize {
		exec.Result = exec.Result[:r.config.MaxResultSize] + "... (truncated)"
		exec.ResultTruncated = true
	}

	r.current.Tools = append(r.current.Tools, exec)
	r.visitedTools[exec.Name] = struct{}{}

	if !exec.Success {
		r.errors = append(r.errors, "tool "+exec.Name+" failed")
	}
}

// EndRound закрывает текущий раунд.
func (r *Recorder) EndRound(duration time.Duration) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		r.current.Duration = duration.Milliseconds()
		r.trace.Rounds = append(r.trace.Rounds, *r.current)
		r.current = nil
	}
}

// Finalize сохраняет трейс и возвращает путь к файлу.
//
// Незакрытый раунд (сообщение прервано ошибкой) тоже попадает в трейс.
func (r *Recorder) Finalize(reply string, runErr error, duration time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		r.trace.Rounds = append(r.trace.Rounds, *r.current)
		r.current = nil
	}

	r.trace.Reply = reply
	r.trace.Duration = duration.Milliseconds()
	if runErr != nil {
		r.trace.Error = runErr.Error()
	}
	r.buildSummary()

	data, err := json.MarshalIndent(r.trace, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal trace: %w", err)
	}

	path := filepath.Join(r.config.LogsDir, r.trace.RunID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write trace: %w", err)
	}
	return path, nil
}

func (r *Recorder) buildSummary() {
	summary := Summary{Errors: r.errors}

	for name := range r.visitedTools {
		summary.VisitedTools = append(summary.VisitedTools, name)
	}
	slices.Sort(summary.VisitedTools)

	for _, round := range r.trace.Rounds {
		summary.TotalModelCalls++
		summary.TotalModelDuration += round.Model.Duration
		for _, tool := range round.Tools {
			summary.TotalToolCalls++
			summary.TotalToolDuration += tool.Duration
		}
	}

	r.trace.Summary = summary
}

// RunID возвращает идентификатор трейса.
func (r *Recorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trace.RunID
}
