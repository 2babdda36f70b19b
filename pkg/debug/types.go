// Package debug записывает трейсы обработки сообщений чата в JSON файлы.
//
// Один файл на одно сообщение оператора: вызовы модели, вызовы
// инструментов, длительности и ошибки.
package debug

import "time"

// Trace - полный трейс одного сообщения.
type Trace struct {
	RunID     string    `json:"run_id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Prompt    string    `json:"prompt"`

	// Duration - общая длительность в миллисекундах
	Duration int64 `json:"duration_ms"`

	Rounds  []Round `json:"rounds"`
	Summary Summary `json:"summary"`

	// Reply - финальный ответ модели до post-processing
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// Round - один ход модели и инструменты, которые он запросил.
type Round struct {
	Number int `json:"round"`

	// Duration - длительность раунда в миллисекундах
	Duration int64 `json:"duration_ms"`

	Model ModelTurn       `json:"model"`
	Tools []ToolExecution `json:"tools,omitempty"`

	// IsFinal - true для хода без вызовов инструментов
	IsFinal bool `json:"is_final,omitempty"`
}

// ModelTurn описывает один вызов модели.
type ModelTurn struct {
	MessagesCount int            `json:"messages_count"`
	Content       string         `json:"content,omitempty"`
	ToolCalls     []ToolCallInfo `json:"tool_calls,omitempty"`
	Duration      int64          `json:"duration_ms"`
	Error         string         `json:"error,omitempty"`
}

// ToolCallInfo - вызов инструмента, запрошенный моделью.
type ToolCallInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args string `json:"args"`
}

// ToolExecution описывает выполнение одного инструмента.
type ToolExecution struct {
	Name string `json:"name"`

	// Args и Result могут быть опущены или обрезаны по RecorderConfig
	Args            string `json:"args,omitempty"`
	Result          string `json:"result,omitempty"`
	ResultTruncated bool   `json:"result_truncated,omitempty"`

	Duration int64 `json:"duration_ms"`
	Success  bool  `json:"success"`
}

// Summary - агрегированная статистика сообщения.
type Summary struct {
	TotalModelCalls    int      `json:"total_model_calls"`
	TotalToolCalls     int      `json:"total_tool_calls"`
	TotalModelDuration int64    `json:"total_model_duration_ms"`
	TotalToolDuration  int64    `json:"total_tool_duration_ms"`
	Errors             []string `json:"errors,omitempty"`
	VisitedTools       []string `json:"visited_tools,omitempty"`
}
