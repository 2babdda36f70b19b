package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ilkoid/apichat/pkg/openapi"
	"github.com/ilkoid/apichat/pkg/utils"
)

// RESTTool - инструмент, выполняющий операцию backend через Invoker.
//
// Каждый экземпляр замыкает собственный Compiled: таблица маршрутизации
// и привязка не разделяются между инструментами.
type RESTTool struct {
	compiled Compiled
	invoker  Invoker
}

// NewRESTTool создаёт инструмент из результата компиляции.
func NewRESTTool(compiled Compiled, invoker Invoker) *RESTTool {
	return &RESTTool{compiled: compiled, invoker: invoker}
}

// Definition возвращает описание инструмента для LLM.
func (t *RESTTool) Definition() ToolDefinition {
	return t.compiled.Definition
}

// Route возвращает привязку и таблицу маршрутизации.
func (t *RESTTool) Route() (Binding, Routing) {
	return t.compiled.Binding, t.compiled.Routing
}

// Call выполняет удалённый вызов с уже разобранными аргументами.
func (t *RESTTool) Call(ctx context.Context, args map[string]any) (any, error) {
	return t.invoker.Invoke(ctx, t.compiled.Binding, t.compiled.Routing, args)
}

// Execute разбирает JSON аргументов модели, вызывает операцию
// и возвращает результат как JSON строку.
func (t *RESTTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	args, err := ParseArgs(argsJSON)
	if err != nil {
		return "", fmt.Errorf("tool '%s': %w", t.compiled.Definition.Name, err)
	}

	result, err := t.Call(ctx, args)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("tool '%s': marshal result: %w", t.compiled.Definition.Name, err)
	}
	return string(data), nil
}

// ParseArgs разбирает аргументы вызова. Пустая строка - пустой набор.
func ParseArgs(argsJSON string) (map[string]any, error) {
	argsJSON = strings.TrimSpace(utils.CleanJsonBlock(argsJSON))
	if argsJSON == "" || argsJSON == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments json: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// BuildRegistry компилирует все операции, регистрирует их как RESTTool
// и замораживает реестр.
//
// Ошибки отображения типов не фатальны: параметр пропускается,
// остальные операции регистрируются.
func BuildRegistry(ops []openapi.Operation, invoker Invoker) (*Registry, error) {
	registry := NewRegistry()
	skipped := 0

	for _, op := range ops {
		compiled, errs := Compile(op)
		skipped += len(errs)

		if err := registry.Register(NewRESTTool(compiled, invoker)); err != nil {
			return nil, fmt.Errorf("register tool: %w", err)
		}
		utils.Debug("Tool registered",
			"tool", op.ID,
			"method", op.Method,
			"path", op.Path,
			"params", len(compiled.Routing.Params))
	}

	registry.Freeze()
	utils.Info("Tool registry built", "tools", registry.Len(), "skipped_params", skipped)
	return registry, nil
}
