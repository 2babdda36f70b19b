// Интерфейс Tool и структуры определений.

package tools

import (
	"context"

	"github.com/ilkoid/apichat/pkg/openapi"
)

// JSONSchema представляет JSON Schema для параметров инструмента.
//
// Используется вместо interface{} для типобезопасности.
// Формат соответствует JSON Schema specification для Function Calling API.
type JSONSchema map[string]any

// ToolDefinition описывает инструмент для LLM (Function Calling API format).
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"` // JSON Schema объекта аргументов
}

// Routing - таблица маршрутизации аргументов инструмента.
//
// Содержит только успешно отображённые параметры: аргумент, которого нет
// в Params, адаптер не передаёт никуда.
type Routing struct {
	Operation string
	Params    map[string]openapi.Location
}

// Binding - куда отправлять вызов: HTTP метод и шаблон пути с {placeholders}.
type Binding struct {
	Method       string
	PathTemplate string
}

// Compiled - результат компиляции одной операции.
type Compiled struct {
	Definition ToolDefinition
	Routing    Routing
	Binding    Binding
}

// Tool - контракт, который должен реализовать любой инструмент.
type Tool interface {
	// Definition возвращает описание инструмента для LLM.
	Definition() ToolDefinition

	// Execute выполняет логику инструмента.
	// argsJSON - это сырой JSON с аргументами, который прислала LLM.
	// Возвращает результат (обычно JSON) или ошибку.
	Execute(ctx context.Context, argsJSON string) (string, error)
}

// Invoker выполняет удалённый вызов операции (реализован rest.Client).
type Invoker interface {
	Invoke(ctx context.Context, binding Binding, routing Routing, args map[string]any) (any, error)
}
