// Базовые типы - определяем универсальный язык общения с моделями
package llm

// Role - роль автора сообщения.
type Role string

// Константы для удобства
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall - запрос модели на вызов инструмента.
type ToolCall struct {
	ID   string // Идентификатор вызова, на него ссылается результат
	Name string // Имя инструмента
	Args string // Аргументы как сырой JSON
}

// Message - одно сообщение диалога.
//
// Для RoleAssistant может содержать ToolCalls.
// Для RoleTool заполнены ToolCallID и Name: это результат одного вызова.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}
