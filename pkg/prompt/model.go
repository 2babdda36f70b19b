// Структуры данных - описывает формат YAML файла промпта.
package prompt

// PromptFile описывает структуру YAML-файла с промптом
type PromptFile struct {
	Messages []Message `yaml:"messages"`
}

// Message - одно сообщение в чате
type Message struct {
	Role    string `yaml:"role"`    // system
	Content string `yaml:"content"` // Шаблон с {{.Variables}}
}

// Data - значения, доступные в шаблоне системного промпта.
//
//	Backend: {{.BaseURL}}
//	{{range .Tools}}- {{.}}
//	{{end}}
type Data struct {
	BaseURL string
	Tools   []string
}
