// Package openapi превращает OpenAPI 3 описание REST backend в список операций.
//
// Это первый шаг сборки каталога инструментов:
//
//	doc, _ := openapi.LoadFile(ctx, "openapi.yaml")
//	ops, _ := openapi.Ingest(ctx, doc)
//	// ops → tools.Compile → tools.Registry
//
// Ошибки разбора и валидации документа фатальны (SchemaError):
// процесс не должен стартовать с неполным каталогом.
package openapi

import (
	"errors"
	"fmt"
)

// Location - место передачи аргумента в HTTP запросе.
type Location string

const (
	InPath  Location = "path"
	InQuery Location = "query"
	InBody  Location = "body"
)

// Valid проверяет что location поддерживается адаптером.
func (l Location) Valid() bool {
	switch l {
	case InPath, InQuery, InBody:
		return true
	default:
		return false
	}
}

// ParamSpec - параметр операции.
//
// Type хранится как объявлен в документе ("string", "integer", "object", ...).
// Проверка поддерживаемых типов - задача компилятора инструментов.
type ParamSpec struct {
	Name        string
	Type        string
	In          Location
	Required    bool
	Description string
}

// Operation - одна пара verb+path из описания API.
type Operation struct {
	ID          string // operationId, он же имя инструмента
	Summary     string
	Description string
	Method      string // GET, DELETE, POST, PUT
	Path        string // Шаблон пути с {placeholders}
	Params      []ParamSpec
}

// Param ищет параметр по имени.
func (o Operation) Param(name string) (ParamSpec, bool) {
	for _, p := range o.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// ErrSchema - базовая ошибка некорректного описания API.
var ErrSchema = errors.New("invalid api description")

// SchemaError - фатальная ошибка описания API с контекстом операции.
//
// Поддерживает errors.Is(err, ErrSchema) и errors.Unwrap.
type SchemaError struct {
	Method string
	Path   string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	where := ""
	if e.Method != "" || e.Path != "" {
		where = fmt.Sprintf(" (%s %s)", e.Method, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("schema error%s: %s: %v", where, e.Reason, e.Err)
	}
	return fmt.Sprintf("schema error%s: %s", where, e.Reason)
}

// Is проверяет что ошибка является ErrSchema.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}
