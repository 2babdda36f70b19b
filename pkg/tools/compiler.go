package tools

import (
	"errors"
	"fmt"

	"github.com/ilkoid/apichat/pkg/openapi"
	"github.com/ilkoid/apichat/pkg/utils"
)

// ParametersDescription - фиксированное описание объекта аргументов.
const ParametersDescription = "Fields available for this function"

// ErrTypeMapping - базовая ошибка неподдерживаемого типа параметра.
var ErrTypeMapping = errors.New("unsupported parameter type")

// TypeMappingError - тип параметра не отображается в схему модели.
//
// Ошибка относится к одному параметру: он пропускается, остальные
// параметры и операции компилируются дальше.
type TypeMappingError struct {
	Operation string
	Param     string
	Type      string
}

func (e *TypeMappingError) Error() string {
	return fmt.Sprintf("tool '%s': parameter '%s' has unsupported type '%s'", e.Operation, e.Param, e.Type)
}

// Is проверяет что ошибка является ErrTypeMapping.
func (e *TypeMappingError) Is(target error) bool {
	return target == ErrTypeMapping
}

// modelType отображает объявленный тип в тип схемы модели.
func modelType(declared string) (string, bool) {
	switch declared {
	case "string":
		return "string", true
	case "integer", "number":
		return "number", true
	case "boolean":
		return "boolean", true
	case "array":
		return "array", true
	default:
		return "", false
	}
}

// Compile превращает операцию в определение инструмента, таблицу
// маршрутизации и привязку к HTTP.
//
// Параметры с неподдерживаемым типом пропускаются и возвращаются
// как TypeMappingError; Compiled остаётся пригодным к регистрации.
func Compile(op openapi.Operation) (Compiled, []error) {
	var errs []error

	properties := make(map[string]any, len(op.Params))
	required := make([]string, 0)
	routing := Routing{
		Operation: op.ID,
		Params:    make(map[string]openapi.Location, len(op.Params)),
	}

	for _, p := range op.Params {
		typ, ok := modelType(p.Type)
		if !ok {
			err := &TypeMappingError{Operation: op.ID, Param: p.Name, Type: p.Type}
			utils.Warn("Parameter skipped", "tool", op.ID, "param", p.Name, "type", p.Type)
			errs = append(errs, err)
			continue
		}

		prop := map[string]any{
			"type":        typ,
			"description": p.Description,
			// nullable инвертирует required
			"nullable": !p.Required,
		}
		if typ == "array" {
			prop["items"] = map[string]any{"type": "string"}
		}
		properties[p.Name] = prop
		routing.Params[p.Name] = p.In

		if p.Required {
			required = append(required, p.Name)
		}
	}

	params := JSONSchema{
		"type":        "object",
		"description": ParametersDescription,
		"properties":  properties,
	}
	if len(required) > 0 {
		params["required"] = required
	}

	return Compiled{
		Definition: ToolDefinition{
			Name:        op.ID,
			Description: describe(op),
			Parameters:  params,
		},
		Routing: routing,
		Binding: Binding{Method: op.Method, PathTemplate: op.Path},
	}, errs
}

// describe: description, иначе summary, иначе пусто.
func describe(op openapi.Operation) string {
	if op.Description != "" {
		return op.Description
	}
	return op.Summary
}
