package openapi

import (
	"context"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/ilkoid/apichat/pkg/utils"
)

// supportedMethods - глаголы, из которых строятся операции, в порядке обхода.
var supportedMethods = []string{"GET", "DELETE", "POST", "PUT"}

// Ingest валидирует документ и извлекает упорядоченный список операций.
//
// Пути обходятся в лексикографическом порядке, глаголы - в порядке
// GET, DELETE, POST, PUT. Параметры уровня path item объединяются с
// параметрами операции (параметр операции важнее).
//
// Если операция не объявляет параметров, они синтезируются из свойств
// JSON схемы тела запроса (location=body, required=false). Отсутствие или
// некорректность схемы тела не фатальны: операция регистрируется без аргументов.
//
// Возвращает SchemaError если документ невалиден, у операции нет operationId,
// operationId повторяется или имена параметров внутри операции дублируются.
func Ingest(ctx context.Context, doc *openapi3.T) ([]Operation, error) {
	if doc == nil {
		return nil, &SchemaError{Reason: "document is nil"}
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, &SchemaError{Reason: "document validation failed", Err: err}
	}
	if doc.Paths == nil {
		return nil, nil
	}

	pathItems := doc.Paths.Map()
	pathNames := make([]string, 0, len(pathItems))
	for name := range pathItems {
		pathNames = append(pathNames, name)
	}
	sort.Strings(pathNames)

	var ops []Operation
	seen := make(map[string]string)

	for _, pathName := range pathNames {
		item := pathItems[pathName]
		if item == nil {
			continue
		}

		for _, method := range supportedMethods {
			raw := item.GetOperation(method)
			if raw == nil {
				continue
			}

			op, err := buildOperation(method, pathName, item, raw)
			if err != nil {
				return nil, err
			}

			if prev, dup := seen[op.ID]; dup {
				return nil, &SchemaError{
					Method: method,
					Path:   pathName,
					Reason: "duplicate operationId '" + op.ID + "' (already used by " + prev + ")",
				}
			}
			seen[op.ID] = method + " " + pathName

			ops = append(ops, op)
		}
	}

	return ops, nil
}

// buildOperation собирает Operation из одной операции документа.
func buildOperation(method, pathName string, item *openapi3.PathItem, raw *openapi3.Operation) (Operation, error) {
	id := strings.TrimSpace(raw.OperationID)
	if id == "" {
		return Operation{}, &SchemaError{Method: method, Path: pathName, Reason: "operationId is required"}
	}

	op := Operation{
		ID:          id,
		Summary:     raw.Summary,
		Description: raw.Description,
		Method:      method,
		Path:        pathName,
	}

	params := declaredParams(item.Parameters, raw.Parameters)
	if len(params) == 0 {
		params = bodyParams(method, pathName, raw)
	}

	names := make(map[string]bool, len(params))
	for _, p := range params {
		if names[p.Name] {
			return Operation{}, &SchemaError{
				Method: method,
				Path:   pathName,
				Reason: "duplicate parameter '" + p.Name + "' in " + id,
			}
		}
		names[p.Name] = true
	}

	op.Params = params
	return op, nil
}

// declaredParams объединяет параметры path item и операции
// (совпадение имени и location - параметр операции важнее).
//
// Header и cookie параметры пропускаются: адаптер их не передаёт.
func declaredParams(itemParams, opParams openapi3.Parameters) []ParamSpec {
	var result []ParamSpec
	index := make(map[string]int)

	for _, refs := range []openapi3.Parameters{itemParams, opParams} {
		for _, ref := range refs {
			if ref == nil || ref.Value == nil {
				continue
			}
			p := ref.Value
			loc := Location(p.In)
			if loc != InPath && loc != InQuery {
				utils.Debug("Parameter location not supported, skipping", "param", p.Name, "in", p.In)
				continue
			}

			spec := ParamSpec{
				Name:        p.Name,
				Type:        schemaType(p.Schema),
				In:          loc,
				Required:    p.Required || loc == InPath,
				Description: p.Description,
			}

			key := p.In + ":" + p.Name
			if i, exists := index[key]; exists {
				result[i] = spec
				continue
			}
			index[key] = len(result)
			result = append(result, spec)
		}
	}
	return result
}

// bodyParams синтезирует параметры из свойств JSON схемы тела запроса.
//
// Любая проблема со схемой логируется и даёт пустой список.
func bodyParams(method, pathName string, raw *openapi3.Operation) []ParamSpec {
	props, ok := bodyProperties(raw)
	if !ok {
		utils.Debug("Parameters not found for operation", "method", method, "path", pathName)
		return nil
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]ParamSpec, 0, len(names))
	for _, name := range names {
		prop := props[name]
		desc := ""
		if prop != nil && prop.Value != nil {
			desc = prop.Value.Description
		}
		params = append(params, ParamSpec{
			Name:        name,
			Type:        schemaType(prop),
			In:          InBody,
			Required:    false,
			Description: desc,
		})
	}
	return params
}

// bodyProperties достаёт requestBody.content["application/json"].schema.properties.
func bodyProperties(raw *openapi3.Operation) (openapi3.Schemas, bool) {
	if raw.RequestBody == nil || raw.RequestBody.Value == nil {
		return nil, false
	}
	media := raw.RequestBody.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return nil, false
	}
	props := media.Schema.Value.Properties
	if len(props) == 0 {
		return nil, false
	}
	return props, true
}

// schemaType возвращает первый не-null тип схемы или пустую строку.
func schemaType(ref *openapi3.SchemaRef) string {
	if ref == nil || ref.Value == nil || ref.Value.Type == nil {
		return ""
	}
	for _, t := range ref.Value.Type.Slice() {
		if t != openapi3.TypeNull {
			return t
		}
	}
	return ""
}

// ServerURL возвращает URL первого сервера из документа (или пустую строку).
func ServerURL(doc *openapi3.T) string {
	if doc == nil || len(doc.Servers) == 0 || doc.Servers[0] == nil {
		return ""
	}
	return strings.TrimRight(doc.Servers[0].URL, "/")
}
