package tools

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/apichat/pkg/openapi"
)

func getMoviesOp() openapi.Operation {
	return openapi.Operation{
		ID:      "getMovies",
		Summary: "Lista filmes",
		Method:  "GET",
		Path:    "/filmes",
		Params: []openapi.ParamSpec{
			{Name: "titulo", Type: "string", In: openapi.InQuery, Description: "Título"},
			{Name: "ano", Type: "integer", In: openapi.InQuery},
		},
	}
}

func TestCompile_GetMovies(t *testing.T) {
	compiled, errs := Compile(getMoviesOp())
	require.Empty(t, errs)

	def := compiled.Definition
	assert.Equal(t, "getMovies", def.Name)
	assert.Equal(t, "Lista filmes", def.Description, "summary used when description is empty")
	assert.Equal(t, "object", def.Parameters["type"])
	assert.Equal(t, ParametersDescription, def.Parameters["description"])
	assert.NotContains(t, def.Parameters, "required")

	props := def.Parameters["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string", "description": "Título", "nullable": true}, props["titulo"])
	assert.Equal(t, map[string]any{"type": "number", "description": "", "nullable": true}, props["ano"])

	assert.Equal(t, Routing{
		Operation: "getMovies",
		Params:    map[string]openapi.Location{"titulo": openapi.InQuery, "ano": openapi.InQuery},
	}, compiled.Routing)
	assert.Equal(t, Binding{Method: "GET", PathTemplate: "/filmes"}, compiled.Binding)
}

func TestCompile_TypeMapping(t *testing.T) {
	tests := []struct {
		declared string
		want     string
	}{
		{"string", "string"},
		{"integer", "number"},
		{"number", "number"},
		{"boolean", "boolean"},
		{"array", "array"},
	}

	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			op := openapi.Operation{ID: "op", Method: "GET", Path: "/x", Params: []openapi.ParamSpec{
				{Name: "p", Type: tt.declared, In: openapi.InQuery},
			}}
			compiled, errs := Compile(op)
			require.Empty(t, errs)

			prop := compiled.Definition.Parameters["properties"].(map[string]any)["p"].(map[string]any)
			assert.Equal(t, tt.want, prop["type"])
			if tt.want == "array" {
				assert.Equal(t, map[string]any{"type": "string"}, prop["items"])
			}
		})
	}
}

func TestCompile_UnsupportedTypeSkipsOnlyThatParam(t *testing.T) {
	op := openapi.Operation{
		ID:     "createMovie",
		Method: "POST",
		Path:   "/filmes",
		Params: []openapi.ParamSpec{
			{Name: "detalhes", Type: "object", In: openapi.InBody},
			{Name: "titulo", Type: "string", In: openapi.InBody},
		},
	}

	compiled, errs := Compile(op)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrTypeMapping))

	var tmErr *TypeMappingError
	require.True(t, errors.As(errs[0], &tmErr))
	assert.Equal(t, "detalhes", tmErr.Param)
	assert.Equal(t, "object", tmErr.Type)

	props := compiled.Definition.Parameters["properties"].(map[string]any)
	assert.Contains(t, props, "titulo")
	assert.NotContains(t, props, "detalhes")
	assert.NotContains(t, compiled.Routing.Params, "detalhes")
}

func TestCompile_RequiredInvertsNullable(t *testing.T) {
	op := openapi.Operation{
		ID:          "getMovie",
		Description: "Busca um filme",
		Summary:     "ignored",
		Method:      "GET",
		Path:        "/filmes/{id}",
		Params:      []openapi.ParamSpec{{Name: "id", Type: "integer", In: openapi.InPath, Required: true}},
	}

	compiled, errs := Compile(op)
	require.Empty(t, errs)

	assert.Equal(t, "Busca um filme", compiled.Definition.Description)
	assert.Equal(t, []string{"id"}, compiled.Definition.Parameters["required"])
	prop := compiled.Definition.Parameters["properties"].(map[string]any)["id"].(map[string]any)
	assert.Equal(t, false, prop["nullable"])
	require.NoError(t, validateToolDefinition(compiled.Definition))
}

func TestCompile_NoParams(t *testing.T) {
	compiled, errs := Compile(openapi.Operation{ID: "getUsers", Method: "GET", Path: "/clientes"})
	require.Empty(t, errs)

	assert.Equal(t, "", compiled.Definition.Description)
	assert.Empty(t, compiled.Definition.Parameters["properties"])
	assert.Empty(t, compiled.Routing.Params)
	require.NoError(t, validateToolDefinition(compiled.Definition))
}
