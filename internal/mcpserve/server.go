// Package mcpserve публикует реестр инструментов как MCP сервер.
//
// Каждая операция API становится MCP инструментом с той же JSON схемой
// параметров, что видит модель в чате. Вызов идёт через тот же REST адаптер.
package mcpserve

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/ilkoid/apichat/pkg/rest"
	"github.com/ilkoid/apichat/pkg/tools"
	"github.com/ilkoid/apichat/pkg/utils"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Catalog - источник инструментов (tools.Registry).
type Catalog interface {
	Get(name string) (tools.Tool, error)
	All() iter.Seq[tools.ToolDefinition]
}

// New создаёт MCP сервер со всеми инструментами каталога.
func New(name, version string, catalog Catalog) (*server.MCPServer, int, error) {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(true))

	count, err := Register(s, catalog)
	if err != nil {
		return nil, 0, err
	}
	return s, count, nil
}

// Register добавляет инструменты каталога в MCP сервер и возвращает их число.
func Register(s *server.MCPServer, catalog Catalog) (int, error) {
	count := 0
	for def := range catalog.All() {
		schema, err := json.Marshal(def.Parameters)
		if err != nil {
			return count, err
		}
		tool, err := catalog.Get(def.Name)
		if err != nil {
			return count, err
		}

		s.AddTool(mcp.NewToolWithRawSchema(def.Name, def.Description, schema), Handler(tool))
		count++
	}

	utils.Info("MCP tools registered", "tools", count)
	return count, nil
}

// Handler превращает инструмент в MCP обработчик.
//
// Ошибка backend не ломает протокол: клиент получает результат
// с IsError и тем же JSON ошибки, что видит модель в чате.
func Handler(tool tools.Tool) server.ToolHandlerFunc {
	name := tool.Definition().Name

	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		argsJSON, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError(rest.ErrorPayload(err)), nil
		}

		utils.Debug("MCP tool call", "tool", name, "args", string(argsJSON))

		result, err := tool.Execute(ctx, string(argsJSON))
		if err != nil {
			utils.Warn("MCP tool call failed", "tool", name, "error", err)
			return mcp.NewToolResultError(rest.ErrorPayload(err)), nil
		}
		return mcp.NewToolResultText(result), nil
	}
}

// ServeStdio обслуживает MCP клиента через stdin/stdout до EOF.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
