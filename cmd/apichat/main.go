// apichat - чат с REST API по его OpenAPI описанию.
//
//	apichat demo            # демо backend проката фильмов на :3001
//	apichat serve           # HTTP чат сервер на :3000
//	apichat chat            # терминальный чат
//	apichat tools --json    # каталог инструментов
//	apichat mcp             # каталог как MCP сервер (stdio)
package main

import (
	"fmt"
	"os"

	"github.com/ilkoid/apichat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
