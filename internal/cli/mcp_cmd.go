package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ilkoid/apichat/internal/mcpserve"
	"github.com/ilkoid/apichat/pkg/app"
	"github.com/ilkoid/apichat/pkg/utils"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the tool catalog as an MCP server over stdio",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout занят протоколом
	if err := initLogging(cfg, os.Stderr); err != nil {
		return err
	}
	defer utils.Close()

	// Модель не нужна: инструменты вызывает MCP клиент
	_, _, registry, err := app.BuildCatalog(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	s, _, err := mcpserve.New("apichat", version, registry)
	if err != nil {
		return err
	}
	return mcpserve.ServeStdio(s)
}
