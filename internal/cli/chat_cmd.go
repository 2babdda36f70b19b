package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/ilkoid/apichat/internal/ui"
	"github.com/ilkoid/apichat/pkg/utils"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the API in the terminal",
	RunE:  runChat,
}

func runChat(_ *cobra.Command, _ []string) error {
	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()

	// Консольный лог сломал бы экран TUI: пишем только в app.log_file
	c, err := bootstrap(ctx, io.Discard)
	if err != nil {
		return err
	}

	return ui.Run(ctx, c.Orchestrator, c.ModelName, c.ToolNames())
}
