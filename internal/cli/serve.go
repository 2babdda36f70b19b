package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/ilkoid/apichat/internal/server"
	"github.com/ilkoid/apichat/pkg/utils"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP chat server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides server.listen)")
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()

	c, err := bootstrap(ctx, nil)
	if err != nil {
		return err
	}

	srvCfg := c.Config.Server
	if serveListen != "" {
		srvCfg.Listen = serveListen
	}
	srv := server.New(c.Orchestrator, c.Sessions, srvCfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
