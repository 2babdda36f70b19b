package cli

import (
	"github.com/spf13/cobra"

	"github.com/ilkoid/apichat/internal/locadora"
	"github.com/ilkoid/apichat/pkg/config"
	"github.com/ilkoid/apichat/pkg/utils"
)

var demoFlags config.DemoConfig

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the demo movie-rental backend",
	Long: "Runs the movie-rental REST API (filmes, clientes, alugueis) on SQLite " +
		"and serves its OpenAPI description at /openapi.yaml.",
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().StringVar(&demoFlags.Listen, "listen", "", "listen address (default :3001)")
	demoCmd.Flags().StringVar(&demoFlags.Database, "db", "", "SQLite file, \":memory:\" for a throwaway database")
	demoCmd.Flags().Int64Var(&demoFlags.Seed, "seed", 0, "seed for generated data (0 = random)")
}

func runDemo(_ *cobra.Command, _ []string) error {
	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()

	// Backend не требует модели: без config.yaml работает на дефолтах
	demoCfg := config.DemoConfig{}
	logCfg := &config.AppConfig{App: config.AppSpecific{LogLevel: "info"}}
	if cfg, _, err := loadConfig(); err == nil {
		demoCfg, logCfg = cfg.Demo, cfg
	}
	if globalFlags.Debug {
		logCfg.App.LogLevel = "debug"
	}
	if err := initLogging(logCfg, nil); err != nil {
		return err
	}

	if demoFlags.Listen != "" {
		demoCfg.Listen = demoFlags.Listen
	}
	if demoFlags.Database != "" {
		demoCfg.Database = demoFlags.Database
	}
	if demoFlags.Seed != 0 {
		demoCfg.Seed = demoFlags.Seed
	}

	return locadora.Run(ctx, demoCfg)
}
