// Package cli - команды apichat (cobra).
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/ilkoid/apichat/pkg/app"
	"github.com/ilkoid/apichat/pkg/config"
	"github.com/ilkoid/apichat/pkg/utils"
)

const version = "0.1.0"

// GlobalFlags - флаги, общие для всех команд.
type GlobalFlags struct {
	ConfigPath string
	Debug      bool
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:   "apichat",
	Short: "Chat with any REST API described by OpenAPI",
	Long: "apichat turns every operation of an OpenAPI description into a tool " +
		"and lets a language model answer questions by calling the real API.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute запускает корневую команду.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig находит config.yaml и применяет глобальные флаги.
func loadConfig() (*config.AppConfig, string, error) {
	cfg, path, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: globalFlags.ConfigPath})
	if err != nil {
		return nil, "", err
	}
	if globalFlags.Debug {
		cfg.App.Debug = true
		cfg.App.LogLevel = "debug"
	}
	return cfg, path, nil
}

// initLogging настраивает логгер. out == nil - stderr.
func initLogging(cfg *config.AppConfig, out io.Writer) error {
	return utils.InitLogger(utils.LogOptions{
		Level: cfg.App.LogLevel,
		File:  cfg.App.LogFile,
		Out:   out,
	})
}

// bootstrap - общий старт команд, которым нужен каталог и модель.
func bootstrap(ctx context.Context, logOut io.Writer) (*app.Components, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := initLogging(cfg, logOut); err != nil {
		return nil, err
	}
	utils.Info("Config loaded", "path", path)

	return app.Initialize(ctx, cfg)
}
