// Package app собирает компоненты apichat из конфигурации.
//
// Одна и та же сборка используется всеми входными интерфейсами
// (HTTP сервер, TUI, MCP, вывод каталога):
//
//	cfg, _, _ := app.InitializeConfig(&app.DefaultConfigPathFinder{})
//	c, _ := app.Initialize(ctx, cfg)
//	reply, _ := c.Orchestrator.Send(ctx, c.Sessions.GetOrCreate(""), "Olá")
//
// Любая ошибка сборки фатальна: процесс не стартует с неполным каталогом
// или без модели.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilkoid/apichat/pkg/chat"
	"github.com/ilkoid/apichat/pkg/config"
	"github.com/ilkoid/apichat/pkg/llm"
	"github.com/ilkoid/apichat/pkg/llm/openai"
	"github.com/ilkoid/apichat/pkg/openapi"
	"github.com/ilkoid/apichat/pkg/prompt"
	"github.com/ilkoid/apichat/pkg/rest"
	"github.com/ilkoid/apichat/pkg/s3storage"
	"github.com/ilkoid/apichat/pkg/tools"
	"github.com/ilkoid/apichat/pkg/utils"
)

// Components содержит все компоненты приложения для переиспользования.
type Components struct {
	Config       *config.AppConfig
	Operations   []openapi.Operation
	API          *rest.Client
	Registry     *tools.Registry
	LLM          llm.Provider
	ModelName    string
	Sessions     *chat.SessionStore
	Orchestrator *chat.Orchestrator
}

// ConfigPathFinder определяет стратегию поиска пути к config.yaml.
type ConfigPathFinder interface {
	FindConfigPath() string
}

// DefaultConfigPathFinder реализует стандартную стратегию поиска config.yaml.
//
// Порядок поиска:
// 1. Флаг --config (если указан)
// 2. Текущая директория (./config.yaml)
// 3. Директория бинарника
// 4. Родительская директория (для запуска из cmd/)
type DefaultConfigPathFinder struct {
	ConfigFlag string
}

// FindConfigPath находит путь к config.yaml.
func (f *DefaultConfigPathFinder) FindConfigPath() string {
	if f.ConfigFlag != "" {
		return resolveAbsPath(f.ConfigFlag)
	}

	candidates := []string{"config.yaml"}
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), "config.yaml"))
	}
	candidates = append(candidates,
		filepath.Join("..", "config.yaml"),
		filepath.Join("..", "..", "config.yaml"),
	)

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return resolveAbsPath(path)
		}
	}

	// Возвращаем дефолтный путь (даже если не существует)
	return resolveAbsPath("config.yaml")
}

// InitializeConfig находит и загружает конфигурацию.
func InitializeConfig(finder ConfigPathFinder) (*config.AppConfig, string, error) {
	cfgPath := finder.FindConfigPath()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config from %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// BuildCatalog загружает описание API и компилирует реестр инструментов.
//
// Базовый URL backend берётся из api.base_url, а если он пуст -
// из первого servers[] описания.
func BuildCatalog(ctx context.Context, cfg *config.AppConfig) ([]openapi.Operation, *rest.Client, *tools.Registry, error) {
	// 1. S3 нужен только если описание лежит в бакете
	var store s3storage.Downloader
	if cfg.S3.Enabled() {
		s3Client, err := s3storage.New(cfg.S3)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		store = s3Client
		utils.Info("S3 client initialized", "endpoint", cfg.S3.Endpoint)
	}

	// 2. Описание API → операции
	doc, err := openapi.Load(ctx, cfg.API.Spec, store)
	if err != nil {
		return nil, nil, nil, err
	}
	ops, err := openapi.Ingest(ctx, doc)
	if err != nil {
		return nil, nil, nil, err
	}
	utils.Info("API description ingested", "source", cfg.API.Spec, "operations", len(ops))

	// 3. REST адаптер
	apiCfg := cfg.API
	if apiCfg.BaseURL == "" {
		apiCfg.BaseURL = openapi.ServerURL(doc)
	}
	client, err := rest.NewFromConfig(apiCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create API client: %w", err)
	}
	utils.Info("API client initialized", "base_url", client.BaseURL())

	// 4. Операции → инструменты
	registry, err := tools.BuildRegistry(ops, client)
	if err != nil {
		return nil, nil, nil, err
	}

	return ops, client, registry, nil
}

// Initialize создаёт и связывает все компоненты приложения.
//
// Модель проверяется до загрузки описания API: ошибка конфигурации
// не ждёт сети или S3.
func Initialize(ctx context.Context, cfg *config.AppConfig) (*Components, error) {
	modelDef, err := cfg.GetChatModel("")
	if err != nil {
		utils.Error("Chat model unavailable", "error", err)
		return nil, err
	}

	ops, client, registry, err := BuildCatalog(ctx, cfg)
	if err != nil {
		utils.Error("Tool catalog build failed", "error", err)
		return nil, err
	}
	provider := openai.NewClient(modelDef)
	utils.Info("LLM provider created", "provider", modelDef.Provider, "model", modelDef.ModelName)

	sessions, err := chat.NewSessionStore(cfg.Chat.MaxSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	systemPrompt := cfg.Chat.SystemPrompt
	if cfg.Chat.SystemPromptFile != "" {
		names := make([]string, 0, registry.Len())
		for def := range registry.All() {
			names = append(names, def.Name)
		}
		systemPrompt, err = prompt.LoadSystemPrompt(cfg.Chat.SystemPromptFile, prompt.Data{
			BaseURL: client.BaseURL(),
			Tools:   names,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load system prompt: %w", err)
		}
		utils.Info("System prompt loaded", "path", cfg.Chat.SystemPromptFile)
	}

	orchestrator, err := chat.New(chat.Config{
		Provider:     provider,
		Catalog:      registry,
		SystemPrompt: systemPrompt,
		Chat:         cfg.Chat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	return &Components{
		Config:       cfg,
		Operations:   ops,
		API:          client,
		Registry:     registry,
		LLM:          provider,
		ModelName:    modelDef.ModelName,
		Sessions:     sessions,
		Orchestrator: orchestrator,
	}, nil
}

// ToolNames возвращает имена инструментов в порядке реестра.
func (c *Components) ToolNames() []string {
	names := make([]string, 0, c.Registry.Len())
	for def := range c.Registry.All() {
		names = append(names, def.Name)
	}
	return names
}

// resolveAbsPath преобразует путь в абсолютный (если это не уже абсолютный путь).
func resolveAbsPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
