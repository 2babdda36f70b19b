// Package config загружает YAML конфигурацию apichat.
//
// Порядок: .env.local → .env (через godotenv, существующие переменные окружения
// не перезаписываются) → config.yaml с подстановкой ${VAR} → дефолты → валидация.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig - корневая структура конфигурации.
// Она зеркалит структуру config.yaml.
type AppConfig struct {
	Models ModelsConfig `yaml:"models"`
	API    APIConfig    `yaml:"api"`
	Chat   ChatConfig   `yaml:"chat"`
	Server ServerConfig `yaml:"server"`
	S3     S3Config     `yaml:"s3"`
	Demo   DemoConfig   `yaml:"demo"`
	App    AppSpecific  `yaml:"app"`
}

// ModelsConfig - настройки AI моделей.
type ModelsConfig struct {
	DefaultChat string              `yaml:"default_chat"` // Алиас для чата по умолчанию (например, "gemini")
	Definitions map[string]ModelDef `yaml:"definitions"`  // Словарь определений моделей
}

// ModelDef - параметры конкретной модели.
type ModelDef struct {
	Provider    string        `yaml:"provider"`   // "gemini", "openai" и т.д.
	ModelName   string        `yaml:"model_name"` // Реальное имя в API
	APIKey      string        `yaml:"api_key"`    // Поддерживает ${VAR}
	BaseURL     string        `yaml:"base_url"`   // OpenAI-совместимый endpoint
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"` // Go умеет парсить строки вида "60s", "1m"
}

// APIConfig - REST backend, описание которого превращается в инструменты.
type APIConfig struct {
	Spec       string `yaml:"spec"`        // Путь к файлу, http(s):// URL или s3://bucket/key
	BaseURL    string `yaml:"base_url"`    // Базовый URL backend (если пуст - берётся из servers[0])
	Token      string `yaml:"token"`       // Bearer токен, поддерживает ${VAR}
	RateLimit  int    `yaml:"rate_limit"`  // Запросов в минуту на одну операцию
	BurstLimit int    `yaml:"burst_limit"` // Burst для rate limiter
	Timeout    string `yaml:"timeout"`     // Timeout HTTP запроса (например, "30s")
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *APIConfig) GetDefaults() APIConfig {
	result := *c

	if result.Spec == "" {
		result.Spec = "openapi.yaml"
	}
	if result.RateLimit == 0 {
		result.RateLimit = 600
	}
	if result.BurstLimit == 0 {
		result.BurstLimit = 10
	}
	if result.Timeout == "" {
		result.Timeout = "30s"
	}

	return result
}

// ChatConfig - параметры цикла диалога.
type ChatConfig struct {
	SystemPrompt     string        `yaml:"system_prompt"`      // Пусто - используется встроенный промпт
	SystemPromptFile string        `yaml:"system_prompt_file"` // YAML шаблон промпта, важнее system_prompt
	MaxRounds        int           `yaml:"max_rounds"`         // Лимит раундов вызова инструментов на одно сообщение
	MessageTimeout   time.Duration `yaml:"message_timeout"`    // Дедлайн на обработку одного сообщения
	ToolTimeout      time.Duration `yaml:"tool_timeout"`       // Дедлайн на один вызов инструмента
	ParallelTools    *bool         `yaml:"parallel_tools"`     // nil = true
	RejectConcurrent bool          `yaml:"reject_concurrent"`  // true - занятая сессия отвечает ошибкой вместо ожидания
	MaxSessions      int           `yaml:"max_sessions"`       // Размер LRU сессий
	TraceDir         string        `yaml:"trace_dir"`          // Директория JSON трейсов сообщений, пусто - выключено
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *ChatConfig) GetDefaults() ChatConfig {
	result := *c

	if result.MaxRounds <= 0 {
		result.MaxRounds = 8
	}
	if result.MessageTimeout <= 0 {
		result.MessageTimeout = 2 * time.Minute
	}
	if result.ToolTimeout <= 0 {
		result.ToolTimeout = 30 * time.Second
	}
	if result.ParallelTools == nil {
		parallel := true
		result.ParallelTools = &parallel
	}
	if result.MaxSessions <= 0 {
		result.MaxSessions = 256
	}

	return result
}

// ServerConfig - HTTP сервер чата.
type ServerConfig struct {
	Listen         string   `yaml:"listen"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *ServerConfig) GetDefaults() ServerConfig {
	result := *c

	if result.Listen == "" {
		result.Listen = ":3000"
	}
	if len(result.AllowedOrigins) == 0 {
		result.AllowedOrigins = []string{"*"}
	}
	if result.MaxBodyBytes <= 0 {
		result.MaxBodyBytes = 64 << 10
	}

	return result
}

// S3Config - настройки объектного хранилища (источник описаний API).
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled сообщает, настроено ли хранилище.
func (c S3Config) Enabled() bool {
	return c.Endpoint != ""
}

// DemoConfig - демо backend проката фильмов.
type DemoConfig struct {
	Listen   string `yaml:"listen"`
	Database string `yaml:"database"` // Путь к SQLite файлу, ":memory:" для временной базы
	Seed     int64  `yaml:"seed"`     // 0 - случайные данные
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *DemoConfig) GetDefaults() DemoConfig {
	result := *c

	if result.Listen == "" {
		result.Listen = ":3001"
	}
	if result.Database == "" {
		result.Database = "locadora.db"
	}

	return result
}

// AppSpecific - общие настройки приложения.
type AppSpecific struct {
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
	LogFile  string `yaml:"log_file"`  // Пусто - только stderr
}

// ErrMissingAPIKey возвращается когда у модели чата нет ключа.
var ErrMissingAPIKey = errors.New("model api key is required")

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
func Load(path string) (*AppConfig, error) {
	// 1. Подгружаем .env файлы (явные переменные окружения важнее)
	if err := loadDotEnv(".env.local", ".env"); err != nil {
		return nil, fmt.Errorf("failed to load dotenv: %w", err)
	}

	// 2. Проверяем существование файла
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(rawBytes)
}

// Parse разбирает содержимое config.yaml (с подстановкой ${VAR}),
// применяет дефолты и валидирует результат.
func Parse(rawBytes []byte) (*AppConfig, error) {
	// os.ExpandEnv заменяет ${VAR} или $VAR на значение из системы.
	contentWithEnv := os.ExpandEnv(string(rawBytes))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults заполняет пустые поля всех секций.
func (c *AppConfig) applyDefaults() {
	c.API = c.API.GetDefaults()
	c.Chat = c.Chat.GetDefaults()
	c.Server = c.Server.GetDefaults()
	c.Demo = c.Demo.GetDefaults()

	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.Debug {
		c.App.LogLevel = "debug"
	}
}

// validate проверяет обязательные поля.
func (c *AppConfig) validate() error {
	if c.Models.DefaultChat == "" {
		return fmt.Errorf("models.default_chat is required")
	}
	if _, ok := c.Models.Definitions[c.Models.DefaultChat]; !ok {
		return fmt.Errorf("default_chat model '%s' is not defined in definitions", c.Models.DefaultChat)
	}
	if _, err := time.ParseDuration(c.API.Timeout); err != nil {
		return fmt.Errorf("invalid api.timeout format: %w", err)
	}
	if c.API.RateLimit < 0 || c.API.BurstLimit < 0 {
		return fmt.Errorf("api.rate_limit and api.burst_limit must be positive")
	}
	return nil
}

// GetChatModel возвращает конфигурацию модели чата по имени (пусто - дефолтная).
//
// Отсутствие API ключа - фатальная ошибка: процесс не должен стартовать
// в нерабочем состоянии.
func (c *AppConfig) GetChatModel(name string) (ModelDef, error) {
	if name == "" {
		name = c.Models.DefaultChat
	}
	m, ok := c.Models.Definitions[name]
	if !ok {
		return ModelDef{}, fmt.Errorf("model '%s' is not defined", name)
	}
	if m.APIKey == "" {
		return ModelDef{}, fmt.Errorf("%w: models.definitions.%s.api_key", ErrMissingAPIKey, name)
	}
	return m, nil
}

// loadDotEnv подгружает переменные из .env файлов, не трогая уже заданные.
func loadDotEnv(paths ...string) error {
	for _, path := range paths {
		values, err := godotenv.Read(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("%s: %w", path, err)
		}
		for k, v := range values {
			if _, exists := os.LookupEnv(k); exists {
				continue
			}
			if err := os.Setenv(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}
