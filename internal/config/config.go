package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv        = "COMPLIANCE_CONFIG"
	httpAddrEnv          = "HTTP_ADDR"
	databaseDriverEnv    = "DATABASE_DRIVER"
	databaseDSNEnv       = "DATABASE_DSN"
	logLevelEnv          = "LOG_LEVEL"
	llmProviderEnv       = "LLM_PROVIDER"
	openAIAPIKeyEnv      = "OPENAI_API_KEY"
	openAIModelEnv       = "OPENAI_MODEL"
	openAIBaseURLEnv     = "OPENAI_BASE_URL"
	geminiAPIKeyEnv      = "GEMINI_API_KEY"
	geminiModelEnv       = "GEMINI_MODEL"
	extractionURLEnv     = "EXTRACTION_SERVICE_URL"
	extractionAPIKeyEnv  = "EXTRACTION_SERVICE_API_KEY"
	telegramTokenEnv     = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv    = "TELEGRAM_CHAT_ID"
	defaultOpenAIBaseURL = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultGeminiModel   = "gemini-2.5-flash"
	defaultTemperature   = 0.1
)

// LLM providers understood by the application.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Database drivers understood by the storage layer.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds high-level settings required across the application.
type Config struct {
	Server        ServerConfig       `yaml:"server"`
	Database      DatabaseConfig     `yaml:"database"`
	Logging       LoggingConfig      `yaml:"logging"`
	LLM           LLMConfig          `yaml:"llm"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Extraction    ExtractionConfig   `yaml:"extraction"`
	Notifications NotificationConfig `yaml:"notifications"`
	Cache         CacheConfig        `yaml:"cache"`
	Sweeper       SweeperConfig      `yaml:"sweeper"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

// DatabaseConfig describes the SQL connection.
type DatabaseConfig struct {
	Driver             string        `yaml:"driver"`
	DSN                string        `yaml:"dsn"`
	SlowQueryThreshold time.Duration `yaml:"slowQueryThreshold"`
}

// LoggingConfig selects verbosity and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LLMConfig defines how to contact the text-generation service used by evaluators.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"apiKey"`
	Temperature *float64      `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ResolvedModel returns the configured model or the provider default.
func (l LLMConfig) ResolvedModel() string {
	if l.Model != "" {
		return l.Model
	}
	if l.Provider == ProviderGemini {
		return defaultGeminiModel
	}
	return defaultOpenAIModel
}

// ResolvedTemperature returns the configured sampling temperature, 0.1 when unset.
// An explicit 0 is kept.
func (l LLMConfig) ResolvedTemperature() float64 {
	if l.Temperature != nil {
		return *l.Temperature
	}
	return defaultTemperature
}

// ResolvedEndpoint returns the chat completions URL for OpenAI-compatible providers.
func (l LLMConfig) ResolvedEndpoint() string {
	if l.Endpoint != "" {
		return l.Endpoint
	}
	return defaultOpenAIBaseURL
}

// PipelineConfig tunes the analysis orchestrator.
type PipelineConfig struct {
	LayerTimeout time.Duration `yaml:"layerTimeout"`
}

// ExtractionConfig points guideline ingestion at an optional remote extraction service.
type ExtractionConfig struct {
	ServiceURL string `yaml:"serviceUrl"`
	APIKey     string `yaml:"apiKey"`
}

// NotificationConfig encapsulates outbound reviewer channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both token and chat are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// CacheConfig controls the guideline lookup cache.
type CacheConfig struct {
	GuidelineTTL time.Duration `yaml:"guidelineTtl"`
}

// SweeperConfig controls recovery of runs abandoned mid-flight.
type SweeperConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"staleAfter"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Validate reports settings the application cannot start with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database dsn is empty")
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	if t := c.LLM.ResolvedTemperature(); t < 0 || t > 2 {
		return fmt.Errorf("llm temperature %v is outside [0, 2]", t)
	}
	if c.Pipeline.LayerTimeout <= 0 {
		return fmt.Errorf("pipeline layer timeout must be positive")
	}
	if c.Sweeper.Interval <= 0 || c.Sweeper.StaleAfter <= 0 {
		return fmt.Errorf("sweeper interval and staleAfter must be positive")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = strings.ToLower(v)
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(llmProviderEnv); v != "" {
		c.LLM.Provider = strings.ToLower(v)
	}
	switch c.LLM.Provider {
	case ProviderGemini:
		if v := os.Getenv(geminiAPIKeyEnv); v != "" {
			c.LLM.APIKey = v
		}
		if v := os.Getenv(geminiModelEnv); v != "" {
			c.LLM.Model = v
		}
	default:
		if v := os.Getenv(openAIAPIKeyEnv); v != "" {
			c.LLM.APIKey = v
		}
		if v := os.Getenv(openAIModelEnv); v != "" {
			c.LLM.Model = v
		}
		if v := os.Getenv(openAIBaseURLEnv); v != "" {
			c.LLM.Endpoint = v
		}
	}

	if v := os.Getenv(extractionURLEnv); v != "" {
		c.Extraction.ServiceURL = v
	}
	if v := os.Getenv(extractionAPIKeyEnv); v != "" {
		c.Extraction.APIKey = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.ReadTimeout > 0 {
		base.Server.ReadTimeout = override.Server.ReadTimeout
	}
	if override.Server.WriteTimeout > 0 {
		base.Server.WriteTimeout = override.Server.WriteTimeout
	}
	if override.Server.ShutdownTimeout > 0 {
		base.Server.ShutdownTimeout = override.Server.ShutdownTimeout
	}
	if len(override.Server.AllowedOrigins) > 0 {
		base.Server.AllowedOrigins = override.Server.AllowedOrigins
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.SlowQueryThreshold > 0 {
		base.Database.SlowQueryThreshold = override.Database.SlowQueryThreshold
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.LLM.Provider != "" {
		base.LLM.Provider = override.LLM.Provider
	}
	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.Temperature != nil {
		base.LLM.Temperature = override.LLM.Temperature
	}
	if override.LLM.MaxTokens > 0 {
		base.LLM.MaxTokens = override.LLM.MaxTokens
	}
	if override.LLM.Timeout > 0 {
		base.LLM.Timeout = override.LLM.Timeout
	}

	if override.Pipeline.LayerTimeout > 0 {
		base.Pipeline.LayerTimeout = override.Pipeline.LayerTimeout
	}

	if override.Extraction.ServiceURL != "" {
		base.Extraction.ServiceURL = override.Extraction.ServiceURL
	}
	if override.Extraction.APIKey != "" {
		base.Extraction.APIKey = override.Extraction.APIKey
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Cache.GuidelineTTL > 0 {
		base.Cache.GuidelineTTL = override.Cache.GuidelineTTL
	}

	if override.Sweeper.Interval > 0 {
		base.Sweeper.Interval = override.Sweeper.Interval
	}
	if override.Sweeper.StaleAfter > 0 {
		base.Sweeper.StaleAfter = override.Sweeper.StaleAfter
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 20 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:             DriverSQLite,
			DSN:                "file:compliance.db?_pragma=busy_timeout(5000)",
			SlowQueryThreshold: 200 * time.Millisecond,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			APIKey:      "",
			MaxTokens:   2000,
			Timeout:     60 * time.Second,
		},
		Pipeline: PipelineConfig{LayerTimeout: 90 * time.Second},
		Cache:    CacheConfig{GuidelineTTL: 5 * time.Minute},
		Sweeper: SweeperConfig{
			Interval:   time.Minute,
			StaleAfter: 15 * time.Minute,
		},
	}
}
