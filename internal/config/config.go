package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Rrens/text-to-dashboard/internal/security"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Superset SupersetConfig `mapstructure:"superset"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MiddlewareTimeout time.Duration `mapstructure:"middleware_timeout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// CacheTTL bounds how long generated SQL is reused
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig protects the API with HS256 bearer tokens when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// SupersetConfig describes the BI platform the dashboards are materialized in.
type SupersetConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	PublicURL  string        `mapstructure:"public_url"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	DatabaseID int           `mapstructure:"database_id"`
	Schema     string        `mapstructure:"schema"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type LLMConfig struct {
	DefaultProvider string          `mapstructure:"default_provider"`
	OpenAI          OpenAIConfig    `mapstructure:"openai"`
	Anthropic       AnthropicConfig `mapstructure:"anthropic"`
	Ollama          OllamaConfig    `mapstructure:"ollama"`
	DeepSeek        DeepSeekConfig  `mapstructure:"deepseek"`
	Gemini          GeminiConfig    `mapstructure:"gemini"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OllamaConfig struct {
	Host         string `mapstructure:"host"`
	DefaultModel string `mapstructure:"default_model"`
}

type DeepSeekConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// SchemaConfig points at the schema description embedded in LLM prompts.
// An empty ContextFile selects the built-in description.
type SchemaConfig struct {
	ContextFile string `mapstructure:"context_file"`
	Dialect     string `mapstructure:"dialect"`
}

type SecurityConfig struct {
	SecretsKey string          `mapstructure:"secrets_key"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level        string        `mapstructure:"level"`
	Format       string        `mapstructure:"format"`
	File         string        `mapstructure:"file"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file path
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.decryptSecrets(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports configuration that makes dashboard generation impossible.
func (c *Config) Validate() error {
	if c.Superset.BaseURL == "" {
		return fmt.Errorf("superset.base_url is required")
	}
	if c.Superset.Username == "" {
		return fmt.Errorf("superset.username is required")
	}
	if c.Superset.DatabaseID <= 0 {
		return fmt.Errorf("superset.database_id must be positive")
	}
	return nil
}

// decryptSecrets replaces "enc:" prefixed secrets with their plaintext.
func (c *Config) decryptSecrets() error {
	secrets := []*string{
		&c.Superset.Password,
		&c.Redis.Password,
		&c.Auth.JWTSecret,
		&c.LLM.OpenAI.APIKey,
		&c.LLM.Anthropic.APIKey,
		&c.LLM.DeepSeek.APIKey,
		&c.LLM.Gemini.APIKey,
	}

	var encryptor *security.Encryptor
	for _, s := range secrets {
		if !security.IsEncrypted(*s) {
			continue
		}
		if encryptor == nil {
			if c.Security.SecretsKey == "" {
				return fmt.Errorf("encrypted secret found but security.secrets_key is empty")
			}
			e, err := security.NewEncryptorFromBase64(c.Security.SecretsKey)
			if err != nil {
				return fmt.Errorf("failed to create secrets encryptor: %w", err)
			}
			encryptor = e
		}
		plain, err := encryptor.DecryptSecret(*s)
		if err != nil {
			return fmt.Errorf("failed to decrypt secret: %w", err)
		}
		*s = plain
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.middleware_timeout", "170s")

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", "10m")

	// Auth
	v.SetDefault("auth.issuer", "text-to-dashboard")

	// Superset
	v.SetDefault("superset.base_url", "http://localhost:8088")
	v.SetDefault("superset.username", "admin")
	v.SetDefault("superset.database_id", 3)
	v.SetDefault("superset.schema", "public")
	v.SetDefault("superset.timeout", "60s")

	// LLM
	v.SetDefault("llm.default_provider", "gemini")
	v.SetDefault("llm.gemini.model", "gemini-1.5-flash")
	v.SetDefault("llm.deepseek.model", "deepseek-coder")
	v.SetDefault("llm.deepseek.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("llm.ollama.default_model", "llama3")

	// Schema
	v.SetDefault("schema.dialect", "PostgreSQL")

	// Security
	v.SetDefault("security.rate_limit.requests_per_minute", 20)
	v.SetDefault("security.rate_limit.burst", 5)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_age", "168h")
	v.SetDefault("logging.rotation_time", "24h")

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func bindEnvVars(v *viper.Viper) {
	// Redis
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Auth
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")

	// Superset
	v.BindEnv("superset.base_url", "SUPERSET_BASE_URL")
	v.BindEnv("superset.public_url", "SUPERSET_PUBLIC_URL")
	v.BindEnv("superset.username", "SUPERSET_USERNAME")
	v.BindEnv("superset.password", "SUPERSET_PASSWORD")

	// LLM API Keys
	v.BindEnv("llm.openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("llm.deepseek.api_key", "DEEPSEEK_API_KEY")
	v.BindEnv("llm.gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("llm.ollama.host", "OLLAMA_HOST")

	// Secrets
	v.BindEnv("security.secrets_key", "SECRETS_KEY")
}
