package sqlmcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/rickchristie/sqlagent-mcp/internal/dialect"
	"github.com/rickchristie/sqlagent-mcp/internal/hooks"
)

// Config is the base configuration used by library mode via New().
// Every field can be set from YAML; most can be overridden from the environment.
type Config struct {
	Connection                ConnectionConfig   `yaml:"connection"`
	Protection                ProtectionConfig   `yaml:"protection"`
	Query                     QueryConfig        `yaml:"query"`
	ErrorPrompts              []ErrorPromptRule  `yaml:"error_prompts"`
	Sanitization              []SanitizationRule `yaml:"sanitization"`
	DefaultHookTimeoutSeconds int                `yaml:"default_hook_timeout_seconds" env:"SQLAGENT_HOOK_TIMEOUT_SECONDS" env-default:"10"`

	// Library mode only.
	BeforeQueryHooks []BeforeQueryHookEntry `yaml:"-"`
}

// ServerConfig embeds Config and adds the settings used by the sqlagent CLI.
type ServerConfig struct {
	Config  `yaml:",inline"`
	LLM     LLMConfig      `yaml:"llm"`
	Agent   AgentConfig    `yaml:"agent"`
	Server  ServerSettings `yaml:"server"`
	Logging LoggingConfig  `yaml:"logging"`

	// CommandHooks are external programs run as BeforeQuery hooks, in order.
	CommandHooks []hooks.Config `yaml:"command_hooks"`
}

// ConnectionConfig holds database connection parameters.
// User, Password and Database are mandatory.
type ConnectionConfig struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER" env-default:"mysql"`
	Host     string `yaml:"host" env:"MYSQL_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"MYSQL_PORT" env-default:"3306"`
	User     string `yaml:"user" env:"MYSQL_USER"`
	Password string `yaml:"-" env:"MYSQL_PASSWORD"` // secret, environment only
	Database string `yaml:"database" env:"MYSQL_DATABASE"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE"`
}

// ProtectionConfig extends the denied keyword list. The default keywords
// (DROP, DELETE, TRUNCATE, ALTER) cannot be removed.
type ProtectionConfig struct {
	ExtraKeywords []string `yaml:"extra_keywords" env:"SQLAGENT_EXTRA_DENY_KEYWORDS" env-separator:","`
}

// QueryConfig holds tool execution settings.
type QueryConfig struct {
	MaxConcurrent               int           `yaml:"max_concurrent" env:"SQLAGENT_MAX_CONCURRENT" env-default:"4"`
	DefaultTimeoutSeconds       int           `yaml:"default_timeout_seconds" env:"SQLAGENT_QUERY_TIMEOUT_SECONDS" env-default:"30"`
	SchemaTimeoutSeconds        int           `yaml:"schema_timeout_seconds" env:"SQLAGENT_SCHEMA_TIMEOUT_SECONDS" env-default:"30"`
	ListTablesTimeoutSeconds    int           `yaml:"list_tables_timeout_seconds" env:"SQLAGENT_LIST_TABLES_TIMEOUT_SECONDS" env-default:"10"`
	DescribeTableTimeoutSeconds int           `yaml:"describe_table_timeout_seconds" env:"SQLAGENT_DESCRIBE_TABLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxSQLLength                int           `yaml:"max_sql_length" env:"SQLAGENT_MAX_SQL_LENGTH" env-default:"100000"`
	MaxResultLength             int           `yaml:"max_result_length" env:"SQLAGENT_MAX_RESULT_LENGTH" env-default:"100000"`
	TimeoutRules                []TimeoutRule `yaml:"timeout_rules"`
}

// TimeoutRule maps a SQL pattern to a specific timeout duration.
type TimeoutRule struct {
	Pattern        string `yaml:"pattern"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ErrorPromptRule maps an error message pattern to a guidance message.
type ErrorPromptRule struct {
	Pattern string `yaml:"pattern"`
	Message string `yaml:"message"`
}

// SanitizationRule defines a regex-based cell sanitization rule.
type SanitizationRule struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	Description string `yaml:"description"`
}

// LLMConfig selects and configures the language-model backend.
type LLMConfig struct {
	Provider        string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"openrouter"` // openrouter, openai, anthropic
	BaseURL         string  `yaml:"base_url" env:"LLM_BASE_URL"`
	APIKey          string  `yaml:"-" env:"OPENROUTER_API_KEY"`
	AnthropicAPIKey string  `yaml:"-" env:"ANTHROPIC_API_KEY"`
	Model           string  `yaml:"model" env:"OPENROUTER_MODEL"`
	Temperature     float32 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.2"`
	MaxTokens       int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"1024"`
	JSONMode        bool    `yaml:"json_mode" env:"LLM_JSON_MODE" env-default:"true"`
	TimeoutSeconds  int     `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"60"`
}

// AgentConfig controls conversation handling.
type AgentConfig struct {
	// MaxHistoryMessages bounds the conversation sent to the backend. The
	// system prompt is always kept. 0 disables truncation.
	MaxHistoryMessages int    `yaml:"max_history_messages" env:"SQLAGENT_MAX_HISTORY_MESSAGES" env-default:"40"`
	SystemPrompt       string `yaml:"system_prompt" env:"SQLAGENT_SYSTEM_PROMPT"`
}

// ServerSettings holds the network settings of the CLI commands.
type ServerSettings struct {
	// ChatAddr is the listen address of the chat HTTP API.
	ChatAddr string `yaml:"chat_addr" env:"SQLAGENT_CHAT_ADDR" env-default:":8000"`
	// MCPAddr is the listen address of the streamable HTTP MCP transport.
	// Empty means stdio.
	MCPAddr string `yaml:"mcp_addr" env:"SQLAGENT_MCP_ADDR"`
	// ServerCommand, when set, makes agents spawn the tool server as a
	// subprocess over stdio instead of running it in-process.
	ServerCommand string   `yaml:"server_command" env:"SQLAGENT_SERVER_COMMAND"`
	ServerArgs    []string `yaml:"server_args" env:"SQLAGENT_SERVER_ARGS" env-separator:" "`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"SQLAGENT_LOG_LEVEL" env-default:"info"`   // debug, info, warn, error
	Format string `yaml:"format" env:"SQLAGENT_LOG_FORMAT" env-default:"json"` // json, text
	Output string `yaml:"output" env:"SQLAGENT_LOG_OUTPUT" env-default:"stderr"`
}

// ErrMissingConfig is wrapped by Validate when mandatory settings are absent.
var ErrMissingConfig = errors.New("missing required database configuration")

// LoadServerConfig reads path (YAML, or a .env file by extension) with
// environment overrides. With an empty path, ./.env is read when it exists and
// the environment is used otherwise.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if path == "" {
		if _, err := os.Stat(".env"); err == nil {
			path = ".env"
		}
	}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, nil
}

// Validate reports every missing mandatory connection setting at once.
func (c ConnectionConfig) Validate() error {
	var missing []string
	if c.User == "" {
		missing = append(missing, "user (MYSQL_USER)")
	}
	if c.Password == "" {
		missing = append(missing, "password (MYSQL_PASSWORD)")
	}
	if c.Database == "" {
		missing = append(missing, "database (MYSQL_DATABASE)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	if _, err := dialect.ByName(c.Driver); err != nil {
		return err
	}
	if c.Port <= 0 {
		return fmt.Errorf("invalid database port %d", c.Port)
	}
	return nil
}

func (c ConnectionConfig) params() dialect.Params {
	return dialect.Params{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Database,
		SSLMode:  c.SSLMode,
	}
}

// Usage returns a description of every environment variable read by
// LoadServerConfig.
func Usage() string {
	header := "Environment variables:"
	text, err := cleanenv.GetDescription(&ServerConfig{}, &header)
	if err != nil {
		return ""
	}
	return text
}

// BeforeQueryHook can inspect, rewrite or reject a statement before the
// safety check runs.
type BeforeQueryHook interface {
	Run(ctx context.Context, query string) (string, error)
}

// BeforeQueryHookEntry wraps a BeforeQueryHook with metadata.
type BeforeQueryHookEntry struct {
	Name    string
	Timeout time.Duration
	Hook    BeforeQueryHook
}
