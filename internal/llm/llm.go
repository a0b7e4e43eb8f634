// Package llm provides the language-model backends used to turn questions
// into SQL. Two providers are supported: OpenAI-compatible chat completion
// endpoints (OpenRouter by default) and Anthropic's Messages API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Role tags a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged turn.
type Message struct {
	Role    Role
	Content string
}

// Backend completes a conversation and returns the assistant's reply text.
type Backend interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Model() string
}

// Provider names accepted by New.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
)

const (
	defaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	defaultOpenAIURL       = "https://api.openai.com/v1"
	defaultOpenRouterModel = "anthropic/claude-3-opus-20240229"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultAnthropicModel  = "claude-3-opus-20240229"
	defaultMaxTokens       = 1024
)

// ErrEmptyResponse is returned when the backend answered without any text.
var ErrEmptyResponse = errors.New("no content in response")

// Config holds the settings of a backend.
type Config struct {
	Provider    string
	BaseURL     string // empty selects the provider default
	APIKey      string
	Model       string // empty selects the provider default
	Temperature float32
	MaxTokens   int
	JSONMode    bool // ask for a JSON object response where supported
	Timeout     time.Duration
}

// New returns the backend for cfg.Provider.
func New(cfg Config, logger zerolog.Logger) (Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required for provider %q", cfg.Provider)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	logger = logger.With().Str("component", "llm").Str("provider", cfg.Provider).Logger()

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenRouter:
		return newOpenAI(withDefaults(cfg, defaultOpenRouterURL, defaultOpenRouterModel), logger), nil
	case ProviderOpenAI:
		return newOpenAI(withDefaults(cfg, defaultOpenAIURL, defaultOpenAIModel), logger), nil
	case ProviderAnthropic:
		return newAnthropic(withDefaults(cfg, "", defaultAnthropicModel), logger), nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q (supported: openrouter, openai, anthropic)", cfg.Provider)
	}
}

func withDefaults(cfg Config, baseURL, model string) Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	if cfg.Model == "" {
		cfg.Model = model
	}
	return cfg
}

// httpClient builds the client shared by both backends. Timeout bounds a
// whole completion call.
func httpClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &contextAwareTransport{base: http.DefaultTransport},
	}
}
