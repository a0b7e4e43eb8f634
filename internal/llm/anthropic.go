package llm

import (
	"context"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/rs/zerolog"
)

// Anthropic talks to the Anthropic Messages API. System messages are lifted
// into the request's system field.
type Anthropic struct {
	client *anthropic.Client
	cfg    Config
	logger zerolog.Logger
}

func newAnthropic(cfg Config, logger zerolog.Logger) *Anthropic {
	opts := []anthropic.ClientOption{anthropic.WithHTTPClient(httpClient(cfg.Timeout))}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	return &Anthropic{
		client: anthropic.NewClient(cfg.APIKey, opts...),
		cfg:    cfg,
		logger: logger,
	}
}

// Model returns the configured model name.
func (a *Anthropic) Model() string {
	return a.cfg.Model
}

// Complete sends the conversation and returns the first text block.
// The Messages API has no JSON response mode; the system prompt asks for JSON.
func (a *Anthropic) Complete(ctx context.Context, messages []Message) (string, error) {
	system, turns := toAnthropicMessages(messages)
	temperature := a.cfg.Temperature
	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(a.cfg.Model),
		System:      system,
		Messages:    turns,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: &temperature,
	}

	a.logger.Debug().
		Str("model", a.cfg.Model).
		Int("messages", len(messages)).
		Msg("llm request")
	start := time.Now()

	resp, err := a.client.CreateMessages(ctx, req)
	if err != nil {
		a.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("llm request failed")
		return "", ClassifyError(err, a.cfg.Model)
	}

	text := ""
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			text = *block.Text
			break
		}
	}
	if text == "" {
		return "", &Error{Type: ErrorTypeResponse, Message: "invalid response format", Cause: ErrEmptyResponse, Model: a.cfg.Model}
	}

	a.logger.Info().
		Str("model", a.cfg.Model).
		Int("input_tokens", resp.Usage.InputTokens).
		Int("output_tokens", resp.Usage.OutputTokens).
		Dur("elapsed", time.Since(start)).
		Msg("llm request completed")

	return text, nil
}

func toAnthropicMessages(messages []Message) (string, []anthropic.Message) {
	var system []string
	turns := make([]anthropic.Message, 0, len(messages))
	for _, m := range messages {
		content := m.Content
		switch m.Role {
		case RoleSystem:
			system = append(system, content)
		case RoleAssistant:
			turns = append(turns, anthropic.Message{Role: anthropic.RoleAssistant, Content: []anthropic.MessageContent{
				{Type: "text", Text: &content},
			}})
		default:
			turns = append(turns, anthropic.Message{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &content},
			}})
		}
	}
	return strings.Join(system, "\n\n"), turns
}
