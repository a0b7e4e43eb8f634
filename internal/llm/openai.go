package llm

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// OpenAI talks to any OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client *openai.Client
	cfg    Config
	logger zerolog.Logger
}

func newOpenAI(cfg Config, logger zerolog.Logger) *OpenAI {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	clientConfig.HTTPClient = httpClient(cfg.Timeout)

	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		logger: logger,
	}
}

// Model returns the configured model name.
func (o *OpenAI) Model() string {
	return o.cfg.Model
}

// Complete sends the conversation and returns the first choice's content.
func (o *OpenAI) Complete(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.cfg.Model,
		Messages:    toOpenAIMessages(messages),
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	}
	if o.cfg.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	o.logger.Debug().
		Str("model", o.cfg.Model).
		Int("messages", len(messages)).
		Msg("llm request")
	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		o.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("llm request failed")
		return "", ClassifyError(err, o.cfg.Model)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &Error{Type: ErrorTypeResponse, Message: "invalid response format", Cause: ErrEmptyResponse, Model: o.cfg.Model}
	}

	o.logger.Info().
		Str("model", o.cfg.Model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("elapsed", time.Since(start)).
		Msg("llm request completed")

	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out[i] = openai.ChatCompletionMessage{Role: role, Content: m.Content}
	}
	return out
}
