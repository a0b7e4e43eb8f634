package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/liushuangls/go-anthropic/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(provider, url string) Config {
	return Config{
		Provider:    provider,
		BaseURL:     url,
		APIKey:      "test-key",
		Model:       "test-model",
		Temperature: 0.2,
		MaxTokens:   256,
		JSONMode:    true,
		Timeout:     5 * time.Second,
	}
}

func TestNew_Providers(t *testing.T) {
	t.Parallel()
	logger := zerolog.Nop()

	b, err := New(Config{Provider: "openrouter", APIKey: "k"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, b)
	assert.Equal(t, defaultOpenRouterModel, b.Model())

	b, err = New(Config{Provider: "anthropic", APIKey: "k"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &Anthropic{}, b)
	assert.Equal(t, defaultAnthropicModel, b.Model())

	b, err = New(Config{Provider: "OpenAI", APIKey: "k", Model: "gpt-4o"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", b.Model())

	_, err = New(Config{Provider: "cohere", APIKey: "k"}, logger)
	assert.ErrorContains(t, err, "unsupported provider")

	_, err = New(Config{Provider: "openrouter"}, logger)
	assert.ErrorContains(t, err, "api key is required")
}

func TestOpenAI_Complete(t *testing.T) {
	t.Parallel()
	sessionID := uuid.New()
	var got struct {
		Model          string `json:"model"`
		MaxTokens      int    `json:"max_tokens"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var gotSession, gotAuth, gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSession = r.Header.Get(sessionIDHeader)
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","model":"test-model",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"sql\":\"SELECT 1\"}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`)
	}))
	defer server.Close()

	b, err := New(testConfig(ProviderOpenRouter, server.URL+"/"), zerolog.Nop())
	require.NoError(t, err)

	ctx := WithSessionID(context.Background(), sessionID)
	reply, err := b.Complete(ctx, []Message{
		{Role: RoleSystem, Content: "you write SQL"},
		{Role: RoleUser, Content: "how many users?"},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"sql":"SELECT 1"}`, reply)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, sessionID.String(), gotSession)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "how many users?", got.Messages[1].Content)
}

func TestOpenAI_AuthError(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Invalid API key","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer server.Close()

	b, err := New(testConfig(ProviderOpenAI, server.URL), zerolog.Nop())
	require.NoError(t, err)

	_, err = b.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	var llmErr *Error
	require.True(t, errors.As(err, &llmErr), "expected *Error, got %T", err)
	assert.Equal(t, ErrorTypeAuth, llmErr.Type)
	assert.Equal(t, 401, llmErr.StatusCode)
	assert.Equal(t, "test-model", llmErr.Model)
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","choices":[]}`)
	}))
	defer server.Close()

	b, err := New(testConfig(ProviderOpenAI, server.URL), zerolog.Nop())
	require.NoError(t, err)

	_, err = b.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	var llmErr *Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, ErrorTypeResponse, llmErr.Type)
}

func TestAnthropic_Complete(t *testing.T) {
	t.Parallel()
	var got struct {
		Model    string `json:"model"`
		System   string `json:"system"`
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	var gotKey, gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"test-model",
			"content":[{"type":"text","text":"{\"sql\":\"SELECT 2\"}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":12,"output_tokens":7}}`)
	}))
	defer server.Close()

	b, err := New(testConfig(ProviderAnthropic, server.URL), zerolog.Nop())
	require.NoError(t, err)

	reply, err := b.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "you write SQL"},
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: `{"sql":"SELECT 1"}`},
		{Role: RoleUser, Content: "second"},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"sql":"SELECT 2"}`, reply)
	assert.Equal(t, "/messages", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, "you write SQL", got.System)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "second", got.Messages[2].Content[0].Text)
}

func TestClassifyError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		err    error
		want   ErrorType
		status int
	}{
		{"unauthorized", errors.New("status code: 401, unauthorized"), ErrorTypeAuth, 401},
		{"anthropic auth", errors.New("anthropic api error type: authentication_error, message: invalid x-api-key"), ErrorTypeAuth, 0},
		{"model missing", errors.New("model gpt-9 does not exist"), ErrorTypeModel, 0},
		{"not found", errors.New("status code: 404"), ErrorTypeEndpoint, 404},
		{"rate limit", errors.New("anthropic api error type: rate_limit_error"), ErrorTypeRateLimit, 0},
		{"429", errors.New("status code: 429, too many requests"), ErrorTypeRateLimit, 429},
		{"refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), ErrorTypeEndpoint, 0},
		{"refused on port with status digits", errors.New(`Post "http://127.0.0.1:34013/chat/completions": dial tcp 127.0.0.1:34013: connect: connection refused`), ErrorTypeEndpoint, 0},
		{"host with status digits", errors.New(`Post "https://api401.example.com/v1": dial tcp: lookup api401.example.com: no such host`), ErrorTypeEndpoint, 0},
		{"digits in message only", errors.New("request 5029 failed"), ErrorTypeUnknown, 0},
		{"anthropic typed auth", &anthropic.APIError{Type: "authentication_error", Message: "invalid x-api-key"}, ErrorTypeAuth, 0},
		{"anthropic typed overloaded", &anthropic.APIError{Type: "overloaded_error", Message: "busy"}, ErrorTypeEndpoint, 0},
		{"anthropic request error", &anthropic.RequestError{StatusCode: 429, Err: errors.New("too many")}, ErrorTypeRateLimit, 429},
		{"deadline", context.DeadlineExceeded, ErrorTypeEndpoint, 0},
		{"server", errors.New("status code: 502, bad gateway"), ErrorTypeEndpoint, 502},
		{"other", errors.New("boom"), ErrorTypeUnknown, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ClassifyError(tt.err, "m")
			assert.Equal(t, tt.want, got.Type)
			assert.Equal(t, tt.status, got.StatusCode)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.Nil(t, ClassifyError(nil, ""))
	existing := &Error{Type: ErrorTypeModel, Message: "x"}
	assert.Same(t, existing, ClassifyError(fmt.Errorf("wrap: %w", existing), ""))
}

func TestErrorString(t *testing.T) {
	t.Parallel()
	err := &Error{Type: ErrorTypeAuth, Message: "authentication failed", StatusCode: 401, Model: "m", Cause: errors.New("bad key")}
	assert.Equal(t, "auth HTTP 401 model=m authentication failed: bad key", err.Error())
}

func TestContextAwareTransport_NoHeaderWithoutSession(t *testing.T) {
	t.Parallel()
	present := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header[sessionIDHeader]
	}))
	defer server.Close()

	client := httpClient(time.Second)
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.False(t, present)
}
