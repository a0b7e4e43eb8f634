// Package chatapi serves the agent over HTTP: GET / reports liveness and
// POST /chat answers one question with a fresh agent.
package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rickchristie/sqlagent-mcp/internal/agent"
)

const (
	upMessage   = "AI SQL Agent API is up"
	maxBodySize = 1 << 20
)

// Answerer answers one question.
type Answerer interface {
	Answer(ctx context.Context, question string) (*agent.Answer, error)
}

// Factory builds the agent for one request. release is called when the
// request is done.
type Factory func(ctx context.Context) (a Answerer, release func(), err error)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Question string `json:"question"`
}

// ChatResponse is the body of a handled POST /chat.
type ChatResponse struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
	Result      string `json:"result"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// NewHandler returns the API routes.
func NewHandler(factory Factory, logger zerolog.Logger) http.Handler {
	h := &handler{factory: factory, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.root)
	mux.HandleFunc("POST /chat", h.chat)
	return mux
}

type handler struct {
	factory Factory
	logger  zerolog.Logger
}

func (h *handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": upMessage})
}

// chat maps language-model failures to HTTP 500 with a detail message. Every
// other failure is a 200 whose result carries the error text.
func (h *handler) chat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "invalid request: " + err.Error()})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "question is required"})
		return
	}

	a, release, err := h.factory(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("/chat failed to start agent")
		writeJSON(w, http.StatusOK, ChatResponse{Result: "Error: " + err.Error()})
		return
	}
	ans, err := a.Answer(r.Context(), question)
	release()
	if err != nil {
		if agent.IsBackendFailure(err) {
			h.logger.Error().Err(err).Msg("/chat backend error")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
			return
		}
		h.logger.Error().Err(err).Msg("/chat unexpected error")
		writeJSON(w, http.StatusOK, ChatResponse{Result: "Error: " + err.Error()})
		return
	}

	h.logger.Info().
		Int("question_length", len(question)).
		Int("sql_length", len(ans.SQL)).
		Bool("is_error", ans.IsError).
		Dur("duration", time.Since(start)).
		Msg("/chat answered")
	writeJSON(w, http.StatusOK, ChatResponse{SQL: ans.SQL, Explanation: ans.Explanation, Result: ans.Result})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
