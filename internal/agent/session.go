package agent

import (
	"github.com/google/uuid"

	"github.com/rickchristie/sqlagent-mcp/internal/llm"
)

// Session is the conversation owned by one agent. The system prompt is kept
// for the session's lifetime; other turns are windowed to the most recent
// maxMessages. A Session is not safe for concurrent use.
type Session struct {
	id          uuid.UUID
	system      llm.Message
	turns       []llm.Message
	maxMessages int
}

// NewSession starts a conversation with systemPrompt. maxMessages <= 0 keeps
// every turn.
func NewSession(systemPrompt string, maxMessages int) *Session {
	return &Session{
		id:          uuid.New(),
		system:      llm.Message{Role: llm.RoleSystem, Content: systemPrompt},
		maxMessages: maxMessages,
	}
}

// ID identifies the session in logs and backend requests.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Append adds a turn and applies the window.
func (s *Session) Append(role llm.Role, content string) {
	s.turns = append(s.turns, llm.Message{Role: role, Content: content})
	if s.maxMessages <= 0 || len(s.turns) <= s.maxMessages {
		return
	}
	drop := len(s.turns) - s.maxMessages
	// A window never opens on an assistant turn; some backends reject that.
	for drop < len(s.turns) && s.turns[drop].Role == llm.RoleAssistant {
		drop++
	}
	s.turns = append([]llm.Message(nil), s.turns[drop:]...)
}

// Messages returns the system prompt followed by the windowed turns.
func (s *Session) Messages() []llm.Message {
	out := make([]llm.Message, 0, len(s.turns)+1)
	out = append(out, s.system)
	return append(out, s.turns...)
}

// Len is the number of turns held, excluding the system prompt.
func (s *Session) Len() int {
	return len(s.turns)
}
