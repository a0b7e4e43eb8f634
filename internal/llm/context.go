package llm

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const sessionIDKey contextKey = "llm_session_id"

// sessionIDHeader carries the agent session id on every backend request so
// provider-side logs can be correlated with ours.
const sessionIDHeader = "X-Session-Id"

// WithSessionID attaches an agent session id to ctx.
func WithSessionID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID returns the session id attached to ctx, if any.
func SessionID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(sessionIDKey).(uuid.UUID)
	return id, ok
}

// contextAwareTransport copies the session id from the request context into
// a header.
type contextAwareTransport struct {
	base http.RoundTripper
}

func (t *contextAwareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	id, ok := SessionID(req.Context())
	if !ok {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set(sessionIDHeader, id.String())
	return t.base.RoundTrip(req)
}
