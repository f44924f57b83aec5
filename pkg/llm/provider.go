package llm

import (
	"fmt"
)

// TokenStream yields content deltas from a streamed completion.
// Recv returns io.EOF once the provider signals the end of the stream.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// HTTPError is returned when a provider answers with a non-success status.
// It is never retried.
type HTTPError struct {
	Op         string // "chat" or "embeddings"
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s http %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s http %d: %s", e.Op, e.StatusCode, e.Body)
}

const maxErrorBody = 512

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "..."
}
