package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Sink is the client side of a stream session. All methods may be called
// only from the goroutine driving the session.
type Sink interface {
	// Open sends headers and the keep-alive comment. Calling it again is a no-op.
	Open() error
	Send(source, content string) error
	Fail(msg string) error
	Done() error
}

// Event is one content event on the wire
type Event struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

type errorEvent struct {
	Error string `json:"error"`
}

// SSEWriter writes server-sent events to an HTTP response
type SSEWriter struct {
	w      http.ResponseWriter
	fl     http.Flusher
	opened bool
}

// NewSSEWriter wraps w. Flushing is skipped when w does not support it.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	fl, _ := w.(http.Flusher)
	return &SSEWriter{w: w, fl: fl}
}

// Open writes the SSE headers and a single comment line
func (s *SSEWriter) Open() error {
	if s.opened {
		return nil
	}
	s.opened = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	return s.write(": connected\n\n")
}

// Send writes one content event
func (s *SSEWriter) Send(source, content string) error {
	b, err := json.Marshal(Event{Source: source, Content: content})
	if err != nil {
		return err
	}
	return s.data(string(b))
}

// Fail writes an error event
func (s *SSEWriter) Fail(msg string) error {
	b, err := json.Marshal(errorEvent{Error: msg})
	if err != nil {
		return err
	}
	return s.data(string(b))
}

// Done writes the terminal marker
func (s *SSEWriter) Done() error {
	return s.data("[DONE]")
}

// Raw writes a line that is already in "data: ..." form
func (s *SSEWriter) Raw(line string) error {
	if err := s.Open(); err != nil {
		return err
	}
	return s.write(line + "\n\n")
}

func (s *SSEWriter) data(payload string) error {
	if err := s.Open(); err != nil {
		return err
	}
	return s.write(fmt.Sprintf("data: %s\n\n", payload))
}

func (s *SSEWriter) write(text string) error {
	if _, err := io.WriteString(s.w, text); err != nil {
		return err
	}
	if s.fl != nil {
		s.fl.Flush()
	}
	return nil
}
