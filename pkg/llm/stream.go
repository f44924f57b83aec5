package llm

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const doneMarker = "[DONE]"

// lineReader pulls "data:" lines out of an SSE body.
type lineReader struct {
	body io.ReadCloser
	r    *bufio.Reader
	err  error
}

func newLineReader(body io.ReadCloser) *lineReader {
	return &lineReader{body: body, r: bufio.NewReader(body)}
}

// next returns the next data line and its payload. It returns io.EOF at
// the [DONE] marker or at the end of the body.
func (l *lineReader) next() (line, payload string, err error) {
	for {
		if l.err != nil {
			return "", "", l.err
		}
		raw, err := l.r.ReadString('\n')
		if err != nil {
			l.err = err
			if raw == "" {
				return "", "", err
			}
		}
		line = strings.TrimRight(raw, "\r\n")
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == doneMarker {
			l.err = io.EOF
			return "", "", io.EOF
		}
		return line, payload, nil
	}
}

func (l *lineReader) close() error {
	return l.body.Close()
}

// ChatStream decodes content deltas from a streamed chat completion.
type ChatStream struct {
	lines *lineReader
}

// Recv returns the next non-empty content delta. Lines that do not decode are
// skipped; a provider can split a JSON object across writes.
func (s *ChatStream) Recv() (string, error) {
	for {
		_, payload, err := s.lines.next()
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return "", io.EOF
			}
			return "", err
		}
		var chunk openai.ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}
}

// Close releases the underlying HTTP body
func (s *ChatStream) Close() error { return s.lines.close() }

// LineStream yields the provider's raw data lines for passthrough.
type LineStream struct {
	lines *lineReader
}

// Next returns the next raw "data: ..." line, or io.EOF after the last one.
// The provider's own [DONE] line is not returned.
func (s *LineStream) Next() (string, error) {
	line, _, err := s.lines.next()
	return line, err
}

// Close releases the underlying HTTP body
func (s *LineStream) Close() error { return s.lines.close() }
