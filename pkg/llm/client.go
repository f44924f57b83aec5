package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/perbu/ragstream/pkg/config"
)

// Client talks to an OpenAI-compatible /chat/completions endpoint and always
// asks for a streamed response. The SSE body is parsed here rather than by
// go-openai so that malformed lines can be skipped instead of failing the stream.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float32
	http        *http.Client
}

// NewClient creates a chat client. A nil httpClient uses a client without a
// timeout; request lifetime is bounded by the context instead.
func NewClient(cfg config.OpenAIConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.ChatModel,
		temperature: cfg.Temperature,
		http:        httpClient,
	}
}

// Stream starts a streamed completion with the configured model and returns
// a TokenStream of content deltas.
func (c *Client) Stream(ctx context.Context, messages []openai.ChatCompletionMessage) (TokenStream, error) {
	resp, err := c.open(ctx, c.model, messages)
	if err != nil {
		return nil, err
	}
	return &ChatStream{lines: newLineReader(resp.Body)}, nil
}

// StreamRaw starts a streamed completion and returns the provider's data
// lines untouched. An empty model falls back to the configured one.
func (c *Client) StreamRaw(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (*LineStream, error) {
	if model == "" {
		model = c.model
	}
	resp, err := c.open(ctx, model, messages)
	if err != nil {
		return nil, err
	}
	return &LineStream{lines: newLineReader(resp.Body)}, nil
}

func (c *Client) open(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (*http.Response, error) {
	body, err := json.Marshal(openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: c.temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &HTTPError{Op: "chat", StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(data)))}
	}
	return resp, nil
}
