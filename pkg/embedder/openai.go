package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/perbu/ragstream/pkg/config"
	"github.com/perbu/ragstream/pkg/llm"
)

var _ Embedder = (*OpenAIEmbedder)(nil)

// OpenAIEmbedder uses OpenAI API for embeddings
type OpenAIEmbedder struct {
	client      *openai.Client
	model       string
	dim         int
	concurrency int
}

// NewOpenAIEmbedder creates an OpenAI embedder. concurrency bounds the number
// of in-flight requests in EmbedBatch.
func NewOpenAIEmbedder(cfg config.OpenAIConfig, concurrency int, httpClient *http.Client) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is not set")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}

	// Set dimension based on model
	dim := 1536 // default for text-embedding-3-small
	if cfg.EmbeddingModel == "text-embedding-3-large" {
		dim = 3072
	}

	if concurrency <= 0 {
		concurrency = 10
	}

	return &OpenAIEmbedder{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.EmbeddingModel,
		dim:         dim,
		concurrency: concurrency,
	}, nil
}

// Embed generates an embedding for a single text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	// Validate input
	if len(text) == 0 {
		return nil, fmt.Errorf("%w: cannot embed empty text", ErrEmbeddingFailure)
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, providerError(err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding data returned from API", ErrEmbeddingFailure)
	}

	v := make([]float32, len(resp.Data[0].Embedding))
	copy(v, resp.Data[0].Embedding)

	// L2 normalize (important for cosine similarity)
	l2normalize(v)

	return v, nil
}

// providerError maps go-openai errors onto llm.HTTPError so callers see one
// error type for non-success statuses from either provider.
func providerError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &llm.HTTPError{Op: "embeddings", StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.HTTPError{Op: "embeddings", StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return fmt.Errorf("OpenAI API error: %w", err)
}

// EmbedBatch generates embeddings for multiple texts with parallel processing
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedBatchWithProgress(ctx, texts, nil)
}

// EmbedBatchWithProgress generates embeddings with optional progress callback
// progressFn is called with (completed, total) after each embedding.
// The first failure cancels the remaining requests and is returned.
func (e *OpenAIEmbedder) EmbedBatchWithProgress(ctx context.Context, texts []string, progressFn func(int, int)) ([][]float32, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	embeddings := make([][]float32, len(texts))
	errChan := make(chan error, len(texts))
	sem := make(chan struct{}, e.concurrency)

	for i := range texts {
		sem <- struct{}{} // Acquire semaphore
		go func(idx int) {
			defer func() { <-sem }() // Release semaphore

			emb, err := e.Embed(ctx, texts[idx])
			if err != nil {
				errChan <- fmt.Errorf("text %d: %w", idx, err)
				return
			}
			embeddings[idx] = emb
			errChan <- nil
		}(i)
	}

	// Wait for all goroutines to complete and track progress
	var firstErr error
	for i := 0; i < len(texts); i++ {
		if err := <-errChan; err != nil {
			if firstErr == nil {
				firstErr = err
				cancel()
			}
			continue
		}
		if progressFn != nil {
			progressFn(i+1, len(texts))
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	return embeddings, nil
}

// Dimension returns the embedding dimension
func (e *OpenAIEmbedder) Dimension() int {
	return e.dim
}

// ModelInfo returns model information
func (e *OpenAIEmbedder) ModelInfo() string {
	return "openai-" + e.model
}

// l2normalize normalizes a vector to unit length
func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
