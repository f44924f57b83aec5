package embedder

import (
	"context"
	"errors"
)

// ErrEmbeddingFailure is returned when the provider gives back no usable vector
var ErrEmbeddingFailure = errors.New("embedding failure")

// Embedder interface for generating embeddings
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelInfo() string
}
