package minirag

import (
	"errors"
	"sync"
)

var (
	// ErrEmptyIndex is returned when a query is scored against an index with no vectors
	ErrEmptyIndex = errors.New("index is empty")
	// ErrLengthMismatch is returned when embeddings and chunks are not aligned
	ErrLengthMismatch = errors.New("embeddings and chunks differ in length")
	// ErrDimensionMismatch is returned when a vector does not match the index dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// MaxChunkChars is the upper bound on a chunk's content length, in characters
const MaxChunkChars = 1000

// Chunk represents a piece of a document with its content and metadata
type Chunk struct {
	Path    string // File path relative to the corpus directory
	Content string // The actual text content
	Heading string // Section heading if applicable
	Offset  int    // Byte offset in the extracted document text
}

// SearchResult represents a single search result with score
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// VectorIndex holds the in-memory vector index for similarity search.
// It is append-only; once ingestion is done it is only read.
type VectorIndex struct {
	mu         sync.RWMutex
	Chunks     []Chunk     // Document chunks
	Embeddings [][]float32 // Corresponding embeddings (chunk[i] ↔ embedding[i])
	Dimension  int         // Embedding vector dimension, fixed by the first Add
}
