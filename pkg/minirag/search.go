package minirag

import (
	"fmt"
	"math"
	"sort"
)

// CosineSimilarity computes the cosine similarity between two vectors
// Returns a value between -1 and 1, where 1 means identical direction
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// NewIndex returns an empty index. The dimension is taken from the first vector added.
func NewIndex() *VectorIndex {
	return &VectorIndex{}
}

// Add appends embeddings and their chunks, aligned by position.
func (ix *VectorIndex) Add(embeddings [][]float32, chunks []Chunk) error {
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: %d embeddings, %d chunks", ErrLengthMismatch, len(embeddings), len(chunks))
	}
	if len(embeddings) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	dim := ix.Dimension
	if dim == 0 {
		dim = len(embeddings[0])
	}
	for i, v := range embeddings {
		if len(v) != dim || dim == 0 {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}

	ix.Dimension = dim
	ix.Embeddings = append(ix.Embeddings, embeddings...)
	ix.Chunks = append(ix.Chunks, chunks...)
	return nil
}

// Len returns the number of indexed chunks
func (ix *VectorIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.Chunks)
}

// ScoreQuery scores every chunk against the query and returns them sorted by
// similarity, highest first. Equal scores keep insertion order.
func (ix *VectorIndex) ScoreQuery(query []float32) ([]SearchResult, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.Embeddings) == 0 {
		return nil, ErrEmptyIndex
	}

	results := make([]SearchResult, len(ix.Chunks))
	for i := range ix.Chunks {
		results[i] = SearchResult{
			Chunk: ix.Chunks[i],
			Score: CosineSimilarity(query, ix.Embeddings[i]),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}

// Search performs similarity search on the vector index
// Returns top-k results at or above threshold, sorted by similarity score (highest first)
func Search(index *VectorIndex, queryEmbedding []float32, topK int, threshold float32) []SearchResult {
	scored, err := index.ScoreQuery(queryEmbedding)
	if err != nil {
		return nil
	}

	results := scored[:0]
	for _, r := range scored {
		// Scores are sorted, so the first miss ends the run
		if r.Score < threshold {
			break
		}
		results = append(results, r)
	}

	// Return top-k results
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}

	return results
}
