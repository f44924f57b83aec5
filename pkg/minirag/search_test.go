package minirag

import (
	"errors"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	a := []float32{0.3, -1.2, 4.5}
	b := []float32{2, 0.5, -1}

	if got := CosineSimilarity(a, a); math.Abs(float64(got)-1) > 1e-6 {
		t.Errorf("self similarity = %f, want 1", got)
	}
	if ab, ba := CosineSimilarity(a, b), CosineSimilarity(b, a); ab != ba {
		t.Errorf("similarity not symmetric: %f vs %f", ab, ba)
	}
	if got := CosineSimilarity(a, []float32{1, 2}); got != 0 {
		t.Errorf("mismatched lengths = %f, want 0", got)
	}
	if got := CosineSimilarity(a, []float32{0, 0, 0}); got != 0 {
		t.Errorf("zero vector = %f, want 0", got)
	}
}

func TestScoreQuery_Empty(t *testing.T) {
	ix := NewIndex()
	if _, err := ix.ScoreQuery([]float32{1, 0}); !errors.Is(err, ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
}

func TestScoreQuery_SortedStable(t *testing.T) {
	ix := NewIndex()
	err := ix.Add(
		[][]float32{{0, 1}, {1, 0}, {0, 2}, {1, 1}},
		[]Chunk{{Content: "a"}, {Content: "b"}, {Content: "c"}, {Content: "d"}},
	)
	if err != nil {
		t.Fatal(err)
	}

	results, err := ix.ScoreQuery([]float32{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	// b (1.0), d (0.707), then a and c tie at 0 in insertion order
	want := []string{"b", "d", "a", "c"}
	for i, w := range want {
		if results[i].Chunk.Content != w {
			t.Errorf("result %d = %q, want %q", i, results[i].Chunk.Content, w)
		}
	}
}

func TestAdd_Mismatch(t *testing.T) {
	ix := NewIndex()
	if err := ix.Add([][]float32{{1}}, nil); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
	if err := ix.Add([][]float32{{1, 2}}, []Chunk{{Content: "x"}}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Add([][]float32{{1, 2, 3}}, []Chunk{{Content: "y"}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if ix.Len() != 1 {
		t.Errorf("failed add must not modify the index, len=%d", ix.Len())
	}
}

func TestSearch(t *testing.T) {
	ix := NewIndex()
	_ = ix.Add(
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
		[]Chunk{{Content: "x"}, {Content: "y"}, {Content: "xy"}},
	)

	results := Search(ix, []float32{1, 0}, 5, 0.5)
	if len(results) != 2 {
		t.Fatalf("expected 2 results above threshold, got %d", len(results))
	}
	if results[0].Chunk.Content != "x" {
		t.Errorf("expected best match 'x', got %q", results[0].Chunk.Content)
	}

	if results := Search(ix, []float32{1, 0}, 1, 0); len(results) != 1 {
		t.Errorf("expected topK cut to 1, got %d", len(results))
	}
}
