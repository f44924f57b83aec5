package retrieval

import (
	"math/rand"
	"sort"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/perbu/ragstream/pkg/config"
	"github.com/perbu/ragstream/pkg/minirag"
	"github.com/perbu/ragstream/pkg/stripper"
)

func testPolicy() Policy {
	return NewPolicy(config.RetrievalConfig{TopK: 4, ConfidenceFloor: 0.25, LowThreshold: 0.5})
}

func scores(vals ...float32) []minirag.SearchResult {
	out := make([]minirag.SearchResult, len(vals))
	for i, v := range vals {
		out[i] = minirag.SearchResult{Score: v, Chunk: minirag.Chunk{Content: string(rune('a' + i))}}
	}
	return out
}

func TestDecide(t *testing.T) {
	cases := []struct {
		name   string
		scores []minirag.SearchResult
		mode   Mode
		chunks int
	}{
		{"no scores", nil, ModeGeneral, 0},
		{"below floor", scores(0.24, 0.1), ModeGeneral, 0},
		{"at floor, none pass low threshold", scores(0.25, 0.2, 0.1, 0.05, 0.01, 0), ModeDocs, 4},
		{"high confidence keeps tight set", scores(0.95, 0.8, 0.74, 0.6), ModeDocs, 2},
		{"mid confidence", scores(0.85, 0.71, 0.69), ModeDocs, 2},
		{"low threshold", scores(0.6, 0.55, 0.49), ModeDocs, 2},
		{"capped at topK", scores(0.99, 0.98, 0.97, 0.96, 0.95, 0.94), ModeDocs, 4},
	}
	p := testPolicy()
	for _, c := range cases {
		d := p.Decide(c.scores)
		if d.Mode != c.mode || len(d.Chunks) != c.chunks {
			t.Errorf("%s: got mode=%v chunks=%d, want mode=%v chunks=%d", c.name, d.Mode, len(d.Chunks), c.mode, c.chunks)
		}
	}
}

func TestDecide_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for topK := 1; topK <= 6; topK++ {
		p := NewPolicy(config.RetrievalConfig{TopK: topK, ConfidenceFloor: 0.25, LowThreshold: 0.5})
		for iter := 0; iter < 200; iter++ {
			n := rng.Intn(10)
			vals := make([]float32, n)
			for i := range vals {
				vals[i] = rng.Float32()*2 - 1
			}
			sort.Slice(vals, func(i, j int) bool { return vals[i] > vals[j] })

			d := p.Decide(scores(vals...))
			if len(d.Chunks) > topK {
				t.Fatalf("topK=%d: got %d chunks", topK, len(d.Chunks))
			}
			if n > 0 && vals[0] >= 0.25 && len(d.Chunks) == 0 {
				t.Fatalf("topK=%d top=%f: expected at least one chunk", topK, vals[0])
			}
			if d.Mode == ModeGeneral && len(d.Chunks) != 0 {
				t.Fatalf("general mode must carry no chunks")
			}
		}
	}
}

func TestMessages(t *testing.T) {
	d := testPolicy().Decide([]minirag.SearchResult{
		{Score: 0.9, Chunk: minirag.Chunk{Path: "guide.txt", Content: "Refunds take 5 days."}},
	})
	msgs := d.Messages("How long do refunds take?")
	if len(msgs) != 2 || msgs[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, "Refunds take 5 days.") || !strings.Contains(msgs[0].Content, stripper.FallbackSentence) {
		t.Errorf("system prompt missing context or fallback sentence: %q", msgs[0].Content)
	}
	if msgs[1].Content != "How long do refunds take?" {
		t.Errorf("user message = %q", msgs[1].Content)
	}

	general := Decision{Mode: ModeGeneral}.Messages("hi")
	if strings.Contains(general[0].Content, "CONTEXT") {
		t.Error("general prompt must not carry document context")
	}
}
