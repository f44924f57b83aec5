// Package retrieval decides, from ranked similarity scores, whether a question
// is answered from the documents and which chunks go into the prompt.
package retrieval

import (
	"github.com/perbu/ragstream/pkg/config"
	"github.com/perbu/ragstream/pkg/minirag"
)

// Mode selects where an answer comes from
type Mode int

const (
	// ModeGeneral answers from the model's own knowledge
	ModeGeneral Mode = iota
	// ModeDocs answers strictly from retrieved chunks
	ModeDocs
)

func (m Mode) String() string {
	if m == ModeDocs {
		return "docs"
	}
	return "general"
}

// Policy holds the adaptive threshold settings
type Policy struct {
	TopK            int
	ConfidenceFloor float32
	HighThreshold   float32 // used when the top score is above 0.9
	MidThreshold    float32 // used when the top score is above 0.8
	LowThreshold    float32
}

// Decision is the outcome of applying a Policy to one query
type Decision struct {
	Mode     Mode
	TopScore float32
	Chunks   []minirag.SearchResult
}

// NewPolicy builds a Policy from configuration
func NewPolicy(cfg config.RetrievalConfig) Policy {
	return Policy{
		TopK:            cfg.TopK,
		ConfidenceFloor: cfg.ConfidenceFloor,
		HighThreshold:   0.75,
		MidThreshold:    0.70,
		LowThreshold:    cfg.LowThreshold,
	}
}

// Threshold returns the chunk score cut-off for a given top score
func (p Policy) Threshold(top float32) float32 {
	switch {
	case top > 0.9:
		return p.HighThreshold
	case top > 0.8:
		return p.MidThreshold
	default:
		return p.LowThreshold
	}
}

// Decide applies the policy to scores sorted highest first.
// Below the confidence floor the question goes to general mode with no
// chunks. Otherwise chunks at or above the adaptive threshold are kept, up to
// TopK; if none pass, the first TopK are used as they are.
func (p Policy) Decide(scores []minirag.SearchResult) Decision {
	var top float32
	if len(scores) > 0 {
		top = scores[0].Score
	}
	if len(scores) == 0 || top < p.ConfidenceFloor {
		return Decision{Mode: ModeGeneral, TopScore: top}
	}

	k := p.TopK
	if k <= 0 {
		k = 1
	}

	threshold := p.Threshold(top)
	chosen := make([]minirag.SearchResult, 0, k)
	for _, s := range scores {
		if len(chosen) == k {
			break
		}
		if s.Score >= threshold {
			chosen = append(chosen, s)
		}
	}

	if len(chosen) == 0 {
		n := min(k, len(scores))
		chosen = append(chosen, scores[:n]...)
	}

	return Decision{Mode: ModeDocs, TopScore: top, Chunks: chosen}
}
