package loader

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/perbu/ragstream/pkg/minirag"
)

// BatchEmbedder embeds many texts, reporting progress as it goes
type BatchEmbedder interface {
	EmbedBatchWithProgress(ctx context.Context, texts []string, progressFn func(int, int)) ([][]float32, error)
}

// Options selects the corpus to ingest
type Options struct {
	Root      string
	Exclude   []string
	ChunkSize int
}

// Stats summarises one ingestion run
type Stats struct {
	Documents int
	Chunks    int
}

// Ingest loads, chunks and embeds the corpus and adds it to index. Any
// failure aborts the whole load and leaves index untouched. progress may be nil.
func Ingest(ctx context.Context, fsys fs.FS, opts Options, emb BatchEmbedder, index *minirag.VectorIndex, progress ProgressReporter) (Stats, error) {
	chunks, docs, err := LoadAndChunkAll(fsys, opts.Root, opts.Exclude, opts.ChunkSize)
	if err != nil {
		return Stats{}, fmt.Errorf("loading documents: %w", err)
	}
	stats := Stats{Documents: docs, Chunks: len(chunks)}
	if len(chunks) == 0 {
		return stats, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	var onProgress func(int, int)
	if progress != nil {
		progress.Start(len(texts))
		defer progress.Finish()
		onProgress = func(int, int) { progress.Increment() }
	}

	embeddings, err := emb.EmbedBatchWithProgress(ctx, texts, onProgress)
	if err != nil {
		return Stats{}, fmt.Errorf("embedding chunks: %w", err)
	}

	if err := index.Add(embeddings, chunks); err != nil {
		return Stats{}, fmt.Errorf("building index: %w", err)
	}
	return stats, nil
}
