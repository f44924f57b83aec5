package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/perbu/ragstream/pkg/config"
	"github.com/perbu/ragstream/pkg/embedder"
	"github.com/perbu/ragstream/pkg/loader"
	"github.com/perbu/ragstream/pkg/minirag"
	"github.com/perbu/ragstream/pkg/retrieval"
)

func main() {
	// Load .env file if it exists (for API key)
	_ = godotenv.Load()

	// Parse command line flags
	top := flag.Int("top", 5, "number of results to return")
	threshold := flag.Float64("threshold", 0.0, "minimum similarity score")
	full := flag.Bool("full", false, "show full content instead of just paths")
	verbose := flag.Bool("verbose", false, "enable verbose output for debugging")
	contextSize := flag.Int("context", 0, "number of surrounding chunks to show for context")
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: ragsearch [options] <query>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	query := strings.Join(args, " ")

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	emb, err := embedder.NewOpenAIEmbedder(cfg.OpenAI, cfg.Corpus.Concurrency, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing embedder: %v\n", err)
		fmt.Fprintf(os.Stderr, "Set OPENAI_API_KEY in .env or the environment\n")
		os.Exit(1)
	}

	ctx := context.Background()

	// Step 1: Build the index from the corpus
	if *verbose {
		fmt.Printf("[DEBUG] Ingesting %s (model=%s)...\n", cfg.Corpus.Dir, emb.ModelInfo())
	}

	index := minirag.NewIndex()
	stats, err := loader.Ingest(ctx, os.DirFS(cfg.Corpus.Dir), loader.Options{
		Root:      ".",
		Exclude:   cfg.Corpus.Exclude,
		ChunkSize: cfg.Corpus.ChunkSize,
	}, emb, index, loader.NewProgress(loader.DefaultProgressEnabled()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building index: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("[DEBUG] Loaded %d chunks from %d documents (dim=%d)\n",
			stats.Chunks, stats.Documents, index.Dimension)
	}

	// Step 2: Embed query
	if *verbose {
		fmt.Printf("[DEBUG] Embedding query: %q\n", query)
	}

	queryEmbedding, err := emb.Embed(ctx, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error embedding query: %v\n", err)
		os.Exit(1)
	}

	// Step 3: Execute search
	if *verbose {
		fmt.Printf("[DEBUG] Searching with top=%d, threshold=%.2f\n", *top, *threshold)
	}

	results := minirag.Search(index, queryEmbedding, *top, float32(*threshold))

	if *verbose {
		fmt.Printf("[DEBUG] Found %d results\n\n", len(results))
	}

	// Step 4: Show what the server would do with this question
	printDecision(index, queryEmbedding, retrieval.NewPolicy(cfg.Retrieval))

	// Step 5: Display results
	if len(results) == 0 {
		fmt.Println("No results found")
		return
	}

	fmt.Printf("Found %d results:\n\n", len(results))
	for i, result := range results {
		fmt.Printf("Score: %.2f | %s", result.Score, result.Chunk.Path)
		if result.Chunk.Heading != "" {
			fmt.Printf(" [%s]", result.Chunk.Heading)
		}
		fmt.Println()

		if *full || *contextSize > 0 {
			fmt.Println()

			if *contextSize > 0 {
				surroundingChunks := findSurroundingChunks(index.Chunks, result.Chunk, *contextSize)

				for j, chunk := range surroundingChunks {
					if chunk.Path == result.Chunk.Path && chunk.Offset == result.Chunk.Offset {
						fmt.Printf(">>> MATCHED CHUNK <<<\n")
					}
					if chunk.Heading != "" {
						fmt.Printf("[%s]\n", chunk.Heading)
					}
					fmt.Printf("%s\n", chunk.Content)
					if j < len(surroundingChunks)-1 {
						fmt.Println()
					}
				}
			} else if *full {
				fmt.Printf("%s\n", result.Chunk.Content)
			}

			if i < len(results)-1 {
				fmt.Println("\n" + strings.Repeat("-", 80) + "\n")
			}
		}
	}
}

func printDecision(index *minirag.VectorIndex, query []float32, policy retrieval.Policy) {
	scores, err := index.ScoreQuery(query)
	if err != nil {
		fmt.Printf("Mode: general (%v)\n\n", err)
		return
	}
	d := policy.Decide(scores)
	fmt.Printf("Mode: %s | top score %.2f | threshold %.2f | %d chunk(s) in prompt\n\n",
		d.Mode, d.TopScore, policy.Threshold(d.TopScore), len(d.Chunks))
}

// findSurroundingChunks returns chunks before and after the target chunk from the same file
func findSurroundingChunks(chunks []minirag.Chunk, target minirag.Chunk, contextSize int) []minirag.Chunk {
	targetIdx := -1
	for i, chunk := range chunks {
		if chunk.Path == target.Path && chunk.Offset == target.Offset {
			targetIdx = i
			break
		}
	}

	if targetIdx == -1 {
		return []minirag.Chunk{target}
	}

	start := max(targetIdx-contextSize, 0)
	end := min(targetIdx+contextSize+1, len(chunks))

	var result []minirag.Chunk
	for i := start; i < end; i++ {
		if chunks[i].Path == target.Path {
			result = append(result, chunks[i])
		}
	}

	return result
}
