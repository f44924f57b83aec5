package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/perbu/ragstream/pkg/config"
	"github.com/perbu/ragstream/pkg/embedder"
	"github.com/perbu/ragstream/pkg/llm"
	"github.com/perbu/ragstream/pkg/loader"
	"github.com/perbu/ragstream/pkg/logging"
	"github.com/perbu/ragstream/pkg/minirag"
	"github.com/perbu/ragstream/pkg/retrieval"
	"github.com/perbu/ragstream/pkg/server"
	"github.com/perbu/ragstream/pkg/stream"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file if it exists (for API key)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to a YAML config file")
	addr := flag.String("addr", "", "listen address, overrides the config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	emb, err := embedder.NewOpenAIEmbedder(cfg.OpenAI, cfg.Corpus.Concurrency, nil)
	if err != nil {
		return fmt.Errorf("initializing embedder: %w", err)
	}

	index := minirag.NewIndex()
	started := time.Now()
	stats, err := loader.Ingest(ctx, os.DirFS(cfg.Corpus.Dir), loader.Options{
		Root:      ".",
		Exclude:   cfg.Corpus.Exclude,
		ChunkSize: cfg.Corpus.ChunkSize,
	}, emb, index, loader.NewProgress(loader.DefaultProgressEnabled()))
	switch {
	case ctx.Err() != nil:
		return nil
	case err != nil:
		log.Error("ingestion failed, serving without documents",
			zap.String("dir", cfg.Corpus.Dir), zap.Error(err))
	default:
		log.Info("corpus ingested",
			zap.String("dir", cfg.Corpus.Dir),
			zap.Int("documents", stats.Documents),
			zap.Int("chunks", stats.Chunks),
			zap.String("model", emb.ModelInfo()),
			zap.Duration("took", time.Since(started)))
	}

	client := llm.NewClient(cfg.OpenAI, nil)
	srv := server.New(server.Deps{
		Index:      index,
		Embedder:   emb,
		Policy:     retrieval.NewPolicy(cfg.Retrieval),
		Controller: stream.NewController(client, stream.PacingFromConfig(cfg.Stream), log),
		Chat:       client,
		Log:        log,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// open streams end when a signal arrives
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("chat_model", cfg.OpenAI.ChatModel))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
