// Package server exposes the question answering endpoints over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/perbu/ragstream/pkg/chitchat"
	"github.com/perbu/ragstream/pkg/llm"
	"github.com/perbu/ragstream/pkg/logging"
	"github.com/perbu/ragstream/pkg/minirag"
	"github.com/perbu/ragstream/pkg/retrieval"
	"github.com/perbu/ragstream/pkg/stream"
)

// Index is the read side of the vector index
type Index interface {
	ScoreQuery(query []float32) ([]minirag.SearchResult, error)
	Len() int
}

// QueryEmbedder embeds a single question
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RawChat streams provider lines for the passthrough endpoint
type RawChat interface {
	StreamRaw(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (*llm.LineStream, error)
}

// Deps are the collaborators a Server needs
type Deps struct {
	Index      Index
	Embedder   QueryEmbedder
	Policy     retrieval.Policy
	Controller *stream.Controller
	Chat       RawChat
	Log        *zap.Logger
}

// Server handles /api/ask, /api/chat and /healthz
type Server struct {
	index      Index
	embedder   QueryEmbedder
	policy     retrieval.Policy
	controller *stream.Controller
	chat       RawChat
	log        *zap.Logger
}

// New creates a Server
func New(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		index:      d.Index,
		embedder:   d.Embedder,
		policy:     d.Policy,
		controller: d.Controller,
		chat:       d.Chat,
		log:        log,
	}
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/ask", s.handleAsk)
	mux.HandleFunc("/api/chat", s.handleChat)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "chunks": s.index.Len()})
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var question string
	switch r.Method {
	case http.MethodGet:
		question = r.URL.Query().Get("question")
	case http.MethodPost:
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		question = req.Question
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	question = strings.TrimSpace(question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	log := s.log.With(zap.String("session", uuid.NewString()))
	ctx := logging.WithContext(r.Context(), log)
	sink := stream.NewSSEWriter(w)

	decision, err := s.route(ctx, question)
	if err != nil {
		if ctx.Err() != nil {
			log.Debug("client disconnected before streaming")
			return
		}
		log.Warn("retrieval failed", zap.Error(err))
		_ = sink.Fail("retrieval failed: " + stream.ClientMessage(err))
		return
	}

	log.Info("routing",
		zap.Stringer("mode", decision.Mode),
		zap.Float32("top_score", decision.TopScore),
		zap.Int("chunks", len(decision.Chunks)))

	if err := s.controller.Run(ctx, sink, decision.Mode, decision.Messages(question)); err != nil {
		log.Debug("stream ended with error", zap.Error(err))
	}
}

// route picks docs or general mode. Chitchat never touches the index or the
// embedder.
func (s *Server) route(ctx context.Context, question string) (retrieval.Decision, error) {
	if chitchat.IsChitchat(question) {
		return retrieval.Decision{Mode: retrieval.ModeGeneral}, nil
	}
	if s.index.Len() == 0 {
		return retrieval.Decision{Mode: retrieval.ModeGeneral}, nil
	}

	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return retrieval.Decision{}, err
	}

	scores, err := s.index.ScoreQuery(vec)
	if errors.Is(err, minirag.ErrEmptyIndex) {
		return retrieval.Decision{Mode: retrieval.ModeGeneral}, nil
	}
	if err != nil {
		return retrieval.Decision{}, err
	}
	return s.policy.Decide(scores), nil
}

type chatRequest struct {
	Model    string                         `json:"model"`
	Messages []openai.ChatCompletionMessage `json:"messages"`
}

// handleChat relays a chat completion stream without touching its content.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages is required")
		return
	}

	ctx := r.Context()
	log := s.log.With(zap.String("session", uuid.NewString()))
	sink := stream.NewSSEWriter(w)

	ls, err := s.chat.StreamRaw(ctx, req.Model, req.Messages)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("upstream failed", zap.Error(err))
		_ = sink.Fail(stream.ClientMessage(err))
		return
	}
	defer ls.Close()

	if err := sink.Open(); err != nil {
		return
	}
	for {
		line, err := ls.Next()
		if errors.Is(err, io.EOF) {
			_ = sink.Done()
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				log.Debug("client disconnected")
				return
			}
			log.Warn("upstream read failed", zap.Error(err))
			_ = sink.Fail(stream.ClientMessage(err))
			return
		}
		if ctx.Err() != nil {
			return
		}
		if err := sink.Raw(line); err != nil {
			log.Debug("client write failed", zap.Error(err))
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
