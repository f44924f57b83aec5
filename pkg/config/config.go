package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration. It is built once at startup
// and passed by value; nothing reads it from a global.
type Config struct {
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Retrieval RetrievalConfig `yaml:"retrieval,omitempty"`
	Corpus    CorpusConfig    `yaml:"corpus,omitempty"`
	Stream    StreamConfig    `yaml:"stream,omitempty"`
	Server    ServerConfig    `yaml:"server,omitempty"`
	Log       LogConfig       `yaml:"log,omitempty"`
}

// OpenAIConfig holds provider settings shared by chat and embeddings
type OpenAIConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url,omitempty"` // OpenAI-compatible endpoint, e.g. https://api.openai.com/v1
	ChatModel      string  `yaml:"chat_model,omitempty"`
	EmbeddingModel string  `yaml:"embedding_model,omitempty"`
	Temperature    float32 `yaml:"temperature,omitempty"`
}

// RetrievalConfig holds the retrieval policy knobs
type RetrievalConfig struct {
	TopK            int     `yaml:"top_k,omitempty"`
	ConfidenceFloor float32 `yaml:"confidence_floor,omitempty"` // below this the question goes to general mode
	LowThreshold    float32 `yaml:"low_threshold,omitempty"`    // chunk threshold when the top score is <= 0.8
}

// CorpusConfig describes where documents come from
type CorpusConfig struct {
	Dir         string   `yaml:"dir,omitempty"`
	Exclude     []string `yaml:"exclude,omitempty"` // doublestar patterns, relative to Dir
	ChunkSize   int      `yaml:"chunk_size,omitempty"`
	Concurrency int      `yaml:"concurrency,omitempty"` // concurrent embedding requests
}

// StreamConfig controls pacing of the SSE response
type StreamConfig struct {
	StartThreshold int           `yaml:"start_threshold,omitempty"` // characters buffered before streaming starts
	StartTimeout   time.Duration `yaml:"start_timeout,omitempty"`
	MinDelta       int           `yaml:"min_delta,omitempty"` // smallest increment sent outside a flush tick
	FlushInterval  time.Duration `yaml:"flush_interval,omitempty"`
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string `yaml:"level,omitempty"` // debug | info | warn | error
	Development bool   `yaml:"development,omitempty"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		OpenAI: OpenAIConfig{
			BaseURL:        "https://api.openai.com/v1",
			ChatModel:      "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.2,
		},
		Retrieval: RetrievalConfig{
			TopK:            4,
			ConfidenceFloor: 0.25,
			LowThreshold:    0.5,
		},
		Corpus: CorpusConfig{
			Dir:         "docs",
			ChunkSize:   1000,
			Concurrency: 10,
		},
		Stream: StreamConfig{
			StartThreshold: 128,
			StartTimeout:   time.Second,
			MinDelta:       8,
			FlushInterval:  120 * time.Millisecond,
		},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins).
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return Config{}, &ConfigNotFoundError{RequestedPath: path}
			}
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, fmt.Errorf("failed to apply environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ConfigNotFoundError is returned when an explicit config path does not exist
type ConfigNotFoundError struct {
	RequestedPath string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s", e.RequestedPath)
}

// IsConfigNotFound checks if error is config not found
func IsConfigNotFound(err error) bool {
	var nf *ConfigNotFoundError
	return errors.As(err, &nf)
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"OPENAI_API_KEY":      &c.OpenAI.APIKey,
		"OPENAI_BASE_URL":     &c.OpenAI.BaseURL,
		"RAG_CHAT_MODEL":      &c.OpenAI.ChatModel,
		"RAG_EMBEDDING_MODEL": &c.OpenAI.EmbeddingModel,
		"RAG_DOCS_DIR":        &c.Corpus.Dir,
		"RAG_ADDR":            &c.Server.Addr,
		"RAG_LOG_LEVEL":       &c.Log.Level,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("RAG_TOP_K"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RAG_TOP_K: %w", err)
		}
		c.Retrieval.TopK = n
	}
	if v := os.Getenv("RAG_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("RAG_TEMPERATURE: %w", err)
		}
		c.OpenAI.Temperature = float32(f)
	}
	return nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.ConfidenceFloor < -1 || c.Retrieval.ConfidenceFloor > 1 {
		return fmt.Errorf("retrieval.confidence_floor must be in [-1,1], got %v", c.Retrieval.ConfidenceFloor)
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return fmt.Errorf("openai.temperature must be in [0,2], got %v", c.OpenAI.Temperature)
	}
	if c.Corpus.ChunkSize <= 0 || c.Corpus.ChunkSize > 1000 {
		return fmt.Errorf("corpus.chunk_size must be in (0,1000], got %d", c.Corpus.ChunkSize)
	}
	if c.Corpus.Concurrency <= 0 {
		return fmt.Errorf("corpus.concurrency must be positive, got %d", c.Corpus.Concurrency)
	}
	if c.Stream.StartThreshold <= 0 || c.Stream.MinDelta <= 0 {
		return errors.New("stream.start_threshold and stream.min_delta must be positive")
	}
	if c.Stream.StartTimeout <= 0 || c.Stream.FlushInterval <= 0 {
		return errors.New("stream.start_timeout and stream.flush_interval must be positive")
	}
	return nil
}
