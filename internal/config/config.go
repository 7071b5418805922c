// Package config provides configuration loading for ragd.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for ragd.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Generation GenerationConfig `koanf:"generation"`
	Chunking   ChunkingConfig   `koanf:"chunking"`
	Store      StoreConfig      `koanf:"store"`
	Qdrant     QdrantConfig     `koanf:"qdrant"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Temporal   TemporalConfig   `koanf:"temporal"`
	Eval       EvalConfig       `koanf:"eval"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// EmbeddingConfig configures the embedding provider.
//
// BaseURL accepts any OpenAI-compatible endpoint, so local TEI servers work
// the same way as the OpenAI API.
type EmbeddingConfig struct {
	BaseURL    string   `koanf:"base_url"`
	Model      string   `koanf:"model"`
	Dimension  int      `koanf:"dimension"`
	APIKey     Secret   `koanf:"api_key"`
	BatchSize  int      `koanf:"batch_size"`
	MaxRetries int      `koanf:"max_retries"`
	Timeout    Duration `koanf:"timeout"`
}

// GenerationConfig configures the generative model used for answers.
type GenerationConfig struct {
	BaseURL     string  `koanf:"base_url"`
	Model       string  `koanf:"model"`
	APIKey      Secret  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
	MaxRetries  int     `koanf:"max_retries"`
}

// ChunkingConfig controls document splitting.
type ChunkingConfig struct {
	Size    int `koanf:"size"`
	Overlap int `koanf:"overlap"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	// Backend is "qdrant" or "chromem".
	Backend    string `koanf:"backend"`
	Collection string `koanf:"collection"`
	// Path is the chromem persistence directory (chromem backend only).
	Path string `koanf:"path"`
}

// QdrantConfig holds Qdrant connection settings (qdrant backend only).
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`
}

// RetrievalConfig controls the query path.
type RetrievalConfig struct {
	TopK int `koanf:"top_k"`
}

// TemporalConfig holds workflow engine connection settings.
type TemporalConfig struct {
	HostPort  string `koanf:"host_port"`
	Namespace string `koanf:"namespace"`
	TaskQueue string `koanf:"task_queue"`
}

// EvalConfig controls the evaluation harness.
type EvalConfig struct {
	OutputDir string `koanf:"output_dir"`
}

// TelemetryConfig controls OTEL export.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"`
	Insecure       bool     `koanf:"insecure"`
	ServiceName    string   `koanf:"service_name"`
	ServiceVersion string   `koanf:"service_version"`
	SampleRate     float64  `koanf:"sample_rate"`
	ExportInterval Duration `koanf:"export_interval"`
}

// NewDefaultConfig returns the built-in defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Embedding: EmbeddingConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "text-embedding-3-large",
			Dimension:  3072,
			BatchSize:  64,
			MaxRetries: 3,
			Timeout:    Duration(30 * time.Second),
		},
		Generation: GenerationConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   1024,
			MaxRetries:  3,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Store: StoreConfig{
			Backend:    "qdrant",
			Collection: "documents",
			Path:       "~/.local/share/ragd/vectorstore",
		},
		Qdrant: QdrantConfig{
			Host: "localhost",
			Port: 6334,
		},
		Retrieval: RetrievalConfig{
			TopK: 5,
		},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "ragd-ingestion",
		},
		Eval: EvalConfig{
			OutputDir: ".",
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			Endpoint:       "localhost:4317",
			Protocol:       "grpc",
			Insecure:       true,
			ServiceName:    "ragd",
			ServiceVersion: "0.1.0",
			SampleRate:     1.0,
			ExportInterval: Duration(15 * time.Second),
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding model is required")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding batch size must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Generation.Model == "" {
		return fmt.Errorf("generation model is required")
	}
	if c.Generation.MaxTokens <= 0 {
		return fmt.Errorf("generation max tokens must be positive, got %d", c.Generation.MaxTokens)
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunk overlap must satisfy 0 <= overlap < size, got overlap=%d size=%d",
			c.Chunking.Overlap, c.Chunking.Size)
	}
	switch c.Store.Backend {
	case "qdrant", "chromem":
	default:
		return fmt.Errorf("unknown store backend: %q (expected qdrant or chromem)", c.Store.Backend)
	}
	if c.Store.Collection == "" {
		return fmt.Errorf("store collection name is required")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Temporal.TaskQueue == "" {
		return fmt.Errorf("temporal task queue is required")
	}
	return nil
}
