// Package embeddings converts text into fixed-dimensional vectors via
// langchaingo.
//
// The service wraps langchaingo's embeddings abstraction so that any
// OpenAI-compatible endpoint works: the OpenAI API itself or a local TEI
// (Text Embeddings Inference) server.
//
// Example:
//
//	config := embeddings.Config{
//	    BaseURL:   "https://api.openai.com/v1",
//	    Model:     "text-embedding-3-large",
//	    Dimension: 3072,
//	    APIKey:    os.Getenv("OPENAI_API_KEY"),
//	}
//	service, err := embeddings.NewService(config, logger)
//	vectors, err := service.EmbedBatch(ctx, texts)
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/logging"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDimensionMismatch indicates the provider returned vectors whose
	// dimensionality does not match the configured model dimension. This is
	// configuration drift, not a transient provider failure, and is never
	// retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// EmbeddingError indicates persistent provider failure after the retry budget
// for one sub-batch was exhausted.
type EmbeddingError struct {
	Batch    int
	Attempts int
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding batch %d failed after %d attempts: %v", e.Batch, e.Attempts, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// Config holds configuration for the embedding service.
type Config struct {
	// BaseURL is the base URL for the embedding API.
	BaseURL string

	// Model is the embedding model identifier.
	Model string

	// Dimension is the expected output dimensionality. Every returned
	// vector is checked against it.
	Dimension int

	// APIKey is the API key (required for OpenAI, optional for TEI).
	APIKey string

	// BatchSize is the maximum number of texts per provider request.
	BatchSize int

	// MaxRetries is the per-sub-batch retry budget for transient failures.
	MaxRetries int
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// client is the subset of langchaingo's Embedder the service depends on.
type client interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Service provides order-preserving, batched embedding generation.
type Service struct {
	client  client
	config  Config
	logger  *logging.Logger
	metrics *Metrics
}

// NewService creates an embedding service backed by an OpenAI-compatible API.
func NewService(config Config, logger *logging.Logger) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	// langchaingo requires a token; TEI servers ignore it.
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.BaseURL),
		openai.WithModel(config.Model),
		openai.WithEmbeddingModel(config.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return newService(embedder, config, logger), nil
}

// newService wires a service around any client. Split out for tests.
func newService(c client, config Config, logger *logging.Logger) *Service {
	return &Service{
		client:  c,
		config:  config,
		logger:  logger.Named("embeddings"),
		metrics: NewMetrics(logger.Underlying()),
	}
}

// Dimension returns the configured vector dimensionality.
func (s *Service) Dimension() int {
	return s.config.Dimension
}

// EmbedBatch generates one vector per input text, order preserved.
//
// Inputs are split into provider requests of at most Config.BatchSize texts.
// A failing sub-batch is retried alone with exponential backoff; texts in
// already-successful sub-batches are never re-sent. When a sub-batch exhausts
// its retry budget an EmbeddingError is returned.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batchIndex := start / s.config.BatchSize

		batch, err := s.embedSubBatch(ctx, batchIndex, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query string.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrEmptyInput)
	}

	start := time.Now()
	vector, err := s.client.EmbedQuery(ctx, text)
	s.metrics.RecordRequest(ctx, s.config.Model, "embed_query", time.Since(start), 1, err)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if err := s.checkDimension(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

func (s *Service) embedSubBatch(ctx context.Context, batchIndex int, texts []string) ([][]float32, error) {
	backoff := 500 * time.Millisecond
	attempts := 0

	for {
		attempts++

		start := time.Now()
		vectors, err := s.client.EmbedDocuments(ctx, texts)
		s.metrics.RecordRequest(ctx, s.config.Model, "embed_batch", time.Since(start), len(texts), err)

		if err == nil {
			if len(vectors) != len(texts) {
				return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(texts))
			}
			for _, v := range vectors {
				if err := s.checkDimension(v); err != nil {
					return nil, err
				}
			}
			return vectors, nil
		}

		if attempts > s.config.MaxRetries {
			s.logger.Error(ctx, "embedding batch failed, retry budget exhausted",
				zap.Int("batch", batchIndex),
				zap.Int("attempts", attempts),
				zap.Error(err),
			)
			return nil, &EmbeddingError{Batch: batchIndex, Attempts: attempts, Err: err}
		}

		s.logger.Warn(ctx, "embedding batch failed, retrying",
			zap.Int("batch", batchIndex),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		s.metrics.RecordRetry(ctx, s.config.Model)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("embedding canceled: %w", ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func (s *Service) checkDimension(vector []float32) error {
	if len(vector) != s.config.Dimension {
		return fmt.Errorf("%w: got %d, configured %d for model %s",
			ErrDimensionMismatch, len(vector), s.config.Dimension, s.config.Model)
	}
	return nil
}
