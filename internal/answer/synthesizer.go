// Package answer generates cited answers from retrieved chunks with a chat
// completion model.
package answer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// ErrInvalidConfig is returned when the synthesizer is misconfigured.
var ErrInvalidConfig = errors.New("invalid generation config")

// GenerationError wraps a model failure after the retry budget was exhausted.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Config configures the generation model.
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
}

// Citation points at one chunk the answer was grounded on. Source numbers
// start at 1 and match the [source N] labels in the prompt.
type Citation struct {
	Source     int     `json:"source"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
}

// Answer is a generated answer with its grounding.
type Answer struct {
	Text       string     `json:"text"`
	Citations  []Citation `json:"citations"`
	Confidence float64    `json:"confidence"`

	// NoContext is true when retrieval returned nothing and the text is the
	// fixed non-answer. No model call was made in that case.
	NoContext bool `json:"no_context"`
}

// retryBaseDelay is the initial backoff between generation attempts.
const retryBaseDelay = 500 * time.Millisecond

// Synthesizer turns retrieved chunks plus a question into a cited answer.
type Synthesizer struct {
	model       llms.Model
	modelName   string
	temperature float64
	maxTokens   int
	maxRetries  int
	logger      *logging.Logger
}

// NewSynthesizer builds a synthesizer against an OpenAI-compatible chat API.
func NewSynthesizer(cfg Config, logger *logging.Logger) (*Synthesizer, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("%w: max_tokens must be positive, got %d", ErrInvalidConfig, cfg.MaxTokens)
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	} else {
		// Local OpenAI-compatible servers accept any token but the client
		// refuses to construct without one.
		opts = append(opts, openai.WithToken("placeholder"))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create generation client: %w", err)
	}
	return newSynthesizer(model, cfg, logger), nil
}

func newSynthesizer(model llms.Model, cfg Config, logger *logging.Logger) *Synthesizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Synthesizer{
		model:       model,
		modelName:   cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxRetries:  cfg.MaxRetries,
		logger:      logger,
	}
}

// Synthesize generates an answer grounded on the given chunks. An empty chunk
// list short-circuits to the fixed non-answer without a model call. The
// confidence is the mean similarity score of the cited chunks.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, chunks []vectorstore.ScoredRecord) (*Answer, error) {
	if len(chunks) == 0 {
		return &Answer{
			Text:      noContextAnswer,
			Citations: []Citation{},
			NoContext: true,
		}, nil
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, buildPrompt(query, chunks)),
	}

	text, err := s.generate(ctx, messages)
	if err != nil {
		return nil, err
	}

	citations := make([]Citation, len(chunks))
	var scoreSum float64
	for i, chunk := range chunks {
		citations[i] = Citation{
			Source:     i + 1,
			DocumentID: chunk.DocumentID,
			Filename:   chunk.Filename,
			ChunkIndex: chunk.ChunkIndex,
			Score:      chunk.Score,
		}
		scoreSum += float64(chunk.Score)
	}

	return &Answer{
		Text:       text,
		Citations:  citations,
		Confidence: scoreSum / float64(len(chunks)),
	}, nil
}

func (s *Synthesizer) generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	attempts := s.maxRetries + 1
	delay := retryBaseDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := s.model.GenerateContent(ctx, messages,
			llms.WithTemperature(s.temperature),
			llms.WithMaxTokens(s.maxTokens),
		)
		if err == nil {
			if len(resp.Choices) == 0 {
				err = errors.New("model returned no choices")
			} else {
				return resp.Choices[0].Content, nil
			}
		}
		lastErr = err

		if attempt < attempts {
			s.logger.Warn(ctx, "generation attempt failed, retrying",
				zap.String("model", s.modelName),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return "", &GenerationError{Attempts: attempt, Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return "", &GenerationError{Attempts: attempts, Err: lastErr}
}
