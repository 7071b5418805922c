package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// fakeModel replays canned responses and captures the prompt it was given.
type fakeModel struct {
	responses []string
	errs      []error
	calls     int
	lastHuman string
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	idx := f.calls
	f.calls++
	for _, msg := range messages {
		if msg.Role == llms.ChatMessageTypeHuman {
			for _, part := range msg.Parts {
				if text, ok := part.(llms.TextContent); ok {
					f.lastHuman = text.Text
				}
			}
		}
	}
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	resp := ""
	if idx < len(f.responses) {
		resp = f.responses[idx]
	}
	if resp == "" {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: resp}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func testConfig() Config {
	return Config{
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxTokens:   1024,
	}
}

func testChunks() []vectorstore.ScoredRecord {
	return []vectorstore.ScoredRecord{
		{
			Record: vectorstore.Record{
				DocumentID: "doc-1",
				ChunkIndex: 0,
				Text:       "The warranty lasts two years.",
				Filename:   "warranty.txt",
			},
			Score: 0.9,
		},
		{
			Record: vectorstore.Record{
				DocumentID: "doc-2",
				ChunkIndex: 4,
				Text:       "Claims are filed online.",
				Filename:   "claims.txt",
			},
			Score: 0.7,
		},
	}
}

func TestNewSynthesizer(t *testing.T) {
	t.Run("model is required", func(t *testing.T) {
		cfg := testConfig()
		cfg.Model = ""
		_, err := NewSynthesizer(cfg, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("max_tokens must be positive", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxTokens = 0
		_, err := NewSynthesizer(cfg, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestSynthesize(t *testing.T) {
	t.Run("no retrieved chunks short-circuits without a model call", func(t *testing.T) {
		model := &fakeModel{}
		s := newSynthesizer(model, testConfig(), nil)

		answer, err := s.Synthesize(context.Background(), "what is the warranty", nil)
		require.NoError(t, err)
		assert.True(t, answer.NoContext)
		assert.Equal(t, noContextAnswer, answer.Text)
		assert.Empty(t, answer.Citations)
		assert.Zero(t, answer.Confidence)
		assert.Zero(t, model.calls)
	})

	t.Run("answer carries numbered citations and mean confidence", func(t *testing.T) {
		model := &fakeModel{responses: []string{"Two years."}}
		s := newSynthesizer(model, testConfig(), nil)

		answer, err := s.Synthesize(context.Background(), "what is the warranty", testChunks())
		require.NoError(t, err)
		assert.False(t, answer.NoContext)
		assert.Equal(t, "Two years.", answer.Text)
		require.Len(t, answer.Citations, 2)
		assert.Equal(t, Citation{Source: 1, DocumentID: "doc-1", Filename: "warranty.txt", ChunkIndex: 0, Score: 0.9}, answer.Citations[0])
		assert.Equal(t, 2, answer.Citations[1].Source)
		assert.InDelta(t, 0.8, answer.Confidence, 1e-6)
	})

	t.Run("prompt contains question and labeled context", func(t *testing.T) {
		model := &fakeModel{responses: []string{"Two years."}}
		s := newSynthesizer(model, testConfig(), nil)

		_, err := s.Synthesize(context.Background(), "what is the warranty", testChunks())
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(model.lastHuman, "Use the following context to answer the question:"))
		assert.Contains(t, model.lastHuman, "[source 1] warranty.txt (chunk 0)")
		assert.Contains(t, model.lastHuman, "[source 2] claims.txt (chunk 4)")
		assert.Contains(t, model.lastHuman, "Question: what is the warranty")
	})

	t.Run("transient model failure is retried", func(t *testing.T) {
		model := &fakeModel{
			errs:      []error{errors.New("rate limited"), nil},
			responses: []string{"", "Two years."},
		}
		cfg := testConfig()
		cfg.MaxRetries = 1
		s := newSynthesizer(model, cfg, nil)

		answer, err := s.Synthesize(context.Background(), "what is the warranty", testChunks())
		require.NoError(t, err)
		assert.Equal(t, "Two years.", answer.Text)
		assert.Equal(t, 2, model.calls)
	})

	t.Run("exhausted retries surface a GenerationError", func(t *testing.T) {
		modelErr := errors.New("rate limited")
		model := &fakeModel{errs: []error{modelErr}}
		s := newSynthesizer(model, testConfig(), nil)

		_, err := s.Synthesize(context.Background(), "what is the warranty", testChunks())
		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, 1, genErr.Attempts)
		assert.ErrorIs(t, err, modelErr)
	})

	t.Run("empty choice list counts as a failure", func(t *testing.T) {
		model := &fakeModel{responses: []string{""}}
		s := newSynthesizer(model, testConfig(), nil)

		_, err := s.Synthesize(context.Background(), "what is the warranty", testChunks())
		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
	})
}
