package eval

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/fyrsmithlabs/ragd/internal/answer"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

type fakeRetriever struct {
	chunks map[string][]vectorstore.ScoredRecord
	errs   map[string]error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, opts retrieval.Options) ([]vectorstore.ScoredRecord, error) {
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return f.chunks[query], nil
}

type fakeAnswerer struct {
	answers map[string]string
}

func (f *fakeAnswerer) Synthesize(ctx context.Context, query string, chunks []vectorstore.ScoredRecord) (*answer.Answer, error) {
	return &answer.Answer{Text: f.answers[query]}, nil
}

// fakeJudge replies with the same scores for every question, alternating
// between the faithfulness and the relevancy call.
type fakeJudge struct {
	replies []string
	calls   int
}

func (f *fakeJudge) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	reply := f.replies[f.calls%len(f.replies)]
	f.calls++
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: reply}},
	}, nil
}

func (f *fakeJudge) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func chunkFor(documentID, text string) []vectorstore.ScoredRecord {
	return []vectorstore.ScoredRecord{{
		Record: vectorstore.Record{
			DocumentID: documentID,
			ChunkIndex: 2,
			Text:       text,
			Filename:   documentID + ".txt",
		},
		Score: 0.8,
	}}
}

func TestRun(t *testing.T) {
	questions := []Question{
		{Text: "q1", GroundTruth: "g1"},
		{Text: "q2", GroundTruth: "g2"},
	}
	retriever := &fakeRetriever{
		chunks: map[string][]vectorstore.ScoredRecord{
			"q1": chunkFor("doc-1", "context one"),
			"q2": chunkFor("doc-2", "context two"),
		},
		errs: map[string]error{},
	}
	answerer := &fakeAnswerer{answers: map[string]string{"q1": "a1", "q2": "a2"}}

	t.Run("aggregates mean scores and writes the report", func(t *testing.T) {
		dir := t.TempDir()
		judge := &fakeJudge{replies: []string{"0.9", "0.7"}}
		h := NewHarness(retriever, answerer, judge, Config{OutputDir: dir}, nil)

		report, err := h.Run(context.Background(), questions)
		require.NoError(t, err)

		require.Len(t, report.Queries, 2)
		assert.Equal(t, "q1", report.Queries[0].Question)
		assert.Equal(t, "g1", report.Queries[0].GroundTruth)
		assert.Equal(t, "a1", report.Queries[0].Answer)
		assert.Equal(t, []string{"context one"}, report.Queries[0].Contexts)
		assert.Equal(t, []string{"doc-1.txt#2"}, report.Queries[0].Sources)
		assert.InDelta(t, 0.9, report.Queries[0].Faithfulness, 1e-6)
		assert.InDelta(t, 0.7, report.Queries[0].AnswerRelevancy, 1e-6)

		assert.InDelta(t, 0.9, report.Scores.Faithfulness, 1e-6)
		assert.InDelta(t, 0.7, report.Scores.AnswerRelevancy, 1e-6)
		assert.InDelta(t, 0.8, report.Scores.Average, 1e-6)

		// Four judge calls, two per question.
		assert.Equal(t, 4, judge.calls)

		require.NotEmpty(t, report.OutputPath)
		assert.Equal(t, dir, filepath.Dir(report.OutputPath))

		data, err := os.ReadFile(report.OutputPath)
		require.NoError(t, err)
		var onDisk Report
		require.NoError(t, json.Unmarshal(data, &onDisk))
		assert.Equal(t, report.Scores, onDisk.Scores)
		assert.Len(t, onDisk.Queries, 2)
	})

	t.Run("failed questions are skipped, not fatal", func(t *testing.T) {
		dir := t.TempDir()
		failing := &fakeRetriever{
			chunks: retriever.chunks,
			errs:   map[string]error{"q1": errors.New("store unavailable")},
		}
		judge := &fakeJudge{replies: []string{"1.0"}}
		h := NewHarness(failing, answerer, judge, Config{OutputDir: dir}, nil)

		report, err := h.Run(context.Background(), questions)
		require.NoError(t, err)
		require.Len(t, report.Queries, 1)
		assert.Equal(t, "q2", report.Queries[0].Question)
	})

	t.Run("no scored questions is an error", func(t *testing.T) {
		failing := &fakeRetriever{
			chunks: map[string][]vectorstore.ScoredRecord{},
			errs: map[string]error{
				"q1": errors.New("store unavailable"),
				"q2": errors.New("store unavailable"),
			},
		}
		h := NewHarness(failing, answerer, &fakeJudge{replies: []string{"1.0"}}, Config{}, nil)

		_, err := h.Run(context.Background(), questions)
		assert.ErrorIs(t, err, ErrNoResults)
	})

	t.Run("cancellation aborts the run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		failing := &fakeRetriever{
			chunks: map[string][]vectorstore.ScoredRecord{},
			errs:   map[string]error{"q1": context.Canceled},
		}
		h := NewHarness(failing, answerer, &fakeJudge{replies: []string{"1.0"}}, Config{}, nil)

		_, err := h.Run(ctx, questions)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestJudgeScoreParsing(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  float64
	}{
		{name: "bare number", reply: "0.85", want: 0.85},
		{name: "number with prose", reply: "Score: 0.6 out of 1", want: 0.6},
		{name: "clamped above one", reply: "7", want: 1},
		{name: "integer zero", reply: "0", want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			judge := &fakeJudge{replies: []string{tc.reply}}
			h := NewHarness(nil, nil, judge, Config{}, nil)

			score, err := h.judgeScore(context.Background(), "rate this")
			require.NoError(t, err)
			assert.InDelta(t, tc.want, score, 1e-6)
		})
	}
}

func TestDefaultQuestions(t *testing.T) {
	questions := DefaultQuestions()
	require.Len(t, questions, 5)
	for _, q := range questions {
		assert.NotEmpty(t, q.Text)
		assert.NotEmpty(t, q.GroundTruth)
	}
}
