// Package eval measures answer quality over a fixed question set. Each
// question runs through the normal retrieval and generation path, then a
// judge model scores the result on faithfulness (is the answer supported by
// the retrieved context) and answer relevancy (does it address the question),
// both on a 0 to 1 scale.
package eval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/answer"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// ErrNoResults is returned when no question produced an answer to score.
var ErrNoResults = errors.New("no evaluation results")

// Retriever is the query side of the retrieval engine.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts retrieval.Options) ([]vectorstore.ScoredRecord, error)
}

// Answerer is the generation side of the answer synthesizer.
type Answerer interface {
	Synthesize(ctx context.Context, query string, chunks []vectorstore.ScoredRecord) (*answer.Answer, error)
}

// Config configures the harness.
type Config struct {
	// OutputDir is where evaluation reports are written. Empty means the
	// current directory.
	OutputDir string
}

// QueryResult is one evaluated question.
type QueryResult struct {
	Question        string   `json:"question"`
	GroundTruth     string   `json:"ground_truth"`
	Answer          string   `json:"answer"`
	Contexts        []string `json:"contexts"`
	Sources         []string `json:"sources"`
	Faithfulness    float64  `json:"faithfulness"`
	AnswerRelevancy float64  `json:"answer_relevancy"`
}

// Scores aggregates per-question scores as means.
type Scores struct {
	Faithfulness    float64 `json:"faithfulness"`
	AnswerRelevancy float64 `json:"answer_relevancy"`
	Average         float64 `json:"average"`
}

// Report is the full evaluation output. The same structure is written to
// disk as evaluation_<timestamp>.json.
type Report struct {
	Timestamp  time.Time     `json:"timestamp"`
	Scores     Scores        `json:"scores"`
	Queries    []QueryResult `json:"queries"`
	OutputPath string        `json:"-"`
}

// Harness runs the evaluation. It only reads from the index; the sole write
// it performs is its own report file.
type Harness struct {
	retriever Retriever
	answerer  Answerer
	judge     llms.Model
	outputDir string
	logger    *logging.Logger
}

// NewHarness wires the harness. judge scores answers and is typically the
// same chat model used for generation.
func NewHarness(retriever Retriever, answerer Answerer, judge llms.Model, cfg Config, logger *logging.Logger) *Harness {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Harness{
		retriever: retriever,
		answerer:  answerer,
		judge:     judge,
		outputDir: cfg.OutputDir,
		logger:    logger,
	}
}

// Run evaluates the given questions, or the default set when questions is
// empty, and writes the report to the output directory. Questions whose
// retrieval or generation fails are logged and skipped; the report covers
// the ones that completed.
func (h *Harness) Run(ctx context.Context, questions []Question) (*Report, error) {
	if len(questions) == 0 {
		questions = DefaultQuestions()
	}

	results := make([]QueryResult, 0, len(questions))
	for i, q := range questions {
		h.logger.Info(ctx, "evaluating question",
			zap.Int("index", i+1),
			zap.Int("total", len(questions)),
		)

		result, err := h.evaluateQuestion(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			h.logger.Warn(ctx, "question evaluation failed",
				zap.String("question", q.Text),
				zap.Error(err),
			)
			continue
		}
		results = append(results, *result)
	}

	if len(results) == 0 {
		return nil, ErrNoResults
	}

	var faithSum, relSum float64
	for _, r := range results {
		faithSum += r.Faithfulness
		relSum += r.AnswerRelevancy
	}
	faith := faithSum / float64(len(results))
	rel := relSum / float64(len(results))

	report := &Report{
		Timestamp: time.Now(),
		Scores: Scores{
			Faithfulness:    faith,
			AnswerRelevancy: rel,
			Average:         (faith + rel) / 2,
		},
		Queries: results,
	}

	path, err := h.writeReport(report)
	if err != nil {
		return nil, err
	}
	report.OutputPath = path

	h.logger.Info(ctx, "evaluation completed",
		zap.Float64("faithfulness", report.Scores.Faithfulness),
		zap.Float64("answer_relevancy", report.Scores.AnswerRelevancy),
		zap.String("output", path),
	)
	return report, nil
}

func (h *Harness) evaluateQuestion(ctx context.Context, q Question) (*QueryResult, error) {
	chunks, err := h.retriever.Retrieve(ctx, q.Text, retrieval.Options{})
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	ans, err := h.answerer.Synthesize(ctx, q.Text, chunks)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	contexts := make([]string, len(chunks))
	sources := make([]string, len(chunks))
	for i, chunk := range chunks {
		contexts[i] = chunk.Text
		sources[i] = fmt.Sprintf("%s#%d", chunk.Filename, chunk.ChunkIndex)
	}

	faith, err := h.judgeFaithfulness(ctx, ans.Text, contexts)
	if err != nil {
		return nil, fmt.Errorf("judge faithfulness: %w", err)
	}
	rel, err := h.judgeRelevancy(ctx, q.Text, ans.Text)
	if err != nil {
		return nil, fmt.Errorf("judge relevancy: %w", err)
	}

	return &QueryResult{
		Question:        q.Text,
		GroundTruth:     q.GroundTruth,
		Answer:          ans.Text,
		Contexts:        contexts,
		Sources:         sources,
		Faithfulness:    faith,
		AnswerRelevancy: rel,
	}, nil
}

const judgeSystemPrompt = "You are an impartial evaluator of question answering systems. " +
	"Respond with only a single decimal number between 0.0 and 1.0, nothing else."

func (h *Harness) judgeFaithfulness(ctx context.Context, answerText string, contexts []string) (float64, error) {
	var b strings.Builder
	b.WriteString("Rate how faithful the answer is to the provided context. " +
		"1.0 means every claim in the answer is supported by the context, " +
		"0.0 means the answer is unsupported or contradicts it.\n\nContext:\n")
	for _, c := range contexts {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	b.WriteString("\nAnswer:\n")
	b.WriteString(answerText)
	return h.judgeScore(ctx, b.String())
}

func (h *Harness) judgeRelevancy(ctx context.Context, question, answerText string) (float64, error) {
	prompt := fmt.Sprintf("Rate how directly the answer addresses the question. "+
		"1.0 means it fully answers the question, 0.0 means it is unrelated or evasive.\n\n"+
		"Question:\n%s\n\nAnswer:\n%s", question, answerText)
	return h.judgeScore(ctx, prompt)
}

// scorePattern extracts the first decimal number from a judge reply that did
// not follow the number-only instruction.
var scorePattern = regexp.MustCompile(`[0-9]*\.?[0-9]+`)

func (h *Harness) judgeScore(ctx context.Context, prompt string) (float64, error) {
	resp, err := h.judge.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, judgeSystemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, prompt),
		},
		llms.WithTemperature(0),
		llms.WithMaxTokens(16),
	)
	if err != nil {
		return 0, err
	}
	if len(resp.Choices) == 0 {
		return 0, errors.New("judge returned no choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Content)
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		match := scorePattern.FindString(raw)
		if match == "" {
			return 0, fmt.Errorf("unparseable judge score %q", raw)
		}
		score, err = strconv.ParseFloat(match, 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable judge score %q", raw)
		}
	}
	return clamp01(score), nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func (h *Harness) writeReport(report *Report) (string, error) {
	dir := h.outputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("evaluation_%s.json", report.Timestamp.Format("20060102_150405")))
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
