package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// queryCmd asks a question over the indexed corpus
var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question over the indexed documents",
	Long: `Ask a question and print the generated answer with its citations.

Examples:
  # Ask a question
  ragctl query "What are the key findings?"

  # More context chunks
  ragctl query --top-k 10 "What methodology is described?"

  # Restrict to one document
  ragctl query --document <document-id> "What is this about?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

// evaluateCmd runs the evaluation harness
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run the evaluation harness",
	Long: `Run the built-in evaluation question set through the full query path
and print faithfulness and answer relevancy scores. The full report is
written to a JSON file on the server side.`,
	RunE: runEvaluate,
}

var (
	queryTopK     int
	queryDocument string
)

func init() {
	queryCmd.Flags().IntVar(&queryTopK, "top-k", 0, "number of context chunks to retrieve (0 = server default)")
	queryCmd.Flags().StringVar(&queryDocument, "document", "", "restrict retrieval to one document ID")
}

// QueryRequest matches internal/http/server.go QueryRequest
type QueryRequest struct {
	Query      string `json:"query"`
	TopK       int    `json:"top_k,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

// Citation matches internal/answer Citation
type Citation struct {
	Source     int     `json:"source"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
}

// QueryResponse matches internal/http/server.go QueryResponse
type QueryResponse struct {
	Query      string     `json:"query"`
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Confidence float64    `json:"confidence"`
	NoContext  bool       `json:"no_context"`
	LatencyMS  int64      `json:"latency_ms"`
}

// EvaluateResponse matches the eval report shape
type EvaluateResponse struct {
	Scores struct {
		Faithfulness    float64 `json:"faithfulness"`
		AnswerRelevancy float64 `json:"answer_relevancy"`
		Average         float64 `json:"average"`
	} `json:"scores"`
	Queries []struct {
		Question string `json:"question"`
	} `json:"queries"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	var resp QueryResponse
	err := postJSON("/api/v1/query", QueryRequest{
		Query:      question,
		TopK:       queryTopK,
		DocumentID: queryDocument,
	}, 120*time.Second, http.StatusOK, &resp)
	if err != nil {
		return err
	}

	fmt.Println(resp.Answer)
	if resp.NoContext {
		return nil
	}

	fmt.Printf("\nConfidence: %.3f\n", resp.Confidence)
	fmt.Println("Sources:")
	for _, c := range resp.Citations {
		fmt.Printf("  [%d] %s (chunk %d, score %.3f)\n", c.Source, c.Filename, c.ChunkIndex, c.Score)
	}
	return nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	var resp EvaluateResponse
	err := postJSON("/api/v1/evaluate", struct{}{}, 10*time.Minute, http.StatusOK, &resp)
	if err != nil {
		return err
	}

	fmt.Printf("Questions evaluated: %d\n\n", len(resp.Queries))
	fmt.Printf("Faithfulness:     %.4f (%.1f%%)\n", resp.Scores.Faithfulness, resp.Scores.Faithfulness*100)
	fmt.Printf("Answer Relevancy: %.4f (%.1f%%)\n", resp.Scores.AnswerRelevancy, resp.Scores.AnswerRelevancy*100)
	fmt.Printf("Average:          %.4f (%.1f%%)\n", resp.Scores.Average, resp.Scores.Average*100)
	return nil
}
