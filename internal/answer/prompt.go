package answer

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// systemPrompt frames the model as grounded in retrieved context only.
const systemPrompt = "You are a helpful assistant that provides answers based on provided context."

// noContextAnswer is returned without calling the model when retrieval found
// nothing to ground an answer on.
const noContextAnswer = "I could not find any relevant information in the indexed documents to answer this question."

// buildPrompt assembles the user message: numbered source blocks followed by
// the question. Source numbers line up with the returned citations so the
// model can reference them as [source N].
func buildPrompt(query string, chunks []vectorstore.ScoredRecord) string {
	var b strings.Builder
	b.WriteString("Use the following context to answer the question:\n\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "[source %d] %s (chunk %d)\n%s\n\n", i+1, chunk.Filename, chunk.ChunkIndex, chunk.Text)
	}
	fmt.Fprintf(&b, "Question: %s", query)
	return b.String()
}
