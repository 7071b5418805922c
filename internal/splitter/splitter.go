// Package splitter partitions extracted document text into overlapping
// token-bounded chunks with stable ordering.
package splitter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/ragd/internal/document"
)

// ExtractionError indicates a document yielded no usable text. Terminal for
// that document.
type ExtractionError struct {
	DocumentID string
	Reason     string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for document %s: %s", e.DocumentID, e.Reason)
}

// sentencePattern matches sentence-ish units ending in terminal punctuation.
var sentencePattern = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// Config controls chunking behavior. Sizes are in tokens.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// Validate checks the chunking invariant 0 <= overlap < size.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must satisfy 0 <= overlap < size, got overlap=%d size=%d",
			c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Splitter produces chunks via sentence-aware greedy packing with a sliding
// overlap window. Output is deterministic for a given (text, size, overlap).
type Splitter struct {
	config Config
}

// New creates a Splitter with the given configuration.
func New(config Config) (*Splitter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Splitter{config: config}, nil
}

// Split partitions text into ordered chunks for a document.
//
// Sentences are accumulated until adding the next would exceed the chunk
// size; the next chunk re-includes the trailing overlap tokens of the
// previous one. A single sentence longer than the chunk size is hard-split
// at the token boundary. Empty or whitespace-only text returns an
// ExtractionError.
func (s *Splitter) Split(documentID, text string) ([]document.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ExtractionError{DocumentID: documentID, Reason: "no extractable text"}
	}

	units := s.sentenceUnits(text)

	size := s.config.ChunkSize
	overlap := s.config.ChunkOverlap

	var chunks []document.Chunk
	var current []string
	fresh := 0 // tokens in current beyond the carried overlap window

	emit := func() {
		chunks = append(chunks, document.Chunk{
			DocumentID: documentID,
			Index:      len(chunks),
			Text:       strings.Join(current, " "),
			TokenCount: len(current),
		})
		// Start the next chunk with the trailing overlap tokens.
		if overlap > 0 && len(current) > overlap {
			carry := make([]string, overlap)
			copy(carry, current[len(current)-overlap:])
			current = carry
		} else if overlap > 0 {
			current = append([]string(nil), current...)
		} else {
			current = nil
		}
		fresh = 0
	}

	for _, unit := range units {
		if len(current)+len(unit) > size && fresh > 0 {
			emit()
		}
		current = append(current, unit...)
		fresh += len(unit)
	}
	if fresh > 0 {
		emit()
	}

	return chunks, nil
}

// sentenceUnits splits text into sentence token slices, hard-splitting any
// sentence whose token count exceeds what fits in a chunk after the carried
// overlap window.
func (s *Splitter) sentenceUnits(text string) [][]string {
	var sentences []string

	locs := sentencePattern.FindAllStringIndex(text, -1)
	last := 0
	for _, loc := range locs {
		if trimmed := strings.TrimSpace(text[last:loc[0]]); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
		if trimmed := strings.TrimSpace(text[loc[0]:loc[1]]); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
		last = loc[1]
	}
	if trimmed := strings.TrimSpace(text[last:]); trimmed != "" {
		sentences = append(sentences, trimmed)
	}

	maxUnit := s.config.ChunkSize - s.config.ChunkOverlap

	var units [][]string
	for _, sentence := range sentences {
		tokens := strings.Fields(sentence)
		for len(tokens) > maxUnit {
			units = append(units, tokens[:maxUnit])
			tokens = tokens[maxUnit:]
		}
		if len(tokens) > 0 {
			units = append(units, tokens)
		}
	}
	return units
}
