package splitter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "valid", config: Config{ChunkSize: 1000, ChunkOverlap: 200}},
		{name: "zero overlap", config: Config{ChunkSize: 100, ChunkOverlap: 0}},
		{name: "zero size", config: Config{ChunkSize: 0, ChunkOverlap: 0}, wantErr: true},
		{name: "negative overlap", config: Config{ChunkSize: 100, ChunkOverlap: -1}, wantErr: true},
		{name: "overlap equals size", config: Config{ChunkSize: 100, ChunkOverlap: 100}, wantErr: true},
		{name: "overlap above size", config: Config{ChunkSize: 100, ChunkOverlap: 150}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSplitEmptyText(t *testing.T) {
	s, err := New(Config{ChunkSize: 100, ChunkOverlap: 10})
	require.NoError(t, err)

	for _, text := range []string{"", "   ", "\n\t\n"} {
		_, err := s.Split("doc-1", text)
		var extractErr *ExtractionError
		require.ErrorAs(t, err, &extractErr)
		assert.Equal(t, "doc-1", extractErr.DocumentID)
	}
}

func TestSplitSmallDocument(t *testing.T) {
	s, err := New(Config{ChunkSize: 100, ChunkOverlap: 10})
	require.NoError(t, err)

	chunks, err := s.Split("doc-1", "The quick brown fox jumps over the lazy dog.")
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "doc-1", chunks[0].DocumentID)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 9, chunks[0].TokenCount)
	assert.Equal(t, "The quick brown fox jumps over the lazy dog.", chunks[0].Text)
}

func TestSplitChunkBounds(t *testing.T) {
	const size, overlap = 20, 5
	s, err := New(Config{ChunkSize: size, ChunkOverlap: overlap})
	require.NoError(t, err)

	// 40 sentences of 5 tokens each.
	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "Sentence number %d has tokens. ", i)
	}

	chunks, err := s.Split("doc-1", b.String())
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index, "indexes are contiguous from zero")
		assert.LessOrEqual(t, chunk.TokenCount, size, "chunk %d exceeds size", i)
		assert.Equal(t, chunk.TokenCount, len(strings.Fields(chunk.Text)))
	}
}

func TestSplitOverlapCarried(t *testing.T) {
	const size, overlap = 12, 4
	s, err := New(Config{ChunkSize: size, ChunkOverlap: overlap})
	require.NoError(t, err)

	var b strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "Short sentence number %d here. ", i)
	}

	chunks, err := s.Split("doc-1", b.String())
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Text)
		cur := strings.Fields(chunks[i].Text)
		carried := prev[len(prev)-overlap:]
		assert.Equal(t, carried, cur[:overlap],
			"chunk %d must start with the trailing overlap of chunk %d", i, i-1)
	}
}

func TestSplitLongSentenceHardSplit(t *testing.T) {
	const size, overlap = 10, 2
	s, err := New(Config{ChunkSize: size, ChunkOverlap: overlap})
	require.NoError(t, err)

	// One 50-token sentence with no terminal punctuation until the end.
	words := make([]string, 50)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	text := strings.Join(words, " ") + "."

	chunks, err := s.Split("doc-1", text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount, size, "chunk %d exceeds size", i)
	}

	// Every input token survives, in order.
	var got []string
	seen := map[string]bool{}
	for _, chunk := range chunks {
		for _, w := range strings.Fields(chunk.Text) {
			if !seen[w] {
				seen[w] = true
				got = append(got, strings.TrimSuffix(w, "."))
			}
		}
	}
	assert.Equal(t, words, got)
}

func TestSplitDeterministic(t *testing.T) {
	s, err := New(Config{ChunkSize: 30, ChunkOverlap: 6})
	require.NoError(t, err)

	text := strings.Repeat("Alpha beta gamma delta epsilon. ", 20)

	first, err := s.Split("doc-1", text)
	require.NoError(t, err)
	second, err := s.Split("doc-1", text)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
