package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusReceived, false},
		{StatusSplitting, false},
		{StatusEmbedding, false},
		{StatusIndexing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}

func TestChunkPointID(t *testing.T) {
	t.Run("deterministic for same document and index", func(t *testing.T) {
		a := Chunk{DocumentID: "doc-1", Index: 3}
		b := Chunk{DocumentID: "doc-1", Index: 3}
		assert.Equal(t, a.PointID(), b.PointID())
	})

	t.Run("differs across indexes", func(t *testing.T) {
		a := Chunk{DocumentID: "doc-1", Index: 0}
		b := Chunk{DocumentID: "doc-1", Index: 1}
		assert.NotEqual(t, a.PointID(), b.PointID())
	})

	t.Run("differs across documents", func(t *testing.T) {
		a := Chunk{DocumentID: "doc-1", Index: 0}
		b := Chunk{DocumentID: "doc-2", Index: 0}
		assert.NotEqual(t, a.PointID(), b.PointID())
	})

	t.Run("is a valid uuid string", func(t *testing.T) {
		id := Chunk{DocumentID: "doc-1", Index: 0}.PointID()
		require.Len(t, id, 36)
	})
}

func TestDocumentValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		wantErr bool
	}{
		{
			name: "valid",
			doc:  Document{ID: "doc-1", Filename: "report.txt"},
		},
		{
			name:    "missing id",
			doc:     Document{Filename: "report.txt"},
			wantErr: true,
		},
		{
			name:    "missing filename",
			doc:     Document{ID: "doc-1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if tt.wantErr {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				return
			}
			require.NoError(t, err)
		})
	}
}
