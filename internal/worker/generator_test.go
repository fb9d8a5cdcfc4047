package worker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trbui/queryjobs-be/internal/query"
)

func TestExtractiveGenerator_Generate(t *testing.T) {
	g := NewExtractiveGenerator()

	answer, err := g.Generate(context.Background(), "question", nil, []query.ContextEntry{
		{Content: "first chunk"},
		{Content: "  second chunk  "},
	})
	require.NoError(t, err)

	assert.Contains(t, answer, "Based on the retrieved information:")
	assert.Contains(t, answer, "- first chunk")
	assert.Contains(t, answer, "- second chunk")
}

func TestExtractiveGenerator_Generate_NoContext(t *testing.T) {
	g := NewExtractiveGenerator()

	answer, err := g.Generate(context.Background(), "question", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "I could not find any relevant information to answer this question.", answer)
}

func TestExtractiveGenerator_Generate_ChunkCap(t *testing.T) {
	g := &ExtractiveGenerator{MaxChunks: 2}

	entries := []query.ContextEntry{
		{Content: "one"},
		{Content: "two"},
		{Content: "three"},
	}

	answer, err := g.Generate(context.Background(), "question", nil, entries)
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(answer, "\n- "))
	assert.NotContains(t, answer, "three")
}
