package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/trbui/queryjobs-be/internal/query"
)

// ExtractiveGenerator is the default response generator. It composes the
// answer directly from the retrieved context without calling a language
// model, so the worker stays functional when no model provider is wired in.
// Deployments that want generated prose swap in their own Generator.
type ExtractiveGenerator struct {
	// MaxChunks caps how many context entries make it into the answer
	MaxChunks int
}

// NewExtractiveGenerator creates a generator with a sensible chunk cap
func NewExtractiveGenerator() *ExtractiveGenerator {
	return &ExtractiveGenerator{MaxChunks: 5}
}

// Generate builds an extractive answer from the highest-ordered context
// entries. With no context available it says so rather than inventing
// content.
func (g *ExtractiveGenerator) Generate(ctx context.Context, question string, history []ChatMessage, entries []query.ContextEntry) (string, error) {
	if len(entries) == 0 {
		return "I could not find any relevant information to answer this question.", nil
	}

	limit := g.MaxChunks
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on the retrieved information:\n")
	for _, entry := range entries[:limit] {
		b.WriteString("\n- ")
		b.WriteString(strings.TrimSpace(entry.Content))
	}

	return b.String(), nil
}
