// Package query turns an externally produced routing decision into backend
// tool calls and normalizes the heterogeneous payloads into one ordered
// context sequence for response generation.
package query

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/trbui/queryjobs-be/internal/backend"
)

// Target selects one backend tool call within a routing decision
type Target struct {
	Backend string         `json:"backend"`
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args,omitempty"`
}

// Decision is the routing decision produced by the scoping component
type Decision struct {
	Targets []Target `json:"targets"`
}

// ContextEntry is one normalized piece of retrieved context
type ContextEntry struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Backend  string         `json:"backend"`
}

// TargetFailure records why one targeted backend produced no context
type TargetFailure struct {
	Backend string `json:"backend"`
	Tool    string `json:"tool"`
	Error   string `json:"error"`
}

// AggregateError is returned when every targeted backend failed
type AggregateError struct {
	Failures []TargetFailure
}

func (e *AggregateError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s/%s: %s", f.Backend, f.Tool, f.Error)
	}
	return "all targeted backends failed: " + strings.Join(parts, "; ")
}

// Dispatcher is the point-dispatch capability the router needs
type Dispatcher interface {
	Call(ctx context.Context, backendName, tool string, args map[string]any) (*mcp.CallToolResult, error)
}

// Router resolves routing decisions against the backend dispatcher
type Router struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewRouter creates a router over the given dispatcher
func NewRouter(dispatcher Dispatcher, logger *slog.Logger) *Router {
	return &Router{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Route executes every target in order and returns the normalized context
// entries plus the failures of targets that produced none. Target order is
// preserved in the entry sequence. An error is returned only when no target
// succeeded; partial failure is reported through the failure list.
func (r *Router) Route(ctx context.Context, decision Decision) ([]ContextEntry, []TargetFailure, error) {
	if len(decision.Targets) == 0 {
		return nil, nil, errors.New("routing decision has no targets")
	}

	var (
		entries  []ContextEntry
		failures []TargetFailure
	)

	for _, target := range decision.Targets {
		result, err := r.dispatcher.Call(ctx, target.Backend, target.Tool, target.Args)
		if err != nil {
			r.logger.Warn("Routing target failed",
				slog.String("backend", target.Backend),
				slog.String("tool", target.Tool),
				slog.Any("error", err),
			)
			failures = append(failures, TargetFailure{
				Backend: target.Backend,
				Tool:    target.Tool,
				Error:   err.Error(),
			})
			continue
		}

		entries = append(entries, normalize(target.Backend, result)...)
	}

	if len(entries) == 0 && len(failures) == len(decision.Targets) {
		return nil, failures, &AggregateError{Failures: failures}
	}

	return entries, failures, nil
}

// contextEnvelope is the wire format backends use to return retrieved chunks:
// a JSON object whose "context" field holds a base64-encoded JSON document
// listing content/metadata pairs.
type contextEnvelope struct {
	Context string `json:"context"`
}

type contextDocument struct {
	Context []contextItem `json:"context"`
}

type contextItem struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
}

// normalize converts one backend tool result into context entries. Results
// carrying the context envelope expand into one entry per retrieved chunk;
// anything else becomes a single raw text entry.
func normalize(backendName string, result *mcp.CallToolResult) []ContextEntry {
	text := backend.ResultText(result)
	if text == "" {
		return nil
	}

	if entries, ok := decodeEnvelope(backendName, text); ok {
		return entries
	}

	return []ContextEntry{{Content: text, Backend: backendName}}
}

func decodeEnvelope(backendName, text string) ([]ContextEntry, bool) {
	var envelope contextEnvelope
	if err := json.Unmarshal([]byte(text), &envelope); err != nil || envelope.Context == "" {
		return nil, false
	}

	decoded, err := base64.StdEncoding.DecodeString(envelope.Context)
	if err != nil {
		return nil, false
	}

	var document contextDocument
	if err := json.Unmarshal(decoded, &document); err != nil {
		return nil, false
	}

	entries := make([]ContextEntry, 0, len(document.Context))
	for _, item := range document.Context {
		entries = append(entries, ContextEntry{
			Content:  item.PageContent,
			Metadata: item.Metadata,
			Backend:  backendName,
		})
	}

	return entries, true
}
