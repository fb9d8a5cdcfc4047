package query

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDispatcher maps "backend/tool" keys to scripted outcomes
type fakeDispatcher struct {
	results map[string]*mcp.CallToolResult
	errs    map[string]error
	calls   []string
}

func (f *fakeDispatcher) Call(ctx context.Context, backendName, tool string, args map[string]any) (*mcp.CallToolResult, error) {
	key := backendName + "/" + tool
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if result, ok := f.results[key]; ok {
		return result, nil
	}
	return nil, fmt.Errorf("unexpected call %s", key)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// envelopeResult wraps the given chunks in the backend wire format: a JSON
// object whose "context" field carries the base64-encoded chunk document.
func envelopeResult(t *testing.T, items []contextItem) *mcp.CallToolResult {
	t.Helper()

	document, err := json.Marshal(contextDocument{Context: items})
	require.NoError(t, err)

	envelope, err := json.Marshal(contextEnvelope{
		Context: base64.StdEncoding.EncodeToString(document),
	})
	require.NoError(t, err)

	return textResult(string(envelope))
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRouter_Route_NoTargets(t *testing.T) {
	r := NewRouter(&fakeDispatcher{}, testLogger())

	entries, failures, err := r.Route(context.Background(), Decision{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no targets")
	assert.Nil(t, entries)
	assert.Nil(t, failures)
}

func TestRouter_Route_EnvelopeExpansion(t *testing.T) {
	dispatcher := &fakeDispatcher{
		results: map[string]*mcp.CallToolResult{
			"docs/search_documents": envelopeResult(t, []contextItem{
				{PageContent: "first chunk", Metadata: map[string]any{"source": "manual.pdf", "page": float64(3)}},
				{PageContent: "second chunk", Metadata: map[string]any{"source": "manual.pdf", "page": float64(7)}},
			}),
		},
	}
	r := NewRouter(dispatcher, testLogger())

	entries, failures, err := r.Route(context.Background(), Decision{
		Targets: []Target{{Backend: "docs", Tool: "search_documents"}},
	})

	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, entries, 2)
	assert.Equal(t, "first chunk", entries[0].Content)
	assert.Equal(t, "manual.pdf", entries[0].Metadata["source"])
	assert.Equal(t, "docs", entries[0].Backend)
	assert.Equal(t, "second chunk", entries[1].Content)
}

func TestRouter_Route_RawTextFallback(t *testing.T) {
	dispatcher := &fakeDispatcher{
		results: map[string]*mcp.CallToolResult{
			"weather/get_forecast": textResult("sunny, 28C"),
		},
	}
	r := NewRouter(dispatcher, testLogger())

	entries, failures, err := r.Route(context.Background(), Decision{
		Targets: []Target{{Backend: "weather", Tool: "get_forecast"}},
	})

	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, entries, 1)
	assert.Equal(t, "sunny, 28C", entries[0].Content)
	assert.Equal(t, "weather", entries[0].Backend)
	assert.Nil(t, entries[0].Metadata)
}

func TestRouter_Route_PartialFailure(t *testing.T) {
	dispatcher := &fakeDispatcher{
		results: map[string]*mcp.CallToolResult{
			"docs/search_documents": textResult("relevant chunk"),
		},
		errs: map[string]error{
			"weather/get_forecast": errors.New("connection refused"),
		},
	}
	r := NewRouter(dispatcher, testLogger())

	entries, failures, err := r.Route(context.Background(), Decision{
		Targets: []Target{
			{Backend: "docs", Tool: "search_documents"},
			{Backend: "weather", Tool: "get_forecast"},
		},
	})

	// One success is enough for the route to succeed
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "relevant chunk", entries[0].Content)

	require.Len(t, failures, 1)
	assert.Equal(t, "weather", failures[0].Backend)
	assert.Equal(t, "get_forecast", failures[0].Tool)
	assert.Contains(t, failures[0].Error, "connection refused")
}

func TestRouter_Route_AllTargetsFailed(t *testing.T) {
	dispatcher := &fakeDispatcher{
		errs: map[string]error{
			"docs/search_documents": errors.New("connection refused"),
			"weather/get_forecast":  errors.New("timeout"),
		},
	}
	r := NewRouter(dispatcher, testLogger())

	entries, failures, err := r.Route(context.Background(), Decision{
		Targets: []Target{
			{Backend: "docs", Tool: "search_documents"},
			{Backend: "weather", Tool: "get_forecast"},
		},
	})

	require.Error(t, err)
	assert.Nil(t, entries)
	assert.Len(t, failures, 2)

	var aggErr *AggregateError
	require.ErrorAs(t, err, &aggErr)
	assert.Len(t, aggErr.Failures, 2)
	assert.Contains(t, err.Error(), "all targeted backends failed")
	assert.Contains(t, err.Error(), "docs/search_documents")
	assert.Contains(t, err.Error(), "weather/get_forecast")
}

func TestRouter_Route_PreservesTargetOrder(t *testing.T) {
	dispatcher := &fakeDispatcher{
		results: map[string]*mcp.CallToolResult{
			"a/t": textResult("from a"),
			"b/t": textResult("from b"),
			"c/t": textResult("from c"),
		},
	}
	r := NewRouter(dispatcher, testLogger())

	entries, _, err := r.Route(context.Background(), Decision{
		Targets: []Target{
			{Backend: "b", Tool: "t"},
			{Backend: "c", Tool: "t"},
			{Backend: "a", Tool: "t"},
		},
	})

	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "from b", entries[0].Content)
	assert.Equal(t, "from c", entries[1].Content)
	assert.Equal(t, "from a", entries[2].Content)
	assert.Equal(t, []string{"b/t", "c/t", "a/t"}, dispatcher.calls)
}

func TestRouter_Route_EmptyResultProducesNoEntries(t *testing.T) {
	dispatcher := &fakeDispatcher{
		results: map[string]*mcp.CallToolResult{
			"docs/search_documents": {},
		},
	}
	r := NewRouter(dispatcher, testLogger())

	entries, failures, err := r.Route(context.Background(), Decision{
		Targets: []Target{{Backend: "docs", Tool: "search_documents"}},
	})

	// An empty result is a success with nothing retrieved, not a failure
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, failures)
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantOK  bool
		wantLen int
	}{
		{
			name:   "not json",
			text:   "plain prose answer",
			wantOK: false,
		},
		{
			name:   "json without context field",
			text:   `{"answer":"42"}`,
			wantOK: false,
		},
		{
			name:   "context field not base64",
			text:   `{"context":"%%%not-base64%%%"}`,
			wantOK: false,
		},
		{
			name:   "base64 payload not a chunk document",
			text:   `{"context":"` + base64.StdEncoding.EncodeToString([]byte("not json")) + `"}`,
			wantOK: false,
		},
		{
			name: "valid envelope",
			text: func() string {
				document, _ := json.Marshal(contextDocument{Context: []contextItem{
					{PageContent: "chunk"},
				}})
				envelope, _ := json.Marshal(contextEnvelope{
					Context: base64.StdEncoding.EncodeToString(document),
				})
				return string(envelope)
			}(),
			wantOK:  true,
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, ok := decodeEnvelope("docs", tt.text)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Len(t, entries, tt.wantLen)
			} else {
				assert.Nil(t, entries)
			}
		})
	}
}
