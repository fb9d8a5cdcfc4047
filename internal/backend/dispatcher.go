package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrUnknownBackend is returned when a caller references a backend name
// that was never registered.
var ErrUnknownBackend = errors.New("unknown backend")

// CallError reports a failure from one reachable-or-not backend, carrying
// the backend name so aggregated results stay attributable.
type CallError struct {
	Backend string
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("backend %q: %s", e.Backend, e.Err.Error())
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Querier is the per-backend capability surface the dispatcher fans out over
type Querier interface {
	Ping(ctx context.Context) error
	ListTools(ctx context.Context) ([]*mcp.Tool, error)
	ListResources(ctx context.Context) ([]*mcp.Resource, error)
	CallTool(ctx context.Context, tool string, args map[string]any) (*mcp.CallToolResult, error)
}

// PingResult is one backend's outcome of a ping fan-out
type PingResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ToolsResult is one backend's outcome of a list-tools fan-out
type ToolsResult struct {
	Tools []*mcp.Tool `json:"tools,omitempty"`
	Error string      `json:"error,omitempty"`
}

// ResourcesResult is one backend's outcome of a list-resources fan-out
type ResourcesResult struct {
	Resources []*mcp.Resource `json:"resources,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// BackendSpec describes one backend for dispatcher construction
type BackendSpec struct {
	URL     string
	Timeout time.Duration
}

// Dispatcher routes calls across a fixed registry of named backends.
// The registry is immutable after construction; reconfiguration means
// building a new dispatcher.
type Dispatcher struct {
	backends map[string]Querier
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over an explicit backend registry
func NewDispatcher(backends map[string]Querier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		backends: backends,
		logger:   logger,
	}
}

// NewDispatcherFromSpecs builds MCP clients for each named backend address
func NewDispatcherFromSpecs(specs map[string]BackendSpec, logger *slog.Logger) *Dispatcher {
	backends := make(map[string]Querier, len(specs))
	for name, spec := range specs {
		backends[name] = NewClient(name, spec.URL, spec.Timeout, logger)
	}

	return NewDispatcher(backends, logger)
}

// Names returns the registered backend names in sorted order
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.backends))
	for name := range d.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PingAll pings every backend concurrently. One backend's failure never
// suppresses another's result; failures are recorded per backend.
func (d *Dispatcher) PingAll(ctx context.Context) map[string]PingResult {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]PingResult, len(d.backends))
	)

	for name, client := range d.backends {
		wg.Add(1)
		go func(name string, client Querier) {
			defer wg.Done()

			result := PingResult{OK: true}
			if err := client.Ping(ctx); err != nil {
				d.logger.Warn("Backend ping failed",
					slog.String("backend", name),
					slog.Any("error", err),
				)
				result = PingResult{Error: err.Error()}
			}

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, client)
	}

	wg.Wait()
	return results
}

// ListAllTools lists tools on every backend concurrently with per-backend
// failure isolation.
func (d *Dispatcher) ListAllTools(ctx context.Context) map[string]ToolsResult {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]ToolsResult, len(d.backends))
	)

	for name, client := range d.backends {
		wg.Add(1)
		go func(name string, client Querier) {
			defer wg.Done()

			result := ToolsResult{}
			tools, err := client.ListTools(ctx)
			if err != nil {
				d.logger.Warn("Backend tool listing failed",
					slog.String("backend", name),
					slog.Any("error", err),
				)
				result.Error = err.Error()
			} else {
				result.Tools = tools
			}

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, client)
	}

	wg.Wait()
	return results
}

// ListAllResources lists resources on every backend concurrently with
// per-backend failure isolation.
func (d *Dispatcher) ListAllResources(ctx context.Context) map[string]ResourcesResult {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]ResourcesResult, len(d.backends))
	)

	for name, client := range d.backends {
		wg.Add(1)
		go func(name string, client Querier) {
			defer wg.Done()

			result := ResourcesResult{}
			resources, err := client.ListResources(ctx)
			if err != nil {
				d.logger.Warn("Backend resource listing failed",
					slog.String("backend", name),
					slog.Any("error", err),
				)
				result.Error = err.Error()
			} else {
				result.Resources = resources
			}

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, client)
	}

	wg.Wait()
	return results
}

// Call invokes one tool on one named backend. Unknown names fail fast;
// backend failures are wrapped with the backend identity. No retry.
func (d *Dispatcher) Call(ctx context.Context, backendName, tool string, args map[string]any) (*mcp.CallToolResult, error) {
	client, ok := d.backends[backendName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backendName)
	}

	result, err := client.CallTool(ctx, tool, args)
	if err != nil {
		return nil, &CallError{Backend: backendName, Err: err}
	}

	// Protocol-level success can still carry a tool-level failure
	if result.IsError {
		return nil, &CallError{
			Backend: backendName,
			Err:     fmt.Errorf("tool %q returned an error: %s", tool, ResultText(result)),
		}
	}

	d.logger.Debug("Backend tool call succeeded",
		slog.String("backend", backendName),
		slog.String("tool", tool),
	)

	return result, nil
}

// ResultText concatenates the text content blocks of a tool result
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}

	var parts []string
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}

	return strings.Join(parts, "\n")
}
