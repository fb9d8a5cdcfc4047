package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultCallTimeout = 30 * time.Second

// Client speaks the MCP protocol against one remote backend server.
// A fresh session is established per operation; backends are treated as
// stateless request/response endpoints.
type Client struct {
	name    string
	url     string
	timeout time.Duration
	logger  *slog.Logger
	http    *http.Client
}

// NewClient creates a client bound to a single backend address
func NewClient(name, url string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	return &Client{
		name:    name,
		url:     url,
		timeout: timeout,
		logger:  logger,
		http:    &http.Client{Timeout: timeout},
	}
}

// Name returns the registered backend name
func (c *Client) Name() string {
	return c.name
}

// session dials the backend and returns an initialized MCP session.
// The caller owns closing it.
func (c *Client) session(ctx context.Context) (*mcp.ClientSession, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "queryjobs-worker",
		Version: "1.0.0",
	}, nil)

	transport := &mcp.StreamableClientTransport{
		Endpoint:   c.url,
		HTTPClient: c.http,
	}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to backend %q: %w", c.name, err)
	}

	return session, nil
}

// Ping checks whether the backend is reachable and responding
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	session, err := c.session(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping failed for backend %q: %w", c.name, err)
	}

	return nil
}

// ListTools returns the tools the backend advertises
func (c *Client) ListTools(ctx context.Context) ([]*mcp.Tool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	session, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	result, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools on backend %q: %w", c.name, err)
	}

	return result.Tools, nil
}

// ListResources returns the resources the backend advertises
func (c *Client) ListResources(ctx context.Context) ([]*mcp.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	session, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	result, err := session.ListResources(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources on backend %q: %w", c.name, err)
	}

	return result.Resources, nil
}

// CallTool invokes a named tool on the backend with the given arguments
func (c *Client) CallTool(ctx context.Context, tool string, args map[string]any) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	session, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	c.logger.Debug("Calling backend tool",
		slog.String("backend", c.name),
		slog.String("tool", tool),
	)

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tool,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("tool call %q failed on backend %q: %w", tool, c.name, err)
	}

	return result, nil
}
