// Package store implements the remote dashboard store boundary: an MCP
// client over streamable HTTP that fetches dashboards and persists widget
// positions. Transport framing (the JSON-RPC session handshake) is handled
// by the mcp-go client; this package only speaks tools.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/genie-dash/genie/pkg/dashboard"
)

// Store tool names.
const (
	toolGetActiveDashboard    = "get_active_dashboard"
	toolGetDashboard          = "get_dashboard"
	toolListDashboards        = "list_dashboards"
	toolUpdateWidgetPositions = "update_widget_positions"
)

// ErrNotFound indicates the store has no dashboard matching the request.
var ErrNotFound = errors.New("dashboard not found")

// IsNotFound returns true if the error is a store "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Client is a session-scoped MCP client for the dashboard store.
// The MCP initialize handshake runs lazily before the first tool call.
// Thread-safe.
type Client struct {
	baseURL string

	mu          sync.Mutex
	mcpClient   *client.Client
	initialized bool
}

// NewClient creates a store client for the given MCP endpoint
// (e.g. http://localhost:9081/mcp).
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("store URL cannot be empty")
	}
	mcpClient, err := client.NewStreamableHttpClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	return &Client{
		baseURL:   baseURL,
		mcpClient: mcpClient,
	}, nil
}

// Close shuts down the underlying MCP transport. Implements io.Closer.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}

// ensureSession runs the MCP handshake once.
func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}

	if err := c.mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MCP transport: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.Capabilities = mcp.ClientCapabilities{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "genie-session",
		Version: "1.0.0",
	}

	if _, err := c.mcpClient.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	c.initialized = true
	return nil
}

// callTool invokes one store tool and returns the JSON text payload of the
// result.
func (c *Client) callTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := c.mcpClient.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to call tool %s: %w", name, err)
	}

	text, err := resultText(result)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	if result.IsError {
		return nil, fmt.Errorf("store error from %s: %s", name, text)
	}
	return json.RawMessage(text), nil
}

// resultText extracts the first text content of a tool result.
func resultText(result *mcp.CallToolResult) (string, error) {
	for _, content := range result.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			return tc.Text, nil
		}
	}
	return "", fmt.Errorf("result carried no text content")
}

// GetActiveDashboard fetches and normalizes the store's active dashboard.
func (c *Client) GetActiveDashboard(ctx context.Context) (*dashboard.Snapshot, error) {
	raw, err := c.callTool(ctx, toolGetActiveDashboard, map[string]any{})
	if err != nil {
		return nil, err
	}
	return DecodeSnapshot(raw)
}

// GetDashboard fetches and normalizes one stored dashboard by layout ID.
func (c *Client) GetDashboard(ctx context.Context, id string) (*dashboard.Snapshot, error) {
	raw, err := c.callTool(ctx, toolGetDashboard, map[string]any{"layout_id": id})
	if err != nil {
		return nil, err
	}
	return DecodeSnapshot(raw)
}

// ListDashboards returns all stored dashboard layouts.
func (c *Client) ListDashboards(ctx context.Context) ([]dashboard.Layout, error) {
	raw, err := c.callTool(ctx, toolListDashboards, map[string]any{})
	if err != nil {
		return nil, err
	}
	return DecodeLayoutList(raw)
}

// UpdateWidgetPositions persists drag/resize results for one layout.
func (c *Client) UpdateWidgetPositions(ctx context.Context, layoutID string, items []dashboard.LayoutItem) error {
	widgets := make([]map[string]any, 0, len(items))
	for _, item := range items {
		widgets = append(widgets, map[string]any{
			"i": item.I,
			"x": item.X,
			"y": item.Y,
			"w": item.W,
			"h": item.H,
		})
	}
	_, err := c.callTool(ctx, toolUpdateWidgetPositions, map[string]any{
		"layout_id": layoutID,
		"widgets":   widgets,
	})
	return err
}
