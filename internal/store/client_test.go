package store

import (
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("creates client", func(t *testing.T) {
		c, err := NewClient("http://localhost:9081/mcp")
		require.NoError(t, err)
		require.NotNil(t, c)
		c.Close()
	})

	t.Run("rejects empty URL", func(t *testing.T) {
		_, err := NewClient("")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "store URL cannot be empty")
	})
}

func TestResultText(t *testing.T) {
	t.Run("extracts first text content", func(t *testing.T) {
		result := &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{Type: "text", Text: `{"ok":true}`},
			},
		}
		text, err := resultText(result)
		require.NoError(t, err)
		assert.Equal(t, `{"ok":true}`, text)
	})

	t.Run("no text content is an error", func(t *testing.T) {
		_, err := resultText(&mcp.CallToolResult{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no text content")
	})
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", ErrNotFound)))
	assert.False(t, IsNotFound(fmt.Errorf("other error")))
	assert.False(t, IsNotFound(nil))
}
