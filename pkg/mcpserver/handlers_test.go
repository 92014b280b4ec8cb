package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var arguments any
	if args != nil {
		arguments = args
	}
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: arguments},
	}
}

func TestParseRunArgs_DerivesPackageNameFromEntry(t *testing.T) {
	req := makeRequest(map[string]any{"root": "/pkg", "entry": "index.ts"})
	args, err := parseRunArgs(req)
	require.NoError(t, err)
	assert.Equal(t, "/pkg", args.root)
	assert.Equal(t, "index.ts", args.entry)
	assert.Equal(t, "index", args.packageName)
}

func TestParseRunArgs_ExplicitPackageNameWins(t *testing.T) {
	req := makeRequest(map[string]any{"root": "/pkg", "entry": "index.ts", "package_name": "widgets"})
	args, err := parseRunArgs(req)
	require.NoError(t, err)
	assert.Equal(t, "widgets", args.packageName)
}

func TestParseRunArgs_MissingRootErrors(t *testing.T) {
	req := makeRequest(map[string]any{"entry": "index.ts"})
	_, err := parseRunArgs(req)
	assert.Error(t, err)
}

func TestParseRunArgs_MissingEntryErrors(t *testing.T) {
	req := makeRequest(map[string]any{"root": "/pkg"})
	_, err := parseRunArgs(req)
	assert.Error(t, err)
}

func TestHandleExtractReviewFile_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	entryPath := filepath.Join(dir, "index.ts")
	require.NoError(t, os.WriteFile(entryPath, []byte("/**\n * @public\n */\nexport function greet(): void {}\n"), 0o644))

	s := NewServer(nil, nil)
	req := makeRequest(map[string]any{"root": dir, "entry": entryPath})

	result, err := s.handleExtractReviewFile(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "greet")
}

func TestHandleExtractReviewFile_MissingRootIsToolError(t *testing.T) {
	s := NewServer(nil, nil)
	req := makeRequest(map[string]any{"entry": "index.ts"})

	result, err := s.handleExtractReviewFile(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestHandleExtractApiModel_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	entryPath := filepath.Join(dir, "index.ts")
	require.NoError(t, os.WriteFile(entryPath, []byte("/**\n * @public\n */\nexport function greet(): void {}\n"), 0o644))

	s := NewServer(nil, nil)
	req := makeRequest(map[string]any{"root": dir, "entry": entryPath})

	result, err := s.handleExtractApiModel(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "\"kind\": \"Package\"")
}
