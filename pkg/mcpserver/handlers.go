package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/apilens/apilens/pkg/apimodel"
)

// runArgs are the three parameters every extraction tool shares.
type runArgs struct {
	root        string
	entry       string
	packageName string
}

func parseRunArgs(req mcp.CallToolRequest) (runArgs, error) {
	root, err := req.RequireString("root")
	if err != nil {
		return runArgs{}, err
	}
	entry, err := req.RequireString("entry")
	if err != nil {
		return runArgs{}, err
	}
	pkgName := req.GetString("package_name", "")
	if pkgName == "" {
		base := filepath.Base(entry)
		pkgName = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return runArgs{root: root, entry: entry, packageName: pkgName}, nil
}

func (s *Server) handleExtractReviewFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseRunArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := runPipeline(args.root, args.entry, args.packageName, s.logger)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(result.ReviewFile), nil
}

func (s *Server) handleExtractApiModel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseRunArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := runPipeline(args.root, args.entry, args.packageName, s.logger)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body, err := apimodel.ToJSON(result.ApiModel)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("mcpserver: marshal api model: %s", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) handleListDiagnostics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseRunArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := runPipeline(args.root, args.entry, args.packageName, s.logger)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body, err := json.MarshalIndent(result.Diagnostics, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("mcpserver: marshal diagnostics: %s", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}
