// Package mcpserver exposes the extraction pipeline over MCP: an editor
// or agent can ask for a package's review file, its API model JSON, or
// its outstanding diagnostics without shelling out to the CLI. Tool
// registration and call logging follow the same server/middleware split
// this codebase's original MCP server used for its catalog tools.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/apilens/apilens/pkg/discovery"
	"github.com/apilens/apilens/pkg/mcplog"
	"github.com/apilens/apilens/pkg/pipeline"
)

const serverVersion = "0.1.0-dev"

// Server implements the MCP server for apilens, exposing extraction tools
// over a package rooted at a filesystem directory.
type Server struct {
	mcpServer *server.MCPServer
	logger    *slog.Logger
	callLog   *mcplog.Logger // may be nil: disables call logging
}

// NewServer creates a Server. callLog may be nil to disable JSONL call
// logging.
func NewServer(logger *slog.Logger, callLog *mcplog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{logger: logger, callLog: callLog}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if callLog != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}
	s.mcpServer = server.NewMCPServer("apilens", serverVersion, opts...)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: extractReviewFileTool(), Handler: s.handleExtractReviewFile},
		server.ServerTool{Tool: extractApiModelTool(), Handler: s.handleExtractApiModel},
		server.ServerTool{Tool: listDiagnosticsTool(), Handler: s.handleListDiagnostics},
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// loggingMiddleware records every tool call as a JSONL entry via
// s.callLog. Must only be installed when callLog is non-nil.
func (s *Server) loggingMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := mcplog.Now()
			result, err := next(ctx, req)
			elapsed := mcplog.Now().Sub(start).Milliseconds()

			rb := mcplog.ResponseBytes(result)
			var errStr *string
			if err != nil {
				msg := err.Error()
				errStr = &msg
			}

			entry := mcplog.LogEntry{
				Ts:            start.UTC().Format(time.RFC3339),
				Tool:          req.Params.Name,
				Params:        mcplog.SanitizeParams(req.GetArguments()),
				DurationMs:    elapsed,
				ResponseBytes: rb,
				TokensEst:     rb / 4,
				Error:         errStr,
			}
			_ = s.callLog.Write(entry)

			return result, err
		}
	}
}

// runPipeline discovers and loads a package rooted at root, then runs the
// extraction pipeline over the given entry module (relative to root).
func runPipeline(root, entryModule, packageName string, logger *slog.Logger) (*pipeline.Result, error) {
	program := pipeline.NewProgram(logger)
	defer program.Close()

	scanner := discovery.NewScanner(logger)
	defer scanner.Close()
	if _, err := scanner.Scan(root, discovery.DefaultOptions(), program); err != nil {
		return nil, fmt.Errorf("mcpserver: scan %s: %w", root, err)
	}
	if !filepath.IsAbs(entryModule) {
		entryModule = filepath.Join(root, entryModule)
	}

	p, err := pipeline.New(pipeline.Config{
		PackageName:  packageName,
		EntryModules: []string{entryModule},
		LocalBuild:   true,
		Logger:       logger,
	}, program)
	if err != nil {
		return nil, err
	}
	return p.Run()
}
