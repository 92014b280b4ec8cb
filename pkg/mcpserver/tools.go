package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

func extractReviewFileTool() mcp.Tool {
	return mcp.NewTool("extract_review_file",
		mcp.WithDescription("Extract the normalized review file for a package's public API surface"),
		mcp.WithString("root",
			mcp.Required(),
			mcp.Description("Filesystem path to the package root to scan"),
		),
		mcp.WithString("entry",
			mcp.Required(),
			mcp.Description("Path (relative to root) of the package's entry module"),
		),
		mcp.WithString("package_name",
			mcp.Description("Package name to record in the review file header; defaults to the entry module's base name"),
		),
	)
}

func extractApiModelTool() mcp.Tool {
	return mcp.NewTool("extract_api_model",
		mcp.WithDescription("Extract the machine-readable API model JSON tree for a package"),
		mcp.WithString("root",
			mcp.Required(),
			mcp.Description("Filesystem path to the package root to scan"),
		),
		mcp.WithString("entry",
			mcp.Required(),
			mcp.Description("Path (relative to root) of the package's entry module"),
		),
		mcp.WithString("package_name",
			mcp.Description("Package name to record in the API model; defaults to the entry module's base name"),
		),
	)
}

func listDiagnosticsTool() mcp.Tool {
	return mcp.NewTool("list_diagnostics",
		mcp.WithDescription("List every diagnostic (missing release tags, incompatible tags, type leaks) an extraction run produced"),
		mcp.WithString("root",
			mcp.Required(),
			mcp.Description("Filesystem path to the package root to scan"),
		),
		mcp.WithString("entry",
			mcp.Required(),
			mcp.Description("Path (relative to root) of the package's entry module"),
		),
		mcp.WithString("package_name",
			mcp.Description("Package name to record for the run; defaults to the entry module's base name"),
		),
	)
}
