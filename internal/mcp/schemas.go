package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search the indexed codebase. Queries may mix free text with key:value filters (lang:, author:, file:, path:, after:, before:, in:, type:, limit:)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query, e.g. 'parse manifest lang:rust after:2024-01-01'",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"search_mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: hybrid (vector + keyword), vector (semantic only), or keyword (BM25 only)",
					"enum":        []string{"hybrid", "vector", "keyword"},
					"default":     "hybrid",
				},
				"branch": map[string]interface{}{
					"type":        "string",
					"description": "Preferred branch for result locations",
				},
			},
			Required: []string{"query"},
		},
	}
}

// graphCallersTool returns the tool definition for graph_callers
func graphCallersTool() mcp.Tool {
	return mcp.Tool{
		Name:        "graph_callers",
		Description: "Show the reverse call tree for a symbol name or a 64-hex chunk content hash",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"target": map[string]interface{}{
					"type":        "string",
					"description": "Symbol name or chunk content hash",
				},
				"depth": map[string]interface{}{
					"type":        "integer",
					"description": "Traversal depth (1-10)",
					"default":     3,
					"minimum":     1,
					"maximum":     10,
				},
			},
			Required: []string{"target"},
		},
	}
}

// codeHistoryTool returns the tool definition for code_history
func codeHistoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "code_history",
		Description: "Show every location a piece of code has appeared in, by chunk content hash or file path",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"target": map[string]interface{}{
					"type":        "string",
					"description": "Chunk content hash (64 hex chars) or repo-relative file path",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of locations to return",
					"default":     20,
				},
			},
			Required: []string{"target"},
		},
	}
}

// indexStatsTool returns the tool definition for index_stats
func indexStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_stats",
		Description: "Report index statistics: chunk, location, embedding, edge, and module counts plus database size",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
