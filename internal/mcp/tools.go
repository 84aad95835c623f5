package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/codemate/internal/graph"
	"github.com/dshills/codemate/internal/query"
	"github.com/dshills/codemate/internal/searcher"
	"github.com/dshills/codemate/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602
	ErrorCodeInternalError = -32603
	ErrorCodeEmptyQuery    = -32004
	ErrorCodeNotFound      = -32005
)

// handleSearchCode parses the query DSL and runs a hybrid search.
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	raw, ok := args["query"].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param": "query",
		})
	}

	limit := getIntDefault(args, "limit", 0)
	if limit < 0 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit", "value": limit,
		})
	}

	mode := searcher.SearchMode(getStringDefault(args, "search_mode", string(searcher.SearchModeHybrid)))
	switch mode {
	case searcher.SearchModeHybrid, searcher.SearchModeVector, searcher.SearchModeKeyword:
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param": "search_mode", "value": string(mode),
			"allowed": []string{"hybrid", "vector", "keyword"},
		})
	}

	parsed, err := query.Parse(raw)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid query", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if parsed.MatchesNone {
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"results": []interface{}{}, "total": 0,
		})), nil
	}
	if limit == 0 {
		limit = parsed.Limit
	}

	resp, err := s.searcher.Search(ctx, searcher.Request{
		Query:           parsed.Text,
		Limit:           limit,
		Mode:            mode,
		Filters:         &parsed.Filters,
		PreferredBranch: getStringDefault(args, "branch", ""),
		UseCache:        true,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		entry := map[string]interface{}{
			"rank":  r.Rank,
			"hash":  r.Hash.Hex(),
			"score": r.Score,
		}
		if r.Chunk != nil {
			entry["symbol"] = r.Chunk.SymbolName
			entry["language"] = string(r.Chunk.Language)
			entry["kind"] = string(r.Chunk.Kind)
			entry["content"] = r.Chunk.Content
		}
		if r.Location != nil {
			entry["file"] = r.Location.FilePath
			entry["lines"] = fmt.Sprintf("%d-%d", r.Location.StartLine, r.Location.EndLine)
			entry["branch"] = r.Location.Branch
			entry["author"] = r.Location.Author
		}
		results = append(results, entry)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"results":     results,
		"total":       resp.TotalResults,
		"search_mode": string(resp.SearchMode),
		"degraded":    resp.Degraded,
		"duration_ms": resp.Duration.Milliseconds(),
	})), nil
}

// handleGraphCallers renders the reverse call tree for a target.
func (s *Server) handleGraphCallers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	target, ok := args["target"].(string)
	if !ok || target == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "target parameter is required", map[string]interface{}{
			"param": "target",
		})
	}
	depth := getIntDefault(args, "depth", 0)

	nodes, err := s.graph.Callers(ctx, target, depth)
	if err != nil {
		code := ErrorCodeInternalError
		if errors.Is(err, graph.ErrUnknownTarget) {
			code = ErrorCodeNotFound
		}
		return nil, newMCPError(code, "callers lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	var out strings.Builder
	graph.Render(&out, nodes)
	if out.Len() == 0 {
		return mcp.NewToolResultText("no callers recorded"), nil
	}
	return mcp.NewToolResultText(out.String()), nil
}

// handleCodeHistory lists every location for a chunk or a file.
func (s *Server) handleCodeHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	target, ok := args["target"].(string)
	if !ok || target == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "target parameter is required", map[string]interface{}{
			"param": "target",
		})
	}
	limit := getIntDefault(args, "limit", 20)

	var locations []types.ChunkLocation
	var err error
	if types.IsHexHash(target) {
		var hash types.ContentHash
		hash, err = types.ParseContentHash(target)
		if err == nil {
			locations, err = s.storage.GetLocations(ctx, hash)
		}
	} else {
		locations, err = s.storage.LocationsForFile(ctx, target)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "history lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if limit > 0 && len(locations) > limit {
		locations = locations[:limit]
	}

	entries := make([]map[string]interface{}, 0, len(locations))
	for _, loc := range locations {
		entries = append(entries, map[string]interface{}{
			"hash":        loc.Hash.Short(),
			"file":        loc.FilePath,
			"lines":       fmt.Sprintf("%d-%d", loc.StartLine, loc.EndLine),
			"commit":      loc.CommitHash,
			"branch":      loc.Branch,
			"author":      loc.Author,
			"authored_at": loc.AuthoredAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"target":    target,
		"locations": entries,
	})), nil
}

// handleIndexStats reports index-wide statistics.
func (s *Server) handleIndexStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.storage.GetStats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read stats", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"chunks":           stats.Chunks,
		"locations":        stats.Locations,
		"embeddings":       stats.Embeddings,
		"edges":            stats.Edges,
		"history_events":   stats.HistoryEvents,
		"modules":          stats.Modules,
		"external_symbols": stats.ExternalSymbols,
		"database_bytes":   stats.DatabaseBytes,
	})), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
