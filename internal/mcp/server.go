package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/codemate/internal/embedder"
	"github.com/dshills/codemate/internal/graph"
	"github.com/dshills/codemate/internal/searcher"
	"github.com/dshills/codemate/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "codemate"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDBPath is the default index location, relative to the
	// working directory.
	DefaultDBPath = ".codemate/index.db"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	searcher *searcher.Searcher
	graph    *graph.Engine
}

// NewServer opens the index at dbPath and builds the tool surface. An
// empty dbPath uses DefaultDBPath.
func NewServer(dbPath string) (*Server, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		storage:  store,
		searcher: searcher.New(store, emb),
		graph:    graph.New(store),
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(graphCallersTool(), s.handleGraphCallers)
	s.mcp.AddTool(codeHistoryTool(), s.handleCodeHistory)
	s.mcp.AddTool(indexStatsTool(), s.handleIndexStats)
}
