// Package mcp provides the MCP (Model Context Protocol) tools through which
// the agent reads and writes its memory.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ryanlack616/howell-brain/pkg/brain"
	"github.com/ryanlack616/howell-brain/pkg/utils"
)

type Config struct {
	// Brain serves every tool.
	Brain *brain.Brain

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the memory tools.
func NewServer(c Config) (*Server, error) {
	if c.Brain == nil {
		return nil, errors.New("brain is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}
	c.Logger = c.Logger.With("component", "mcp")

	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "howell",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{Name: bootstrapToolName, Description: bootstrapDescription}, s.handleBootstrap)
	mcp.AddTool(mcpServer, &mcp.Tool{Name: statusToolName, Description: statusDescription}, s.handleStatus)
	mcp.AddTool(mcpServer, &mcp.Tool{Name: addObservationToolName, Description: addObservationDescription}, s.handleAddObservation)
	mcp.AddTool(mcpServer, &mcp.Tool{Name: addRelationToolName, Description: addRelationDescription}, s.handleAddRelation)
	mcp.AddTool(mcpServer, &mcp.Tool{Name: removeRelationToolName, Description: removeRelationDescription}, s.handleRemoveRelation)
	mcp.AddTool(mcpServer, &mcp.Tool{Name: endSessionToolName, Description: endSessionDescription}, s.handleEndSession)
	mcp.AddTool(mcpServer, &mcp.Tool{Name: pinToolName, Description: pinDescription}, s.handlePin)
	mcp.AddTool(mcpServer, &mcp.Tool{Name: readTierToolName, Description: readTierDescription}, s.handleReadTier)
	mcp.AddTool(mcpServer, &mcp.Tool{Name: queryToolName, Description: queryDescription}, s.handleQuery)
	mcp.AddTool(mcpServer, &mcp.Tool{Name: snapshotToolName, Description: snapshotDescription}, s.handleSnapshot)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// toolResult serializes the structured output into a TextContent block as
// well, for clients that ignore structured content.
func toolResult[T any](out T) (*mcp.CallToolResult, T, error) {
	data, err := json.Marshal(out)
	if err != nil {
		var zero T
		return toolError("Failed to serialize results: %v", err), zero, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, out, nil
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}
