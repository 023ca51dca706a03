// Package api provides the HTTP API of the howell daemon.
package api

import "net/http"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":7777")
	ListenAddr string

	// MCP is mounted at /mcp when set.
	MCP http.Handler
}
