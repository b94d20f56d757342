package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all report tools registered.
func NewMCPServer(cfg Config, version string) *server.MCPServer {
	s := server.NewMCPServer("churnwatch", version)
	h := NewHandlers(NewReportsClient(cfg))

	s.AddTool(ToolGenerateWeeklyReport, h.HandleGenerateWeeklyReport)
	s.AddTool(ToolListAtRiskCustomers, h.HandleListAtRiskCustomers)

	return s
}
