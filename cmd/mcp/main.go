// churnwatch MCP server: exposes weekly churn reports as MCP tools for LLMs.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mbd888/churnwatch/internal/mcpserver"
)

var version = "dev"

func main() {
	cfg := mcpserver.Config{
		APIURL:  envOrDefault("CHURNWATCH_API_URL", "http://localhost:8080"),
		Timeout: 60 * time.Second,
	}
	if v := os.Getenv("CHURNWATCH_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid CHURNWATCH_API_TIMEOUT: %v\n", err)
			os.Exit(1)
		}
		cfg.Timeout = d
	}

	s := mcpserver.NewMCPServer(cfg, version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
