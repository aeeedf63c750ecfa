package main

import (
	"fmt"
	"log"
	"os"

	"github.com/KH1188/juliusos/internal/bootstrap"
	"github.com/KH1188/juliusos/internal/config"
	"github.com/KH1188/juliusos/internal/mcptools"

	"github.com/mark3labs/mcp-go/server"
)

var Version = "dev"

func main() {
	// stdout 留给 MCP stdio 传输，日志写 stderr
	log.SetOutput(os.Stderr)
	cfg := config.Load()

	agent := bootstrap.NewAgent(cfg, nil)
	defer agent.Close()

	s := server.NewMCPServer("julios", Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	mcptools.New(agent.Recipes, agent.Context, cfg.DefaultUserID, cfg.ContextWindowDays).Register(s)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
