package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/mcpserver"
)

// RunMCP serves the diary tools over MCP stdio transport. The journal
// is opened so entries added by an MCP client are ledgered like any
// other source. Logs go to stderr; stdout belongs to the protocol.
func RunMCP(_ context.Context, cfg *Config) error {
	logger := newCLILogger(cfg)

	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("init journal: %w", err)
	}
	defer db.Close()

	svc := newService(cfg, db, nil, logger)
	logger.Info("MCP server starting on stdio")
	if err := mcpserver.New(svc).ServeStdio(); err != nil {
		logger.Error("MCP server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
