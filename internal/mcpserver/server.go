// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the diary pipeline as tools via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dagaz/internal/diary"
	"github.com/starford/dagaz/internal/models"
)

// Server wraps the MCP server with diary tools.
type Server struct {
	mcp *server.MCPServer
	svc *diary.Service
}

// New creates a new MCP server with all diary tools registered.
func New(svc *diary.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Dagaz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("add_diary_entry",
		mcp.WithDescription("Add a diary entry. The entry text may reference a date "+
			"(\"昨日の日記に記録して\"); the date is resolved automatically and the entry "+
			"is merged into that day's page, creating it if needed."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The diary entry text")),
	), s.addDiaryEntry)

	s.mcp.AddTool(mcp.NewTool("find_diary_page",
		mcp.WithDescription("Find the diary page for a calendar date."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Calendar date as YYYY-MM-DD")),
	), s.findDiaryPage)

	s.mcp.AddTool(mcp.NewTool("dedupe_diary",
		mcp.WithDescription("Consolidate diary pages that share the same title into one "+
			"page per calendar day. Safe to re-run; reports merged and archived counts."),
	), s.dedupeDiary)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) addDiaryEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.ProcessEntry(ctx, text, models.SourceMCP, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) findDiaryPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return mcp.NewToolResultError("date must be YYYY-MM-DD"), nil
	}
	page, err := s.svc.FindByDate(ctx, date)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if page == nil {
		return mcp.NewToolResultText(fmt.Sprintf("no diary page for %s", raw)), nil
	}
	out, _ := json.MarshalIndent(page, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) dedupeDiary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Dedupe(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.Marshal(res)
	return mcp.NewToolResultText(string(out)), nil
}
