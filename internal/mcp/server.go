// Package mcp exposes timeline generation as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"narrative-timeline/backend/internal/repository"
	"narrative-timeline/backend/pkg/models"
)

// TimelineService is the part of the service layer the tools call.
type TimelineService interface {
	CreateTimeline(ctx context.Context, query string) (*models.TimelineStatus, error)
	GetTimeline(ctx context.Context, id string) (*models.Timeline, error)
	GetTimelineStatus(ctx context.Context, id string) (*models.TimelineStatus, error)
}

type Server struct {
	mcpServer *server.MCPServer
	timelines TimelineService
}

func NewServer(timelines TimelineService, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Narrative Timelines",
			version,
			server.WithToolCapabilities(true),
		),
		timelines: timelines,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_timeline",
			mcp.WithDescription("Start generating a narrative timeline for a topic. Returns the id to poll."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Free-text topic or question")),
		),
		s.handleCreateTimeline,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_timeline_status",
			mcp.WithDescription("Get the status and progress of a timeline"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The timeline id")),
		),
		s.handleGetTimelineStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_timeline",
			mcp.WithDescription("Get a timeline with its events, sources and branches"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The timeline id")),
		),
		s.handleGetTimeline,
	)
}

func (s *Server) handleCreateTimeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || query == "" {
		return mcp.NewToolResultError("Missing required parameter: query"), nil
	}

	st, err := s.timelines.CreateTimeline(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create timeline: %v", err)), nil
	}
	return jsonResult(st)
}

func (s *Server) handleGetTimelineStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	st, err := s.timelines.GetTimelineStatus(ctx, id)
	if err != nil {
		return lookupError(err), nil
	}
	return jsonResult(st)
}

func (s *Server) handleGetTimeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	t, err := s.timelines.GetTimeline(ctx, id)
	if err != nil {
		return lookupError(err), nil
	}
	return jsonResult(t)
}

func lookupError(err error) *mcp.CallToolResult {
	if errors.Is(err, repository.ErrNotFound) {
		return mcp.NewToolResultError("Timeline not found")
	}
	return mcp.NewToolResultError(fmt.Sprintf("Failed to load timeline: %v", err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// MountHTTPHandlers serves the SSE transport under /mcp.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
