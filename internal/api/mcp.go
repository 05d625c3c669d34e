package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lifeloom/lifeloom/internal/phase"
)

func phaseParam(req mcp.CallToolRequest) phase.Phase {
	return phase.Phase(req.GetString("phase", ""))
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	AppDeps
}

// NewMCPServer creates an MCP server exposing the interview and snippet
// operations to agent clients.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"lifeloom",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("lifeloom — guided life-story interviews with a curated deck of story snippets per project."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_project",
			mcp.WithDescription("Fetch a project's interview state: current phase, progress, and chapter labels."),
			mcp.WithString("project_id", mcp.Description("Project id"), mcp.Required()),
		),
		mcpGetProject(deps),
	)

	s.AddTool(
		mcp.NewTool("list_snippets",
			mcp.WithDescription("List the active story snippets of a project in display order."),
			mcp.WithString("project_id", mcp.Description("Project id"), mcp.Required()),
			mcp.WithString("phase", mcp.Description("Optional chapter phase filter")),
		),
		mcpListSnippets(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_snippets",
			mcp.WithDescription("Regenerate the unlocked snippets of a project from the interview transcript. Locked snippets are kept."),
			mcp.WithString("project_id", mcp.Description("Project id"), mcp.Required()),
		),
		mcpGenerateSnippets(deps),
	)

	s.AddTool(
		mcp.NewTool("advance_chapter",
			mcp.WithDescription("Move the interview to the next chapter."),
			mcp.WithString("project_id", mcp.Description("Project id"), mcp.Required()),
		),
		mcpAdvanceChapter(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"lifeloom://projects",
			"Projects",
			mcp.WithResourceDescription("All interview projects as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProjects(deps),
	)

	return s
}

func mcpGetProject(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("project_id")
		if err != nil {
			return mcpError("project_id is required"), nil
		}

		st, err := deps.Engine.GetState(id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get project: %v", err)), nil
		}
		b, err := json.Marshal(projectViewFrom(st))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal project: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListSnippets(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("project_id")
		if err != nil {
			return mcpError("project_id is required"), nil
		}

		sns, err := deps.Snippets.ListActive(id, phaseParam(req))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list snippets: %v", err)), nil
		}
		b, err := json.Marshal(snippetViewsFrom(sns))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal snippets: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGenerateSnippets(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("project_id")
		if err != nil {
			return mcpError("project_id is required"), nil
		}

		created, err := deps.Regen.Generate(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("generation failed: %v", err)), nil
		}
		b, err := json.Marshal(snippetViewsFrom(created))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal snippets: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAdvanceChapter(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("project_id")
		if err != nil {
			return mcpError("project_id is required"), nil
		}

		st, err := deps.Engine.AdvanceExplicit(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("advance failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Now in phase %s (%s)", st.Project.CurrentPhase, st.ChapterLabel(st.CurrentPhase()))), nil
	}
}

func mcpResourceProjects(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		projects, err := deps.Store.ListProjects()
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}

		type projectSummary struct {
			ID           string `json:"id"`
			Title        string `json:"title"`
			CurrentPhase string `json:"current_phase"`
			Status       string `json:"status"`
			CreatedAt    string `json:"created_at"`
		}
		summaries := make([]projectSummary, len(projects))
		for i, p := range projects {
			summaries[i] = projectSummary{
				ID:           p.ID,
				Title:        p.Title,
				CurrentPhase: p.CurrentPhase,
				Status:       p.Status,
				CreatedAt:    p.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal projects: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
