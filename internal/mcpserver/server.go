// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes vault file tools over stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/noteservice"
	"github.com/starford/notevault/internal/search"
)

// Server wraps the MCP server with the vault tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *noteservice.Service
	logger *slog.Logger
}

// New creates a new MCP server with all vault tools registered.
func New(svc *noteservice.Service, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, logger: logger}

	s.mcp = server.NewMCPServer(
		"notevault",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.addTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read a vault file. Returns JSON with content and checksum."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path (e.g. folder/note.md)")),
	), s.readFile)

	s.addTool(mcp.NewTool("create_file",
		mcp.WithDescription("Create a new file. Fails if the path already exists."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path for the new file")),
		mcp.WithString("content", mcp.Description("Initial content; may be empty")),
	), s.createFile)

	s.addTool(mcp.NewTool("update_file",
		mcp.WithDescription("Replace the whole content of an existing file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New content")),
		mcp.WithString("if_match", mcp.Description("Checksum from read_file; the update fails if the file changed")),
	), s.updateFile)

	s.addTool(mcp.NewTool("patch_file",
		mcp.WithDescription("Apply a unified diff to a file. Lines must match exactly; "+
			"read the patch format via get_patch_format or the "+PatchFormatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path")),
		mcp.WithString("diff", mcp.Required(), mcp.Description("Unified diff for this single file")),
		mcp.WithString("if_match", mcp.Description("Checksum from read_file; the patch fails if the file changed")),
	), s.patchFile)

	s.addTool(mcp.NewTool("trash_file",
		mcp.WithDescription("Move a file to the vault trash (.trash/), keeping its relative path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path")),
	), s.trashFile)

	s.addTool(mcp.NewTool("delete_file",
		mcp.WithDescription("Permanently delete a file. Prefer trash_file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path")),
	), s.deleteFile)

	s.addTool(mcp.NewTool("daily_note",
		mcp.WithDescription("Return today's daily note, creating it from the template if it does not exist."),
	), s.dailyNote)

	s.addTool(mcp.NewTool("search_content",
		mcp.WithDescription("Find lines containing a substring in Markdown and text files."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring to search for")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 50)")),
		mcp.WithBoolean("ignore_case", mcp.Description("Case-insensitive match")),
	), s.searchContent)

	s.addTool(mcp.NewTool("search_filename",
		mcp.WithDescription("Find files by name substring or glob pattern (e.g. *.md, daily/*/*.md)."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring or glob pattern")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 50)")),
		mcp.WithBoolean("ignore_case", mcp.Description("Case-insensitive match")),
	), s.searchFilename)

	s.addTool(mcp.NewTool("get_patch_format",
		mcp.WithDescription("Returns the unified diff rules used by patch_file. "+
			"Call this before patching files."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.getPatchFormat)

	// Resource: patch format contract.
	s.mcp.AddResource(
		mcp.NewResource(PatchFormatURI, "Patch Format",
			mcp.WithResourceDescription("Unified diff dialect accepted by patch_file."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPatchFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// HTTPHandler returns the streamable HTTP transport for mounting in a router.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// addTool registers h with a per-call correlation ID in the logs.
func (s *Server) addTool(tool mcp.Tool, h server.ToolHandlerFunc) {
	name := tool.Name
	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		callID := uuid.NewString()
		start := time.Now()
		res, err := h(ctx, req)

		attrs := []any{
			slog.String("tool", name),
			slog.String("call_id", callID),
			slog.Duration("duration", time.Since(start)),
		}
		switch {
		case err != nil:
			s.logger.Error("tool call failed", append(attrs, slog.String("error", err.Error()))...)
		case res != nil && res.IsError:
			s.logger.Warn("tool call returned error", append(attrs, slog.String("error", resultText(res)))...)
		default:
			s.logger.Debug("tool call", attrs...)
		}
		return res, err
	})
}

// toolError reports a service failure to the caller. Errors outside the vault
// taxonomy can carry host paths, so they are logged and replaced.
func (s *Server) toolError(err error) *mcp.CallToolResult {
	if apperr.Known(err) {
		return mcp.NewToolResultError(err.Error())
	}
	s.logger.Error("tool internal error", slog.String("error", err.Error()))
	return mcp.NewToolResultError("internal error")
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func (s *Server) readFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := s.svc.Read(ctx, path)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(f)
}

func (s *Server) createFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := s.svc.Create(ctx, path, req.GetString("content", ""))
	if err != nil {
		return s.toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (checksum %s)", f.Path, f.Checksum)), nil
}

func (s *Server) updateFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := s.svc.Replace(ctx, path, content, req.GetString("if_match", ""))
	if err != nil {
		return s.toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (checksum %s)", f.Path, f.Checksum)), nil
}

func (s *Server) patchFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	diff, err := req.RequireString("diff")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := s.svc.Patch(ctx, path, diff, req.GetString("if_match", ""))
	if err != nil {
		return s.toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("patched: %s (checksum %s)", f.Path, f.Checksum)), nil
}

func (s *Server) trashFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Trash(ctx, path)
	if err != nil {
		return s.toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("trashed: %s -> %s", res.Path, res.TrashPath)), nil
}

func (s *Server) deleteFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, path); err != nil {
		return s.toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", path)), nil
}

func (s *Server) dailyNote(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := s.svc.Daily(ctx)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(n)
}

func searchOptions(req mcp.CallToolRequest) search.Options {
	opts := search.Options{}
	if args := req.GetArguments(); args != nil {
		switch v := args["limit"].(type) {
		case float64:
			opts.Limit = int(v)
		case int:
			opts.Limit = v
		}
		if v, ok := args["ignore_case"].(bool); ok {
			opts.IgnoreCase = v
		}
	}
	return opts
}

func (s *Server) searchContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.SearchContent(ctx, query, searchOptions(req))
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(hits)
}

func (s *Server) searchFilename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.SearchFilename(ctx, query, searchOptions(req))
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(hits)
}

func (s *Server) getPatchFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PatchFormatContract), nil
}

func (s *Server) readPatchFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      PatchFormatURI,
			MIMEType: "text/markdown",
			Text:     PatchFormatContract,
		},
	}, nil
}
