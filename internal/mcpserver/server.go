// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the archive library to LLM clients via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/izo/unwebarchiver/internal/archiveservice"
	"github.com/izo/unwebarchiver/internal/export"
	"github.com/izo/unwebarchiver/internal/index"
)

// Server wraps the MCP server with library tools.
type Server struct {
	mcp *server.MCPServer
	svc *archiveservice.Service
}

// New creates a new MCP server with all library tools registered.
func New(svc *archiveservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"unwebarchiver",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_archives",
		mcp.WithDescription("List archives in the library, newest first."),
		mcp.WithString("domain", mcp.Description("Only archives with a resource from this domain")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.listArchives)

	s.mcp.AddTool(mcp.NewTool("inspect_archive",
		mcp.WithDescription("Return the main resource, subresources and frame count of an archive."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Archive path (e.g. reading/article.webarchive)")),
	), s.inspectArchive)

	s.mcp.AddTool(mcp.NewTool("search_resources",
		mcp.WithDescription("Full-text search through the visible text of archived pages and text resources."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.searchResources)

	s.mcp.AddTool(mcp.NewTool("read_resource",
		mcp.WithDescription("Read one resource of an archive. Text resources are returned as UTF-8 text, "+
			"images as image content and anything else as a base64 blob. "+
			"Set plain to strip HTML markup."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Archive path")),
		mcp.WithNumber("position", mcp.Description("0 for the main resource, 1..N for subresources")),
		mcp.WithBoolean("plain", mcp.Description("Return the visible text of HTML instead of markup")),
	), s.readResource)

	s.mcp.AddTool(mcp.NewTool("export_archive",
		mcp.WithDescription("Render an archive as a Markdown summary or a print-ready HTML page."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Archive path")),
		mcp.WithString("format", mcp.Description("markdown (default) or html"), mcp.Enum("markdown", "html")),
	), s.exportArchive)

	s.mcp.AddTool(mcp.NewTool("import_archive",
		mcp.WithDescription("Add a .webarchive to the library from an http(s) URL, a base64 data: URI, "+
			"or base64 data. Read the contract via the "+FormatContractURI+" resource for path rules."),
		mcp.WithString("url", mcp.Description("http(s) or data: URL of the archive")),
		mcp.WithString("data", mcp.Description("Base64-encoded archive bytes, instead of url")),
		mcp.WithString("path", mcp.Description("Target path in the library; derived from the URL when empty")),
	), s.importArchive)

	s.mcp.AddResource(
		mcp.NewResource(FormatContractURI, "Web Archive Library Contract",
			mcp.WithResourceDescription("How archives are addressed, projected and searched."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listArchives(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.ListArchives(ctx, index.ListQuery{
		Domain: req.GetString("domain", ""),
		Limit:  req.GetInt("limit", 50),
		Offset: req.GetInt("offset", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"archives": items, "total": total}), nil
}

func (s *Server) inspectArchive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.svc.GetArchive(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", path, err)), nil
	}
	return jsonResult(a), nil
}

func (s *Server) searchResources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readResource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pos := req.GetInt("position", 0)
	r, _, err := s.svc.Resource(ctx, path, pos)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s[%d]: %v", path, pos, err)), nil
	}

	switch {
	case r.IsText() && req.GetBool("plain", false):
		return mcp.NewToolResultText(r.PlainText()), nil
	case r.IsText():
		return mcp.NewToolResultText(r.Text()), nil
	case strings.HasPrefix(r.MIMEType, "image/"):
		return mcp.NewToolResultImage(r.URL, base64.StdEncoding.EncodeToString(r.Data), r.MIMEType), nil
	}
	return mcp.NewToolResultResource(
		fmt.Sprintf("%s (%s, %s)", r.URL, r.MIMEType, r.HumanSize()),
		mcp.BlobResourceContents{
			URI:      r.URL,
			MIMEType: r.MIMEType,
			Blob:     base64.StdEncoding.EncodeToString(r.Data),
		},
	), nil
}

func (s *Server) exportArchive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := export.ParseFormat(req.GetString("format", string(export.FormatMarkdown)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if f == export.FormatZip {
		return mcp.NewToolResultError("zip exports are only available over HTTP and the CLI"), nil
	}
	var buf bytes.Buffer
	if err := s.svc.Export(ctx, &buf, path, f); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", path, err)), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatContractURI,
			MIMEType: "text/markdown",
			Text:     FormatContract,
		},
	}, nil
}
