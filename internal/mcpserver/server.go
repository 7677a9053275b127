// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes quire tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/slug"
)

// DocumentLoader resolves references into rendered documents.
type DocumentLoader interface {
	Load(ctx context.Context, ref string) (*models.ResolvedDocument, error)
	Locate(ref string) (string, error)
}

// Server wraps the MCP server with quire tools.
type Server struct {
	mcp  *server.MCPServer
	docs DocumentLoader
	idx  index.DocumentIndex
}

// New creates a new MCP server with all quire tools registered. idx may be
// nil, in which case the search and backlink tools report an error.
func New(docs DocumentLoader, idx index.DocumentIndex, version string) *Server {
	s := &Server{docs: docs, idx: idx}

	s.mcp = server.NewMCPServer(
		"quire",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("render_document",
		mcp.WithDescription("Resolve a document reference, splice its embeds, and return it rendered. "+
			"The json format includes metadata, table of contents, links and diagnostics."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Document reference: a slug, a path, or a wikilink target")),
		mcp.WithString("format", mcp.Description("Output format"), mcp.Enum("html", "xml", "json")),
	), s.renderDocument)

	s.mcp.AddTool(mcp.NewTool("locate_reference",
		mcp.WithDescription("Map a logical reference onto the source file it names."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Document reference")),
	), s.locateReference)

	s.mcp.AddTool(mcp.NewTool("get_toc",
		mcp.WithDescription("Return the headings of a document with their anchors and levels."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Document reference")),
	), s.getTOC)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through resolved document content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all documents that link to or embed the specified document."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Reference of the document to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_syntax",
		mcp.WithDescription("Returns the quire source syntax reference. "+
			"Call this before authoring content so links, embeds and callouts resolve."),
	), s.getSyntax)

	// Resource: source syntax reference.
	s.mcp.AddResource(
		mcp.NewResource(SyntaxURI, "Source Syntax",
			mcp.WithResourceDescription("Preamble fields, references, wikilinks, embeds, callouts, footnotes and math."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSyntaxResource,
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

func loadError(ref string, err error) *mcp.CallToolResult {
	var cycle *apperr.CircularEmbedError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", ref))
	case errors.As(err, &cycle):
		return mcp.NewToolResultError(cycle.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) renderDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format := "html"
	if f, fErr := req.RequireString("format"); fErr == nil && f != "" {
		format = strings.ToLower(f)
	}

	doc, err := s.docs.Load(ctx, ref)
	if err != nil {
		return loadError(ref, err), nil
	}
	switch format {
	case "html":
		return mcp.NewToolResultText(doc.HTML), nil
	case "xml":
		return mcp.NewToolResultText(doc.XML), nil
	case "json":
		return jsonResult(doc), nil
	}
	return mcp.NewToolResultError(fmt.Sprintf("unknown format %q", format)), nil
}

func (s *Server) locateReference(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.docs.Locate(ref)
	if err != nil {
		return loadError(ref, err), nil
	}
	return mcp.NewToolResultText(p), nil
}

func (s *Server) getTOC(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.docs.Load(ctx, ref)
	if err != nil {
		return loadError(ref, err), nil
	}
	if len(doc.TOC) == 0 {
		return mcp.NewToolResultText("no headings found"), nil
	}
	var b strings.Builder
	for _, e := range doc.TOC {
		fmt.Fprintf(&b, "%s- [%s](#%s)\n", strings.Repeat("  ", max(e.Level-1, 0)), e.Text, e.ID)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) searchDocuments(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.idx == nil {
		return mcp.NewToolResultError("index unavailable"), nil
	}
	limit := 20
	if n, lErr := req.RequireInt("limit"); lErr == nil && n > 0 {
		limit = n
	}
	results, err := s.idx.Search(query, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	return jsonResult(results), nil
}

func (s *Server) getBacklinks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.idx == nil {
		return mcp.NewToolResultError("index unavailable"), nil
	}
	bl, err := s.idx.Backlinks(slug.Normalize(ref))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	lines := make([]string, len(bl))
	for i, b := range bl {
		lines[i] = b.Source + " (" + b.Type + ")"
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getSyntax(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SyntaxReference), nil
}

func (s *Server) readSyntaxResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SyntaxURI,
			MIMEType: "text/markdown",
			Text:     SyntaxReference,
		},
	}, nil
}
