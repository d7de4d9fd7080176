// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes mnemo note tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/index"
	"github.com/starford/mnemo/internal/models"
	"github.com/starford/mnemo/internal/noteservice"
)

const formatURI = "mnemo://note-format"

// Server wraps the MCP server with mnemo tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *noteservice.Service
	logger *slog.Logger
}

// New creates a new MCP server with all note tools registered.
func New(svc *noteservice.Service, logger *slog.Logger, version string) *Server {
	s := &Server{svc: svc, logger: logger}

	s.mcp = server.NewMCPServer(
		"mnemo",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. The id is derived from the title. "+
			"Read the format contract first via get_note_contract or the "+formatURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Single-line note title")),
		mcp.WithString("content", mcp.Description("Markdown body; may include an '## Observations' section")),
		mcp.WithString("note_type", mcp.Description("Note type"), mcp.Enum(typeNames()...)),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Tags")),
		mcp.WithArray("observations", mcp.WithStringItems(), mcp.Description("Initial observations, optionally prefixed with [method]")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note as raw markdown or as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("format", mcp.Description("Output format"), mcp.Enum("markdown", "json", "detail")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search over titles, bodies, tags and observations."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithString("note_type", mcp.Description("Restrict to one note type"), mcp.Enum(typeNames()...)),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("add_observation",
		mcp.WithDescription("Append an observation to a note's observation log."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Observation text")),
		mcp.WithString("method", mcp.Description("How the observation was made, e.g. research")),
	), s.addObservation)

	s.mcp.AddTool(mcp.NewTool("create_relation",
		mcp.WithDescription("Link two existing notes. The reverse edge is added to the target note."),
		mcp.WithString("from_id", mcp.Required(), mcp.Description("Source note id")),
		mcp.WithString("to_id", mcp.Required(), mcp.Description("Target note id")),
		mcp.WithString("relation_type", mcp.Required(), mcp.Description("Relation type without whitespace, e.g. located-in")),
	), s.createRelation)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, most recently modified first."),
		mcp.WithString("note_type", mcp.Description("Restrict to one note type"), mcp.Enum(typeNames()...)),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_relations",
		mcp.WithDescription("List every relation edge that starts or ends at a note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.getRelations)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical mnemo note format contract. "+
			"Call this before creating notes to ensure correct structure."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Note Format Contract",
			mcp.WithResourceDescription("Canonical Markdown note format that all notes follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// Listen serves MCP over in and out until ctx is cancelled or in is closed.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func typeNames() []string {
	out := make([]string, len(models.NoteTypes))
	for i, t := range models.NoteTypes {
		out[i] = string(t)
	}
	return out
}

// toolError turns a service error into a tool error result. Unexpected
// failures are logged; the caller only sees the message.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrInvalidInput),
		errors.Is(err, apperr.ErrIDCollision),
		errors.Is(err, apperr.ErrMalformedDocument),
		errors.Is(err, apperr.ErrMalformedHeader):
	default:
		s.logger.Error("mcp: tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.svc.Create(ctx, noteservice.CreateParams{
		Title:        title,
		Content:      req.GetString("content", ""),
		Type:         models.NoteType(req.GetString("note_type", "")),
		Tags:         req.GetStringSlice("tags", nil),
		Observations: req.GetStringSlice("observations", nil),
	})
	if err != nil {
		return s.toolError("create_note", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created note: %s", id)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, err := noteservice.ParseFormat(req.GetString("format", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.Read(ctx, id, format)
	if err != nil {
		return s.toolError("read_note", err), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, index.SearchOptions{
		Type:  models.NoteType(req.GetString("note_type", "")),
		Limit: req.GetInt("limit", 0),
	})
	if err != nil {
		return s.toolError("search_notes", err), nil
	}
	return jsonResult(results)
}

func (s *Server) addObservation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.AppendObservation(ctx, id, text, req.GetString("method", "")); err != nil {
		return s.toolError("add_observation", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Added observation to %s", id)), nil
}

func (s *Server) createRelation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	relType, err := req.RequireString("relation_type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Relate(ctx, from, to, relType); err != nil {
		return s.toolError("create_relation", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created relation: %s --[%s]--> %s",
		strings.TrimSpace(from), strings.TrimSpace(relType), strings.TrimSpace(to))), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	results, err := s.svc.List(ctx, index.ListOptions{
		Type:  models.NoteType(req.GetString("note_type", "")),
		Limit: req.GetInt("limit", 0),
	})
	if err != nil {
		return s.toolError("list_notes", err), nil
	}
	return jsonResult(results)
}

func (s *Server) getRelations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	edges, err := s.svc.Related(ctx, id)
	if err != nil {
		return s.toolError("get_relations", err), nil
	}
	return jsonResult(edges)
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
