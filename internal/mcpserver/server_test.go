package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mnemo/internal/index"
	"github.com/starford/mnemo/internal/models"
	"github.com/starford/mnemo/internal/noteservice"
	"github.com/starford/mnemo/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	clock := &testutil.Clock{T: time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC), Step: time.Second}
	svc := noteservice.New(testutil.TestStore(t), testutil.TestDB(t), noteservice.WithClock(clock.Now))
	return New(svc, testutil.DiscardLogger(), "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "add_observation":
		result, err = srv.addObservation(ctx, req)
	case "create_relation":
		result, err = srv.createRelation(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "get_relations":
		result, err = srv.getRelations(ctx, req)
	case "get_note_contract":
		result, err = srv.getNoteContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadNote(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "create_note", map[string]any{
		"title":        "Eiffel Tower",
		"content":      "A landmark.",
		"note_type":    "concept",
		"tags":         []any{"paris"},
		"observations": []any{"[research] Built in 1889"},
	})
	if r.IsError || resultText(r) != "Created note: eiffel-tower" {
		t.Fatalf("create result = %q", resultText(r))
	}

	r = callTool(t, srv, "read_note", map[string]any{"id": "eiffel-tower"})
	text := resultText(r)
	if !strings.HasPrefix(text, "---\ntitle: Eiffel Tower\n") || !strings.Contains(text, "\n- [research] Built in 1889\n") {
		t.Errorf("read result = %q", text)
	}

	r = callTool(t, srv, "read_note", map[string]any{"id": "eiffel-tower", "format": "json"})
	var doc struct {
		ID           string   `json:"id"`
		Observations []string `json:"observations"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &doc); err != nil {
		t.Fatalf("json read: %v\n%s", err, resultText(r))
	}
	if doc.ID != "eiffel-tower" || len(doc.Observations) != 1 {
		t.Errorf("json doc = %+v", doc)
	}

	callTool(t, srv, "create_note", map[string]any{"title": "Paris"})
	callTool(t, srv, "create_relation", map[string]any{"from_id": "eiffel-tower", "to_id": "paris", "relation_type": "located-in"})
	r = callTool(t, srv, "read_note", map[string]any{"id": "paris", "format": "detail"})
	var detail struct {
		Incoming []models.Edge `json:"incoming"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &detail); err != nil {
		t.Fatalf("detail read: %v\n%s", err, resultText(r))
	}
	want := []models.Edge{{Source: "eiffel-tower", Target: "paris", Type: "located-in"}}
	if diff := cmp.Diff(want, detail.Incoming); diff != "" {
		t.Errorf("incoming (-want +got):\n%s", diff)
	}
}

func TestCreateNoteErrors(t *testing.T) {
	srv := testServer(t)
	tests := []map[string]any{
		{},
		{"title": "!!!"},
		{"title": "Bad", "note_type": "diary"},
	}
	for _, args := range tests {
		if r := callTool(t, srv, "create_note", args); !r.IsError {
			t.Errorf("create_note(%v) should fail", args)
		}
	}

	callTool(t, srv, "create_note", map[string]any{"title": "Dup"})
	if r := callTool(t, srv, "create_note", map[string]any{"title": "dup"}); !r.IsError {
		t.Error("duplicate id should fail")
	}
}

func TestReadNoteErrors(t *testing.T) {
	srv := testServer(t)
	if r := callTool(t, srv, "read_note", map[string]any{"id": "nope"}); !r.IsError {
		t.Error("expected error for missing note")
	}
	callTool(t, srv, "create_note", map[string]any{"title": "A"})
	if r := callTool(t, srv, "read_note", map[string]any{"id": "a", "format": "xml"}); !r.IsError {
		t.Error("expected error for unknown format")
	}
}

func TestObservationAndSearch(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "create_note", map[string]any{"title": "Eiffel Tower", "content": "A landmark."})

	r := callTool(t, srv, "add_observation", map[string]any{
		"note_id": "eiffel-tower",
		"text":    "Built in 1889",
		"method":  "research",
	})
	if resultText(r) != "Added observation to eiffel-tower" {
		t.Fatalf("add_observation = %q", resultText(r))
	}

	r = callTool(t, srv, "search_notes", map[string]any{"query": "1889", "limit": float64(5)})
	var hits []index.Summary
	if err := json.Unmarshal([]byte(resultText(r)), &hits); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "eiffel-tower" {
		t.Errorf("hits = %+v", hits)
	}

	r = callTool(t, srv, "search_notes", map[string]any{"query": "nothing matches this"})
	if strings.TrimSpace(resultText(r)) != "[]" {
		t.Errorf("empty search = %q", resultText(r))
	}

	if r := callTool(t, srv, "add_observation", map[string]any{"note_id": "ghost", "text": "x"}); !r.IsError {
		t.Error("observation on missing note should fail")
	}
}

func TestRelationsAndList(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "create_note", map[string]any{"title": "Eiffel Tower", "note_type": "concept"})
	callTool(t, srv, "create_note", map[string]any{"title": "Paris"})

	r := callTool(t, srv, "create_relation", map[string]any{
		"from_id":       "eiffel-tower",
		"to_id":         "paris",
		"relation_type": "located-in",
	})
	if resultText(r) != "Created relation: eiffel-tower --[located-in]--> paris" {
		t.Fatalf("create_relation = %q", resultText(r))
	}

	r = callTool(t, srv, "get_relations", map[string]any{"id": "paris"})
	var edges []models.Edge
	if err := json.Unmarshal([]byte(resultText(r)), &edges); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(edges) != 2 {
		t.Errorf("edges = %+v", edges)
	}

	r = callTool(t, srv, "create_relation", map[string]any{
		"from_id": "eiffel-tower", "to_id": "london", "relation_type": "near",
	})
	if !r.IsError {
		t.Error("relation to missing note should fail")
	}

	r = callTool(t, srv, "list_notes", map[string]any{"note_type": "concept"})
	var list []index.Summary
	if err := json.Unmarshal([]byte(resultText(r)), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].ID != "eiffel-tower" {
		t.Errorf("list = %+v", list)
	}
}

func TestNoteContract(t *testing.T) {
	srv := testServer(t)
	text := resultText(callTool(t, srv, "get_note_contract", nil))
	if !strings.Contains(text, "## Observations") {
		t.Error("contract should document the observation log")
	}

	res, err := srv.readNoteFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(res) != 1 {
		t.Fatalf("resource = %v, %v", res, err)
	}
	if tc, ok := res[0].(mcp.TextResourceContents); !ok || tc.URI != formatURI {
		t.Errorf("resource contents = %+v", res[0])
	}
}

func TestToolsRegistered(t *testing.T) {
	srv := testServer(t)
	msg := srv.MCPServer().HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	out, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"create_note", "read_note", "search_notes", "add_observation",
		"create_relation", "list_notes", "get_relations", "get_note_contract",
	} {
		if !strings.Contains(string(out), `"`+name+`"`) {
			t.Errorf("tool %s not listed", name)
		}
	}
}
