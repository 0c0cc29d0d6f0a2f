package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/daily"
	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/noteservice"
	"github.com/starford/notevault/internal/testutil"
	"github.com/starford/notevault/internal/vaultpath"
)

func testServer(t *testing.T) (*Server, vaultpath.Root) {
	t.Helper()
	root, store := testutil.TestVault(t)
	gen := daily.New(root, store, daily.NewTemplateRenderer(root), daily.Config{})
	return New(noteservice.NewService(root, store, gen), nil, "test"), root
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"read_file":        srv.readFile,
		"create_file":      srv.createFile,
		"update_file":      srv.updateFile,
		"patch_file":       srv.patchFile,
		"trash_file":       srv.trashFile,
		"delete_file":      srv.deleteFile,
		"daily_note":       srv.dailyNote,
		"search_content":   srv.searchContent,
		"search_filename":  srv.searchFilename,
		"get_patch_format": srv.getPatchFormat,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func readJSON[T any](t *testing.T, r *mcp.CallToolResult) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(resultText(r)), &v); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	return v
}

func TestCreateAndReadFile(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_file", map[string]interface{}{
		"path":    "test.md",
		"content": "# Test\nHello",
	})
	if r.IsError || !strings.HasPrefix(resultText(r), "created: test.md") {
		t.Errorf("create result = %q", resultText(r))
	}

	r = callTool(t, srv, "read_file", map[string]interface{}{"path": "test.md"})
	f := readJSON[noteservice.File](t, r)
	if f.Content != "# Test\nHello" || f.Title != "Test" || f.Checksum == "" {
		t.Errorf("read result = %+v", f)
	}
}

func TestCreateFileTwiceFails(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_file", map[string]interface{}{"path": "a.md"})
	r := callTool(t, srv, "create_file", map[string]interface{}{"path": "a.md", "content": "x"})
	if !r.IsError {
		t.Error("expected error for existing file")
	}
}

func TestReadFileErrors(t *testing.T) {
	srv, _ := testServer(t)
	tests := map[string]map[string]interface{}{
		"missing":   {"path": "nope.md"},
		"traversal": {"path": "../../etc/passwd"},
		"no path":   {},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if r := callTool(t, srv, "read_file", args); !r.IsError {
				t.Errorf("expected error, got %q", resultText(r))
			}
		})
	}
}

func TestToolErrorHidesHostErrors(t *testing.T) {
	srv, root := testServer(t)

	hostErr := fmt.Errorf("storage: write a.md: %w", &os.PathError{
		Op:   "open",
		Path: root.Dir() + "/a.md",
		Err:  syscall.EACCES,
	})
	r := srv.toolError(hostErr)
	if !r.IsError {
		t.Fatal("expected error result")
	}
	if got := resultText(r); got != "internal error" {
		t.Errorf("text = %q, want internal error", got)
	}

	known := &apperr.PathError{Path: "a.md", Err: apperr.ErrNotFound}
	if got := resultText(srv.toolError(known)); got != known.Error() {
		t.Errorf("text = %q, want %q", got, known.Error())
	}
}

func TestUpdateFileIfMatch(t *testing.T) {
	srv, root := testServer(t)
	testutil.WriteFiles(t, root, map[string]string{"a.md": "v1"})

	f := readJSON[noteservice.File](t, callTool(t, srv, "read_file", map[string]interface{}{"path": "a.md"}))

	r := callTool(t, srv, "update_file", map[string]interface{}{
		"path": "a.md", "content": "v2", "if_match": f.Checksum,
	})
	if r.IsError {
		t.Fatalf("update: %s", resultText(r))
	}
	r = callTool(t, srv, "update_file", map[string]interface{}{
		"path": "a.md", "content": "v3", "if_match": f.Checksum,
	})
	if !r.IsError {
		t.Error("stale if_match must fail")
	}
	if got := testutil.ReadFile(t, root, "a.md"); got != "v2" {
		t.Errorf("content = %q", got)
	}
}

func TestPatchFile(t *testing.T) {
	srv, root := testServer(t)
	testutil.WriteFiles(t, root, map[string]string{"n.md": "line1\nline2\nline3\n"})

	r := callTool(t, srv, "patch_file", map[string]interface{}{
		"path": "n.md",
		"diff": "@@ -2,1 +2,1 @@\n-line2\n+lineX\n",
	})
	if r.IsError {
		t.Fatalf("patch: %s", resultText(r))
	}
	if got := testutil.ReadFile(t, root, "n.md"); got != "line1\nlineX\nline3\n" {
		t.Errorf("content = %q", got)
	}

	r = callTool(t, srv, "patch_file", map[string]interface{}{
		"path": "n.md",
		"diff": "@@ -2,1 +2,1 @@\n-line2\n+lineY\n",
	})
	if !r.IsError {
		t.Fatal("stale patch must fail")
	}
	if !strings.Contains(resultText(r), "line2") {
		t.Errorf("error should name the expected line: %q", resultText(r))
	}
}

func TestTrashAndDeleteFile(t *testing.T) {
	srv, root := testServer(t)
	testutil.WriteFiles(t, root, map[string]string{"a.md": "a", "b.md": "b"})

	r := callTool(t, srv, "trash_file", map[string]interface{}{"path": "a.md"})
	if r.IsError || resultText(r) != "trashed: a.md -> .trash/a.md" {
		t.Errorf("trash result = %q", resultText(r))
	}
	if !testutil.Exists(t, root, ".trash/a.md") || testutil.Exists(t, root, "a.md") {
		t.Error("file not moved to trash")
	}

	r = callTool(t, srv, "delete_file", map[string]interface{}{"path": "b.md"})
	if r.IsError || testutil.Exists(t, root, "b.md") {
		t.Errorf("delete result = %q", resultText(r))
	}
	if r := callTool(t, srv, "delete_file", map[string]interface{}{"path": "b.md"}); !r.IsError {
		t.Error("second delete must fail")
	}
}

func TestDailyNoteIdempotent(t *testing.T) {
	srv, _ := testServer(t)
	first := readJSON[noteservice.DailyNote](t, callTool(t, srv, "daily_note", nil))
	second := readJSON[noteservice.DailyNote](t, callTool(t, srv, "daily_note", nil))

	if !strings.HasPrefix(first.Path, "daily/") {
		t.Errorf("path = %q", first.Path)
	}
	if first.Path != second.Path || !first.Created || second.Created {
		t.Errorf("first = %+v, second = %+v", first, second)
	}
}

func TestSearchTools(t *testing.T) {
	srv, root := testServer(t)
	testutil.WriteFiles(t, root, map[string]string{
		"a.md":       "Alpha\nbeta gamma\n",
		"notes/b.md": "BETA\n",
		"c.txt":      "beta\n",
	})

	hits := readJSON[[]models.ContentHit](t, callTool(t, srv, "search_content", map[string]interface{}{
		"query": "beta",
	}))
	if len(hits) != 2 {
		t.Errorf("case-sensitive hits = %+v", hits)
	}

	hits = readJSON[[]models.ContentHit](t, callTool(t, srv, "search_content", map[string]interface{}{
		"query": "beta", "ignore_case": true, "limit": float64(2),
	}))
	if len(hits) != 2 {
		t.Errorf("limited hits = %+v", hits)
	}

	files := readJSON[[]models.FileHit](t, callTool(t, srv, "search_filename", map[string]interface{}{
		"query": "*.md",
	}))
	if len(files) != 2 {
		t.Errorf("glob hits = %+v", files)
	}

	if r := callTool(t, srv, "search_filename", map[string]interface{}{"query": "[a-"}); !r.IsError {
		t.Error("bad glob must fail")
	}
}

func TestGetPatchFormat(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_patch_format", nil)
	if resultText(r) != PatchFormatContract {
		t.Error("contract text mismatch")
	}

	contents, err := srv.readPatchFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != PatchFormatURI {
		t.Errorf("resource content = %+v", contents[0])
	}
}

func TestToolsRegistered(t *testing.T) {
	srv, _ := testServer(t)
	msg := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	resp := srv.MCPServer().HandleMessage(context.Background(), msg)
	out, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"read_file", "create_file", "update_file", "patch_file", "trash_file",
		"delete_file", "daily_note", "search_content", "search_filename", "get_patch_format",
	} {
		if !strings.Contains(string(out), `"name":"`+name+`"`) {
			t.Errorf("tool %s not listed", name)
		}
	}
}
