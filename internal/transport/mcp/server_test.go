package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/notesearch/internal/domain"
	domnote "github.com/kailas-cloud/notesearch/internal/domain/note"
	"github.com/kailas-cloud/notesearch/internal/domain/search/mode"
	"github.com/kailas-cloud/notesearch/internal/domain/search/page"
	"github.com/kailas-cloud/notesearch/internal/domain/tenant"
)

type searchFunc func(ctx context.Context, scope tenant.Scope, freeText string, tags []string, m mode.Mode, pageNum int) (page.Page, error)

func (f searchFunc) Search(
	ctx context.Context, scope tenant.Scope, freeText string, tags []string, m mode.Mode, pageNum int,
) (page.Page, error) {
	return f(ctx, scope, freeText, tags, m, pageNum)
}

func connect(t *testing.T, s Searcher) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := NewServer(s, zap.NewNop()).Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func call(t *testing.T, session *mcp.ClientSession, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: ToolName, Arguments: args})
	require.NoError(t, err)
	return res
}

func TestSearchNotes_Tool(t *testing.T) {
	var gotScope tenant.Scope
	var gotTags []string
	var gotPage int
	search := searchFunc(func(
		_ context.Context, scope tenant.Scope, freeText string, tags []string, m mode.Mode, pageNum int,
	) (page.Page, error) {
		gotScope, gotTags, gotPage = scope, tags, pageNum
		n, err := domnote.New("n1", scope, "hiking "+freeText, []string{"trip"}, "bob",
			time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, mode.Lexical, m)
		return page.Format([]page.Hit{{Note: n}}, 1, pageNum, 10), nil
	})
	session := connect(t, search)

	res := call(t, session, map[string]any{
		"owner": "alice", "collection": "journal", "query": "canyon", "tags": []string{"trip"}, "mode": "lexical",
	})
	require.False(t, res.IsError)

	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out SearchOutput
	require.NoError(t, json.Unmarshal(raw, &out))

	assert.Equal(t, tenant.MustNew("alice", "journal"), gotScope)
	assert.Equal(t, []string{"trip"}, gotTags)
	assert.Equal(t, 1, gotPage, "page defaults to 1")
	require.Len(t, out.Documents, 1)
	assert.Equal(t, "n1", out.Documents[0].ID)
	assert.Equal(t, "hiking canyon", out.Documents[0].Content)
	assert.Equal(t, "2026-05-01T00:00:00Z", out.Documents[0].CreatedAt)
	assert.Equal(t, 1, out.TotalPages)
}

func TestSearchNotes_InvalidScope(t *testing.T) {
	called := false
	search := searchFunc(func(context.Context, tenant.Scope, string, []string, mode.Mode, int) (page.Page, error) {
		called = true
		return page.Page{}, nil
	})
	session := connect(t, search)

	res := call(t, session, map[string]any{"owner": "", "collection": "journal"})
	assert.True(t, res.IsError)
	assert.False(t, called)
}

func TestSearchNotes_ErrorsHideDiagnostics(t *testing.T) {
	search := searchFunc(func(context.Context, tenant.Scope, string, []string, mode.Mode, int) (page.Page, error) {
		return page.Page{}, &domain.BackendError{
			Kind: domain.ErrBackendUnavailable, Op: "search", Err: errors.New("dial tcp 10.0.0.7:6379"),
		}
	})
	session := connect(t, search)

	res := call(t, session, map[string]any{"owner": "alice", "collection": "journal", "query": "x"})
	require.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, domain.ErrBackendUnavailable.Error())
	assert.False(t, strings.Contains(text.Text, "10.0.0.7"))
}

func TestSafeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{domain.Invalid("page must be a positive integer"), "invalid request: page must be a positive integer"},
		{domain.ErrEmbeddingUnavailable, "embedding unavailable"},
		{domain.ErrIndexNotReady, domain.ErrIndexNotReady.Error()},
		{context.DeadlineExceeded, "search timed out"},
		{errors.New("boom"), "internal error"},
	}
	for _, tt := range tests {
		assert.EqualError(t, safeError(tt.err), tt.want)
	}
}
