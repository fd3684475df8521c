// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/wikiauth/pkg/authserver"
	"github.com/stacklok/wikiauth/pkg/storage"
	"github.com/stacklok/wikiauth/pkg/storage/sqlite"
	"github.com/stacklok/wikiauth/pkg/wiki"
)

type staticTokens map[string]*authserver.Grant

func (s staticTokens) Authenticate(_ context.Context, token string) (*authserver.Grant, error) {
	g, ok := s[token]
	if !ok {
		return nil, authserver.ErrInvalidToken
	}
	return g, nil
}

var testTokens = staticTokens{
	"reader": {ClientID: "client-a", UserID: "user-a", TeamID: "team-a", Scopes: []string{"read"}},
	"writer": {ClientID: "client-a", UserID: "user-a", TeamID: "team-a", Scopes: []string{"read", "write"}},
	"docs":   {ClientID: "client-b", UserID: "user-a", TeamID: "team-a", Scopes: []string{"documents:read"}},
}

func newTestServer(t *testing.T) string {
	t.Helper()
	ctx := t.Context()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "wiki.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.CreateTeam(ctx, &storage.Team{ID: "team-a", Name: "A", Subdomain: "a"}))
	require.NoError(t, db.CreateUser(ctx, &storage.User{ID: "user-a", TeamID: "team-a", Name: "Ann", Email: "ann@a.test"}))

	s := New(Config{}, testTokens, wiki.NewService(db))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv.URL + "/mcp"
}

func connect(t *testing.T, url, token string) *client.Client {
	t.Helper()
	ctx := t.Context()

	c, err := client.NewStreamableHttpClient(url,
		transport.WithHTTPHeaders(map[string]string{"Authorization": "Bearer " + token}))
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() { _ = c.Close() })

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "wikiauth-test", Version: "1.0.0"}
	_, err = c.Initialize(ctx, initReq)
	require.NoError(t, err)
	return c
}

func toolNames(t *testing.T, c *client.Client) []string {
	t.Helper()
	res, err := c.ListTools(t.Context(), mcp.ListToolsRequest{})
	require.NoError(t, err)
	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	slices.Sort(names)
	return names
}

func callTool(t *testing.T, c *client.Client, name string, args map[string]any) (*mcp.CallToolResult, error) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return c.CallTool(t.Context(), req)
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return text.Text
}

func TestToolsFollowScopes(t *testing.T) {
	t.Parallel()
	url := newTestServer(t)

	tests := []struct {
		token string
		want  []string
	}{
		{
			token: "reader",
			want:  []string{"get_collection", "get_document", "list_collections", "list_documents", "search_documents"},
		},
		{
			token: "docs",
			want:  []string{"get_document", "list_documents", "search_documents"},
		},
		{
			token: "writer",
			want: []string{
				"create_collection", "create_document", "delete_collection", "delete_document",
				"get_collection", "get_document", "list_collections", "list_documents",
				"search_documents", "update_collection", "update_document",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			t.Parallel()
			c := connect(t, url, tt.token)
			assert.Equal(t, tt.want, toolNames(t, c))
		})
	}
}

func TestUngrantedToolLooksMissing(t *testing.T) {
	t.Parallel()
	c := connect(t, newTestServer(t), "reader")

	_, err := callTool(t, c, "create_collection", map[string]any{"name": "Nope"})
	require.Error(t, err)

	_, errMissing := callTool(t, c, "no_such_tool", nil)
	require.Error(t, errMissing)

	assert.Contains(t, err.Error(), "not found")
	assert.Contains(t, errMissing.Error(), "not found")
}

func TestWriterRoundTrip(t *testing.T) {
	t.Parallel()
	c := connect(t, newTestServer(t), "writer")

	res, err := callTool(t, c, "create_collection", map[string]any{"name": "Runbooks"})
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	var coll collectionView
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &coll))
	assert.Equal(t, "Runbooks", coll.Name)

	res, err = callTool(t, c, "create_document", map[string]any{
		"collection_id": coll.ID,
		"title":         "Paging",
		"text":          "Escalate after ten minutes",
	})
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	res, err = callTool(t, c, "search_documents", map[string]any{"query": "escalate"})
	require.NoError(t, err)
	var found []documentView
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "Paging", found[0].Title)
	assert.Empty(t, found[0].Text, "listings omit bodies")

	res, err = callTool(t, c, "update_collection", map[string]any{"id": coll.ID, "description": "on-call"})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &coll))
	assert.Equal(t, "Runbooks", coll.Name)
	assert.Equal(t, "on-call", coll.Description)

	res, err = callTool(t, c, "get_collection", map[string]any{"id": "missing"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "not found", resultText(t, res))

	res, err = callTool(t, c, "create_collection", map[string]any{"name": "  "})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "name is required")
}

func TestBearerRequired(t *testing.T) {
	t.Parallel()
	url := newTestServer(t)

	for _, auth := range []string{"", "Basic abc", "Bearer unknown"} {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, url, strings.NewReader(`{}`))
		require.NoError(t, err)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, auth)
		assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
	}
}

func rawPost(t *testing.T, url, token, sessionID, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestSessionBoundToGrant(t *testing.T) {
	t.Parallel()
	url := newTestServer(t)

	const initialize = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"raw","version":"1"}}}`
	const listTools = `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`

	resp := rawPost(t, url, "reader", "", initialize)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessionID := resp.Header.Get(sessionHeader)
	require.NotEmpty(t, sessionID)

	resp = rawPost(t, url, "writer", sessionID, listTools)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "same user with more scopes")

	resp = rawPost(t, url, "docs", sessionID, listTools)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "different client")

	resp = rawPost(t, url, "reader", sessionID, listTools)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWrap_RechecksScopes(t *testing.T) {
	t.Parallel()

	var called bool
	d := toolDef{
		capability: "documents.delete",
		tool:       mcp.NewTool("delete_document"),
		handle: func(context.Context, wiki.Actor, mcp.CallToolRequest) (any, error) {
			called = true
			return nil, errors.New("unreachable")
		},
	}
	ctx := WithGrant(t.Context(), testTokens["reader"])

	_, err := wrap(d)(ctx, mcp.CallToolRequest{})
	require.Error(t, err)
	assert.False(t, called)
}
