// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the wiki as MCP tools over streamable HTTP.
//
// Each session sees only the tools its access token's scopes unlock. The
// tool set is fixed when the session is registered, and the session is
// bound to the grant that opened it: a request presenting a different
// grant for the same session ID is answered as if the session did not
// exist.
package server

import (
	"context"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/stacklok/wikiauth/pkg/logger"
	"github.com/stacklok/wikiauth/pkg/wiki"
)

const sessionHeader = "Mcp-Session-Id"

// Config configures the MCP server.
type Config struct {
	// Name and Version are reported to clients during initialization.
	Name    string
	Version string
	// EndpointPath is the path the streamable transport serves.
	EndpointPath string
	// SessionTTL is how long an idle session is kept.
	SessionTTL time.Duration
}

// Server serves wiki tools to authenticated MCP clients.
type Server struct {
	mcpServer *mcpserver.MCPServer
	sessions  *sessionStore
	tools     []toolDef
	handler   http.Handler
}

// New creates a Server. auth validates bearer tokens and svc performs the
// tool operations.
func New(cfg Config, auth TokenAuthenticator, svc *wiki.Service) *Server {
	if cfg.Name == "" {
		cfg.Name = "wikiauth"
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}

	hooks := &mcpserver.Hooks{}
	mcpServer := mcpserver.NewMCPServer(
		cfg.Name,
		cfg.Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithLogging(),
		mcpserver.WithHooks(hooks),
	)

	s := &Server{
		mcpServer: mcpServer,
		sessions:  newSessionStore(cfg.SessionTTL),
		tools:     toolDefs(svc),
	}
	hooks.AddOnRegisterSession(s.handleSessionRegistration)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpServer,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithSessionIdManagerResolver(s.sessions),
	)
	s.handler = bearerMiddleware(auth, s.sessionBinding(streamable))
	return s
}

// Handler returns the authenticated MCP endpoint.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) sessionBinding(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(sessionHeader)
		if id != "" {
			grant, _ := GrantFromContext(r.Context())
			if grant == nil || !s.sessions.admits(id, grant) {
				logger.Warnw("mcp session presented with a different grant", "session_id", id)
				http.Error(w, "Session not found", http.StatusNotFound)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// handleSessionRegistration binds the session to the initializing grant and
// injects the tools its scopes unlock. The bearer middleware has already
// stored the grant in ctx.
func (s *Server) handleSessionRegistration(ctx context.Context, session mcpserver.ClientSession) {
	sessionID := session.SessionID()
	grant, ok := GrantFromContext(ctx)
	if !ok {
		logger.Errorw("mcp session registered without a grant", "session_id", sessionID)
		return
	}
	s.sessions.bind(sessionID, grant)

	tools := sessionTools(s.tools, grant.Scopes)
	logger.Debugw("mcp session registered",
		"session_id", sessionID,
		"client_id", grant.ClientID,
		"tools", len(tools),
	)
	if len(tools) == 0 {
		return
	}
	if err := s.mcpServer.AddSessionTools(sessionID, tools...); err != nil {
		logger.Errorw("failed to add session tools", "session_id", sessionID, "error", err)
	}
}
