// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/ory/fosite"

	"github.com/stacklok/wikiauth/pkg/authserver/clients"
	"github.com/stacklok/wikiauth/pkg/capabilities"
	"github.com/stacklok/wikiauth/pkg/storage"
)

// SessionTeamKey is the fosite session extra carrying the team id.
const SessionTeamKey = "team_id"

// authorizeJSONResponse is returned instead of a redirect when the caller
// asks for JSON.
type authorizeJSONResponse struct {
	RedirectURI string `json:"redirect_uri"`
	Code        string `json:"code"`
	State       string `json:"state"`
}

// AuthorizeHandler handles POST /oauth/authorize requests.
// The signed-in user consents to the client and a single-use code is
// handed back through the client's registered redirect URI.
func (h *Handler) AuthorizeHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	team, ok := teamFrom(w, req)
	if !ok {
		return
	}

	user, err := h.users.Authenticate(req)
	if err != nil || user.TeamID != team.ID {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	if err := req.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, fosite.ErrInvalidRequest.ErrorField, "Malformed request body")
		return
	}
	// Rejected here rather than by fosite so that nothing is redirected.
	if req.Form.Get("state") == "" {
		writeError(w, http.StatusBadRequest, fosite.ErrInvalidRequest.ErrorField, "state is required")
		return
	}

	client, err := h.clients.FindByPublicID(ctx, req.Form.Get("client_id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// fosite reports the unknown client.
	case err != nil:
		slog.Error("failed to load client for authorization", "error", err)
		writeError(w, http.StatusInternalServerError, fosite.ErrServerError.ErrorField, "")
		return
	case !clients.CanUse(client, user):
		writeError(w, http.StatusForbidden, fosite.ErrAccessDenied.ErrorField, "The client is not available to this user")
		return
	}

	ar, err := h.provider.NewAuthorizeRequest(ctx, req)
	if err != nil {
		h.provider.WriteAuthorizeError(ctx, w, ar, err)
		return
	}

	// fosite only checks the redirect URI at exchange when the authorize
	// request carried one, so the registered URI it fell back to is pinned.
	ar.GetRequestForm().Set("redirect_uri", ar.GetRedirectURI().String())

	requested := ar.GetRequestedScopes()
	if len(requested) == 0 {
		requested = readOnlyScopes(ar.GetClient().GetScopes())
	}
	for _, scope := range requested {
		ar.GrantScope(scope)
	}

	sess := &fosite.DefaultSession{
		Subject:  user.ID,
		Username: user.Email,
		Extra:    map[string]interface{}{SessionTeamKey: team.ID},
	}

	resp, err := h.provider.NewAuthorizeResponse(ctx, ar, sess)
	if err != nil {
		slog.Error("failed to create authorize response", "error", err)
		h.provider.WriteAuthorizeError(ctx, w, ar, err)
		return
	}

	slog.Debug("authorization code issued",
		"client_id", ar.GetClient().GetID(),
		"scopes", strings.Join(ar.GetGrantedScopes(), " "),
	)

	if wantsJSON(req) {
		params := resp.GetParameters()
		redirect := *ar.GetRedirectURI()
		q := redirect.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		redirect.RawQuery = q.Encode()
		writeJSON(w, http.StatusOK, authorizeJSONResponse{
			RedirectURI: redirect.String(),
			Code:        params.Get("code"),
			State:       params.Get("state"),
		})
		return
	}

	h.provider.WriteAuthorizeResponse(ctx, w, ar, resp)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// readOnlyScopes narrows each of the client's scopes to its read class.
func readOnlyScopes(scopes []string) fosite.Arguments {
	var out fosite.Arguments
	for _, s := range scopes {
		scope, ok := capabilities.Parse(s)
		if !ok {
			continue
		}
		scope.Level = capabilities.LevelRead
		if name := scope.String(); !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}
