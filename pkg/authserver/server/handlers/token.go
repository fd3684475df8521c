// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ory/fosite"

	"github.com/stacklok/wikiauth/pkg/storage"
)

// TokenHandler handles POST /oauth/token requests.
// It processes token requests using fosite's access request/response flow.
func (h *Handler) TokenHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	if err := h.requireRefreshSecret(req); err != nil {
		h.writeAccessError(w, req, fosite.NewAccessRequest(&fosite.DefaultSession{}), err)
		return
	}

	// The stored session is restored into this template by fosite.
	sess := &fosite.DefaultSession{}

	accessRequest, err := h.provider.NewAccessRequest(ctx, req, sess)
	if err != nil {
		slog.Debug("failed to create access request", "error", err)
		h.writeAccessError(w, req, accessRequest, err)
		return
	}

	response, err := h.provider.NewAccessResponse(ctx, accessRequest)
	if err != nil {
		slog.Error("failed to create access response", "error", err)
		h.writeAccessError(w, req, accessRequest, err)
		return
	}
	response.SetTokenType("Bearer")

	h.provider.WriteAccessResponse(ctx, w, accessRequest, response)

	clientID := accessRequest.GetClient().GetID()
	if err := h.clients.Touch(ctx, clientID); err != nil {
		slog.Warn("failed to record client activity", "client_id", clientID, "error", err)
	}
	h.metrics.TokenIssued(strings.Join(accessRequest.GetGrantTypes(), " "))
}

// requireRefreshSecret rejects refresh requests from confidential clients
// that do not authenticate. fosite lets the refresh grant through on the
// client id alone, so this runs before it.
func (h *Handler) requireRefreshSecret(req *http.Request) error {
	if err := req.ParseForm(); err != nil {
		return fosite.ErrInvalidRequest.WithHint("Unable to parse the request body.").WithWrap(err)
	}
	if req.PostForm.Get("grant_type") != string(fosite.GrantTypeRefreshToken) {
		return nil
	}

	clientID, secret, basic := req.BasicAuth()
	if !basic {
		clientID = req.PostForm.Get("client_id")
		secret = req.PostForm.Get("client_secret")
	}
	if clientID == "" {
		return nil
	}

	client, err := h.clients.FindByPublicID(req.Context(), clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fosite.ErrServerError.WithWrap(err)
	}
	if !client.IsPublic() && secret == "" {
		return fosite.ErrInvalidClient.WithHint("Confidential clients must authenticate to refresh a token.")
	}
	return nil
}

// writeAccessError maps single-use violations detected by storage to
// invalid_grant before handing the error to fosite.
func (h *Handler) writeAccessError(w http.ResponseWriter, req *http.Request, ar fosite.AccessRequester, err error) {
	if errors.Is(err, storage.ErrCodeConsumed) {
		err = fosite.ErrInvalidGrant.WithHint("The authorization code has already been used.")
	} else if errors.Is(err, storage.ErrTokenRotated) {
		err = fosite.ErrInvalidGrant.WithHint("The refresh token has already been used.")
	}
	h.metrics.TokenError(fosite.ErrorToRFC6749Error(err).ErrorField)
	h.provider.WriteAccessError(req.Context(), w, ar, err)
}
