// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/ory/fosite"

	"github.com/stacklok/wikiauth/pkg/authserver/credentials"
	"github.com/stacklok/wikiauth/pkg/storage"
)

// maxRevokeBodySize bounds revocation request bodies.
const maxRevokeBodySize = 16 * 1024

type revokeRequest struct {
	Token         string `json:"token"`
	TokenTypeHint string `json:"token_type_hint"`
}

type revokeResponse struct {
	Success bool `json:"success"`
}

// RevokeHandler handles POST /oauth/revoke requests. It always reports
// success so callers cannot learn whether a token existed.
func (h *Handler) RevokeHandler(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, maxRevokeBodySize)
	h.metrics.Revocation()

	body, err := parseRevokeRequest(req)
	if err != nil {
		slog.Debug("ignoring malformed revocation request", "error", err)
	} else if body.Token != "" {
		if err := h.revoke(req.Context(), body); err != nil {
			slog.Error("failed to revoke token", "error", err)
		}
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, revokeResponse{Success: true})
}

func parseRevokeRequest(req *http.Request) (revokeRequest, error) {
	var body revokeRequest
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(req.Body).Decode(&body)
		return body, err
	}
	if err := req.ParseForm(); err != nil {
		return body, err
	}
	body.Token = req.PostForm.Get("token")
	body.TokenTypeHint = req.PostForm.Get("token_type_hint")
	return body, nil
}

// lookupOrder classifies the token by prefix, falling back to the hint.
func lookupOrder(token, hint string) []credentials.Kind {
	switch kind := credentials.KindOf(token); kind {
	case credentials.KindAccessToken, credentials.KindRefreshToken:
		return []credentials.Kind{kind}
	case credentials.KindUnknown:
		if hint == "refresh_token" {
			return []credentials.Kind{credentials.KindRefreshToken, credentials.KindAccessToken}
		}
		return []credentials.Kind{credentials.KindAccessToken, credentials.KindRefreshToken}
	default:
		// Secrets, registration tokens and codes are not revocable here.
		return nil
	}
}

// revoke deletes the grant behind token, access and refresh together.
func (h *Handler) revoke(ctx context.Context, body revokeRequest) error {
	for _, kind := range lookupOrder(body.Token, body.TokenTypeHint) {
		var (
			requester fosite.Requester
			err       error
		)
		if kind == credentials.KindRefreshToken {
			sig := h.strategy.RefreshTokenSignature(ctx, body.Token)
			requester, err = h.tokens.GetRefreshTokenSession(ctx, sig, &fosite.DefaultSession{})
		} else {
			sig := h.strategy.AccessTokenSignature(ctx, body.Token)
			requester, err = h.tokens.GetAccessTokenSession(ctx, sig, &fosite.DefaultSession{})
		}
		if isNotFound(err) {
			continue
		}
		// A rotated refresh token still identifies its grant.
		if err != nil && (requester == nil || !errors.Is(err, fosite.ErrInactiveToken)) {
			return err
		}

		requestID := requester.GetID()
		if err := h.tokens.RevokeAccessToken(ctx, requestID); err != nil {
			return err
		}
		if err := h.tokens.RevokeRefreshToken(ctx, requestID); err != nil {
			return err
		}
		slog.Debug("revoked grant", "client_id", requester.GetClient().GetID())
		return nil
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, fosite.ErrNotFound) ||
		errors.Is(err, fosite.ErrInvalidRequest)
}
