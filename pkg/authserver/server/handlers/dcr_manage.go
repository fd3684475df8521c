// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/wikiauth/pkg/authserver/clients"
	"github.com/stacklok/wikiauth/pkg/authserver/credentials"
	"github.com/stacklok/wikiauth/pkg/authserver/server/registration"
	"github.com/stacklok/wikiauth/pkg/authserver/tenant"
	"github.com/stacklok/wikiauth/pkg/logger"
	"github.com/stacklok/wikiauth/pkg/storage"
)

type registeredClientKey struct{}

// RegisteredClientFromContext returns the client authenticated by
// RegistrationTokenMiddleware.
func RegisteredClientFromContext(ctx context.Context) (*storage.Client, bool) {
	c, ok := ctx.Value(registeredClientKey{}).(*storage.Client)
	return c, ok
}

// RegistrationTokenMiddleware authenticates RFC 7592 management requests.
// The bearer registration access token must resolve to exactly the client
// named in the path and to the request's team. Every failure is the same 401.
func (h *Handler) RegistrationTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		team, ok := teamFrom(w, r)
		if !ok {
			return
		}

		authHeader := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || credentials.KindOf(token) != credentials.KindRegistrationToken {
			writeInvalidToken(w)
			return
		}

		client, err := h.clients.FindByRegistrationToken(ctx, token)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				logger.Errorw("failed to look up registration token", "error", err)
				writeDCRError(w, http.StatusInternalServerError, errServer)
				return
			}
			writeInvalidToken(w)
			return
		}
		if client.PublicID != chi.URLParam(r, "clientId") || client.TeamID != team.ID {
			writeInvalidToken(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, registeredClientKey{}, client)))
	})
}

func writeInvalidToken(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	writeError(w, http.StatusUnauthorized, "invalid_token", "The registration access token is invalid")
}

// GetClientHandler handles GET /oauth/register/{clientId}. Secrets and the
// registration access token are never included.
func (h *Handler) GetClientHandler(w http.ResponseWriter, r *http.Request) {
	client, _ := RegisteredClientFromContext(r.Context())
	team, _ := tenant.FromContext(r.Context())
	writeNoStoreJSON(w, http.StatusOK,
		registration.NewDCRResponse(client, clients.Issued{}, h.registrationURI(team, client.PublicID)))
}

// UpdateClientHandler handles PUT /oauth/register/{clientId}. The metadata is
// replaced and the registration access token is always rotated; the new token
// is committed before it is returned.
func (h *Handler) UpdateClientHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current, _ := RegisteredClientFromContext(ctx)
	team, _ := tenant.FromContext(r.Context())

	// The auth method is fixed at registration, so an update may leave it out.
	validated, dcrErr := decodeDCRRequest(w, r, current.TokenAuthMethod)
	if dcrErr != nil {
		writeDCRError(w, http.StatusBadRequest, dcrErr)
		return
	}

	updated := current.Clone()
	if err := h.clients.Update(updated, validated.Metadata()); err != nil {
		status, dcrErr := registryError(err)
		writeDCRError(w, status, dcrErr)
		return
	}
	token, err := h.clients.RotateRegistrationToken(updated)
	if err != nil {
		logger.Errorw("failed to rotate registration token", "client_id", current.PublicID, "error", err)
		writeDCRError(w, http.StatusInternalServerError, errServer)
		return
	}
	if err := h.clients.Save(ctx, updated); err != nil {
		logger.Errorw("failed to save client", "client_id", current.PublicID, "error", err)
		writeDCRError(w, http.StatusInternalServerError, errServer)
		return
	}

	writeNoStoreJSON(w, http.StatusOK, registration.NewDCRResponse(
		updated, clients.Issued{RegistrationToken: token}, h.registrationURI(team, updated.PublicID)))
}

// DeleteClientHandler handles DELETE /oauth/register/{clientId}. The client
// and everything issued to it are removed; the token stops resolving, so a
// repeated delete is a 401.
func (h *Handler) DeleteClientHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	client, _ := RegisteredClientFromContext(ctx)

	if err := h.clients.Delete(ctx, client); err != nil {
		logger.Errorw("failed to delete client", "client_id", client.PublicID, "error", err)
		writeDCRError(w, http.StatusInternalServerError, errServer)
		return
	}
	h.metrics.ClientDeleted("registration")
	w.WriteHeader(http.StatusNoContent)
}
