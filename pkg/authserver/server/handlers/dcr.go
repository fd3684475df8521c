// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/stacklok/wikiauth/pkg/authserver/clients"
	"github.com/stacklok/wikiauth/pkg/authserver/server/registration"
	"github.com/stacklok/wikiauth/pkg/logger"
	"github.com/stacklok/wikiauth/pkg/storage"
)

// maxDCRBodySize is the maximum allowed size for DCR request bodies (64KB).
// This prevents DoS attacks via extremely large payloads while being generous
// enough for legitimate requests with multiple redirect URIs.
const maxDCRBodySize = 64 * 1024

var errServer = &registration.DCRError{Error: "server_error", ErrorDescription: "internal error"}

// RegisterClientHandler handles POST /oauth/register requests.
// It implements RFC 7591 Dynamic Client Registration. The created client
// has no human creator and receives a registration access token, which
// this response is the only one to reveal.
func (h *Handler) RegisterClientHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	team, ok := teamFrom(w, req)
	if !ok {
		return
	}

	validated, dcrErr := decodeDCRRequest(w, req, "")
	if dcrErr != nil {
		writeDCRError(w, http.StatusBadRequest, dcrErr)
		return
	}

	client, issued, err := h.clients.Register(ctx, validated.Metadata(), team.ID, "")
	if err != nil {
		status, dcrErr := registryError(err)
		if status == http.StatusInternalServerError {
			logger.Errorw("failed to register client", "team_id", team.ID, "error", err)
		}
		writeDCRError(w, status, dcrErr)
		return
	}
	h.metrics.ClientRegistered(client.TokenAuthMethod)

	writeNoStoreJSON(w, http.StatusCreated,
		registration.NewDCRResponse(client, issued, h.registrationURI(team, client.PublicID)))
}

// decodeDCRRequest reads and validates a registration or update body. An
// omitted token_endpoint_auth_method becomes authMethod when it is set.
func decodeDCRRequest(
	w http.ResponseWriter, req *http.Request, authMethod string,
) (*registration.DCRRequest, *registration.DCRError) {
	// Limit request body size to prevent DoS attacks
	req.Body = http.MaxBytesReader(w, req.Body, maxDCRBodySize)

	// Validate Content-Type header (RFC 7591 requires application/json)
	contentType := req.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return nil, &registration.DCRError{
			Error:            registration.DCRErrorInvalidClientMetadata,
			ErrorDescription: "Content-Type must be application/json",
		}
	}

	var dcrReq registration.DCRRequest
	if err := json.NewDecoder(req.Body).Decode(&dcrReq); err != nil {
		return nil, &registration.DCRError{
			Error:            registration.DCRErrorInvalidClientMetadata,
			ErrorDescription: "invalid JSON request body",
		}
	}
	if dcrReq.TokenEndpointAuthMethod == "" {
		dcrReq.TokenEndpointAuthMethod = authMethod
	}
	return registration.ValidateDCRRequest(&dcrReq)
}

// registryError maps a registry failure to a status and RFC 7591 body.
func registryError(err error) (int, *registration.DCRError) {
	switch {
	case errors.Is(err, clients.ErrInvalidRedirectURI):
		return http.StatusBadRequest, &registration.DCRError{
			Error:            registration.DCRErrorInvalidRedirectURI,
			ErrorDescription: err.Error(),
		}
	case errors.Is(err, clients.ErrInvalidAuthMethod):
		return http.StatusBadRequest, &registration.DCRError{
			Error:            registration.DCRErrorInvalidClientMetadata,
			ErrorDescription: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errServer
	}
}

func (h *Handler) registrationURI(team *storage.Team, publicID string) string {
	return h.urls.URL(team) + "/oauth/register/" + publicID
}

func writeNoStoreJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, status, v)
}

// writeDCRError writes a DCR error response per RFC 7591 Section 3.2.2.
func writeDCRError(w http.ResponseWriter, statusCode int, dcrErr *registration.DCRError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Encoding errors are not recoverable (headers already written), log for diagnostics
	if err := json.NewEncoder(w).Encode(dcrErr); err != nil {
		logger.Debugw("failed to encode DCR error response", "error", err)
	}
}
