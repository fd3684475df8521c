// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package registration provides OAuth 2.0 Dynamic Client Registration (DCR)
// wire types and request validation per RFC 7591 and RFC 7592.
package registration

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/stacklok/wikiauth/pkg/authserver/clients"
	"github.com/stacklok/wikiauth/pkg/capabilities"
	"github.com/stacklok/wikiauth/pkg/storage"
)

// DCR error codes per RFC 7591 Section 3.2.2
const (
	// DCRErrorInvalidRedirectURI indicates that the value of one or more
	// redirect_uris is invalid.
	DCRErrorInvalidRedirectURI = "invalid_redirect_uri"

	// DCRErrorInvalidClientMetadata indicates that the value of one of the
	// client metadata fields is invalid and the server has rejected this request.
	DCRErrorInvalidClientMetadata = "invalid_client_metadata"
)

// Validation limits to prevent DoS attacks via excessively large requests.
const (
	// MaxClientNameLength is the maximum allowed length for a client name.
	MaxClientNameLength = 256

	// MaxContacts is the maximum number of contacts per client.
	MaxContacts = 10

	// MaxURILength bounds client_uri and logo_uri.
	MaxURILength = 1024
)

// DCRRequest represents an OAuth 2.0 Dynamic Client Registration request
// per RFC 7591 Section 2. The same body is accepted by the RFC 7592 update.
type DCRRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	// Scope is a space-separated list of scopes the client may request.
	Scope     string   `json:"scope,omitempty"`
	ClientURI string   `json:"client_uri,omitempty"`
	LogoURI   string   `json:"logo_uri,omitempty"`
	Contacts  []string `json:"contacts,omitempty"`
}

// DCRResponse represents client information per RFC 7591 Section 3.2.1 and
// RFC 7592 Section 3. Secrets are only populated on registration.
type DCRResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at,omitempty"`
	ClientSecretExpiresAt   *int64   `json:"client_secret_expires_at,omitempty"`
	RegistrationAccessToken string   `json:"registration_access_token,omitempty"`
	RegistrationClientURI   string   `json:"registration_client_uri"`
	ClientName              string   `json:"client_name"`
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	Scope                   string   `json:"scope"`
	ClientURI               string   `json:"client_uri,omitempty"`
	LogoURI                 string   `json:"logo_uri,omitempty"`
	Contacts                []string `json:"contacts,omitempty"`
}

// DCRError represents an OAuth 2.0 Dynamic Client Registration error
// response per RFC 7591 Section 3.2.2.
type DCRError struct {
	// Error is a single ASCII error code from the defined set.
	Error string `json:"error"`

	// ErrorDescription is a human-readable text providing additional information.
	ErrorDescription string `json:"error_description,omitempty"`
}

// allowedGrantTypes are the only grants a client may register for.
var allowedGrantTypes = map[string]bool{
	"authorization_code": true,
	"refresh_token":      true,
}

// ValidateDCRRequest validates a registration or update request and returns
// a copy with defaults applied.
func ValidateDCRRequest(req *DCRRequest) (*DCRRequest, *DCRError) {
	name := strings.TrimSpace(req.ClientName)
	if name == "" {
		return nil, metadataError("client_name is required")
	}
	if len(name) > MaxClientNameLength {
		return nil, metadataError(fmt.Sprintf("client_name too long (maximum %d characters)", MaxClientNameLength))
	}

	if err := clients.ValidateRedirectURIs(req.RedirectURIs); err != nil {
		return nil, &DCRError{
			Error:            DCRErrorInvalidRedirectURI,
			ErrorDescription: strings.TrimPrefix(err.Error(), clients.ErrInvalidRedirectURI.Error()+": "),
		}
	}

	authMethod := req.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = clients.AuthMethodSecretPost
	}
	if _, err := clients.ClientTypeFor(authMethod); err != nil {
		return nil, metadataError("token_endpoint_auth_method must be 'client_secret_post' or 'none'")
	}

	grantTypes, dcrErr := validateGrantTypes(req.GrantTypes)
	if dcrErr != nil {
		return nil, dcrErr
	}
	responseTypes, dcrErr := validateResponseTypes(req.ResponseTypes)
	if dcrErr != nil {
		return nil, dcrErr
	}
	scopes, dcrErr := ValidateScopes(req.Scope)
	if dcrErr != nil {
		return nil, dcrErr
	}

	if err := validateWebURI(req.ClientURI); err != nil {
		return nil, metadataError("client_uri " + err.Error())
	}
	if err := validateWebURI(req.LogoURI); err != nil {
		return nil, metadataError("logo_uri " + err.Error())
	}
	if len(req.Contacts) > MaxContacts {
		return nil, metadataError(fmt.Sprintf("too many contacts (maximum %d)", MaxContacts))
	}

	return &DCRRequest{
		RedirectURIs:            slices.Clone(req.RedirectURIs),
		ClientName:              name,
		TokenEndpointAuthMethod: authMethod,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		Scope:                   strings.Join(scopes, " "),
		ClientURI:               req.ClientURI,
		LogoURI:                 req.LogoURI,
		Contacts:                slices.Clone(req.Contacts),
	}, nil
}

func metadataError(description string) *DCRError {
	return &DCRError{Error: DCRErrorInvalidClientMetadata, ErrorDescription: description}
}

func validateGrantTypes(grantTypes []string) ([]string, *DCRError) {
	if len(grantTypes) == 0 {
		return slices.Clone(clients.DefaultGrantTypes), nil
	}
	for _, gt := range grantTypes {
		if !allowedGrantTypes[gt] {
			return nil, metadataError("unsupported grant_type: " + gt)
		}
	}
	if !slices.Contains(grantTypes, "authorization_code") {
		return nil, metadataError("grant_types must include 'authorization_code'")
	}
	out := slices.Clone(grantTypes)
	slices.Sort(out)
	return slices.Compact(out), nil
}

func validateResponseTypes(responseTypes []string) ([]string, *DCRError) {
	if len(responseTypes) == 0 {
		return slices.Clone(clients.DefaultResponseTypes), nil
	}
	for _, rt := range responseTypes {
		if rt != "code" {
			return nil, metadataError("unsupported response_type: " + rt)
		}
	}
	return []string{"code"}, nil
}

// ValidateScopes parses a space-separated scope string. Every entry must be a
// supported scope; an empty string yields the default scope set.
func ValidateScopes(scope string) ([]string, *DCRError) {
	fields := strings.Fields(scope)
	if len(fields) == 0 {
		return slices.Clone(clients.DefaultScopes), nil
	}
	out := make([]string, 0, len(fields))
	for _, s := range fields {
		if !capabilities.IsSupported(s) {
			return nil, metadataError("unsupported scope: " + s)
		}
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out, nil
}

var errNotWebURI = errors.New("must be an absolute http or https URL")

func validateWebURI(raw string) error {
	if raw == "" {
		return nil
	}
	if len(raw) > MaxURILength {
		return fmt.Errorf("exceeds %d characters", MaxURILength)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errNotWebURI
	}
	return nil
}

// Metadata converts a validated request into registry metadata.
func (r *DCRRequest) Metadata() clients.Metadata {
	return clients.Metadata{
		Name:            r.ClientName,
		ClientURI:       r.ClientURI,
		LogoURI:         r.LogoURI,
		Contacts:        slices.Clone(r.Contacts),
		RedirectURIs:    slices.Clone(r.RedirectURIs),
		Scopes:          strings.Fields(r.Scope),
		GrantTypes:      slices.Clone(r.GrantTypes),
		ResponseTypes:   slices.Clone(r.ResponseTypes),
		TokenAuthMethod: r.TokenEndpointAuthMethod,
	}
}

// NewDCRResponse renders client information. issued carries the plaintext
// credentials to reveal, which is empty except on registration and update.
func NewDCRResponse(client *storage.Client, issued clients.Issued, registrationURI string) *DCRResponse {
	resp := &DCRResponse{
		ClientID:                client.PublicID,
		ClientIDIssuedAt:        client.CreatedAt.Unix(),
		RegistrationAccessToken: issued.RegistrationToken,
		RegistrationClientURI:   registrationURI,
		ClientName:              client.Name,
		RedirectURIs:            client.RedirectURIs,
		TokenEndpointAuthMethod: client.TokenAuthMethod,
		GrantTypes:              client.GrantTypes,
		ResponseTypes:           client.ResponseTypes,
		Scope:                   strings.Join(client.Scopes, " "),
		ClientURI:               client.ClientURI,
		LogoURI:                 client.LogoURI,
		Contacts:                client.Contacts,
	}
	if issued.Secret != "" {
		never := int64(0)
		resp.ClientSecret = issued.Secret
		resp.ClientSecretExpiresAt = &never
	}
	return resp
}
