// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package handlers provides HTTP handlers for the OAuth 2.0 authorization server endpoints.
//
// This package implements the HTTP layer for the authorization server, including:
//   - Authorization Server Metadata (/.well-known/oauth-authorization-server)
//   - The authorization code grant (/oauth/authorize, /oauth/token)
//   - Token revocation (/oauth/revoke)
//   - Dynamic client registration and management (/oauth/register)
//
// Every handler expects the tenant team to have been resolved into the
// request context by tenant.Resolver.Middleware.
package handlers
