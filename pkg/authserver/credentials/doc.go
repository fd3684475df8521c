// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package credentials generates, classifies and verifies the opaque
// credentials handed out by the authorization server.
//
// Every credential carries a fixed prefix so its class can be recovered from
// the string alone:
//
//	wks_  client secret
//	wkr_  registration access token
//	ory_at_, ory_rt_, ory_ac_  access token, refresh token, authorization code
//
// Client secrets are sealed at rest with XChaCha20-Poly1305. Registration
// tokens are stored only as a keyed HMAC-SHA256 digest and compared in
// constant time.
package credentials
