// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stub is a local development backend speaking the raw-text chat
// protocol.
//
// Every catalog model gets its two endpoints. The fresh endpoint starts a new
// server-side conversation for that model and the continue endpoint extends
// it, so a client that picks the wrong endpoint is easy to spot in the reply.
//
// Two magic inputs exercise client error paths:
//
//	!error   responds 500 with a diagnostic body
//	!cut     streams half a reply, then aborts the connection
package stub
