// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the shared domain vocabulary for parley.
//
// # Key Types
//
//   - Role: History entry role (user, assistant)
//   - Endpoint: Continuation target variant (fresh, continue)
//   - ChatModel: A backend model and its pair of endpoint paths
//   - Catalog: Lookup of chat models by identifier
//   - SpeechLanguage: A BCP 47 language tag used by the speech sink
//
// # Usage
//
// Resolve the endpoint path for a send:
//
//	m, ok := model.DefaultCatalog().Lookup("gpt-4")
//	path := m.Path(model.EndpointContinue) // "/chat-continue-4"
package model
