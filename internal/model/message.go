// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// ENDPOINT TYPE
// =============================================================================

// Endpoint selects between starting a new server-side conversation and
// continuing the one built up by earlier calls in this session.
type Endpoint int

const (
	EndpointFresh Endpoint = iota
	EndpointContinue
)

// String returns the string representation of the endpoint variant.
func (e Endpoint) String() string {
	switch e {
	case EndpointFresh:
		return "fresh"
	case EndpointContinue:
		return "continue"
	default:
		return "unknown"
	}
}
