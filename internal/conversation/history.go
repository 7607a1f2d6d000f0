// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"sync"

	"github.com/jeranaias/parley/internal/model"
)

// Entry is one side of a completed exchange.
type Entry struct {
	Role    model.Role `json:"role"`
	Content string     `json:"content"`
}

// History records completed exchanges. It is append-only except for Clear.
//
// The content itself never goes on the wire; the backend keeps its own
// context. History only decides which endpoint the next send targets.
type History struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// ContinuationTarget returns EndpointFresh when empty, EndpointContinue otherwise.
func (h *History) ContinuationTarget() model.Endpoint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return model.EndpointFresh
	}
	return model.EndpointContinue
}

// Append records one exchange as a user entry followed by an assistant entry.
func (h *History) Append(userText, assistantText string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries,
		Entry{Role: model.RoleUser, Content: userText},
		Entry{Role: model.RoleAssistant, Content: assistantText},
	)
}

// Clear removes every entry. Clearing an empty history is a no-op.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

// Entries returns a copy of all entries in order.
func (h *History) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
