// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// DefaultModelID is used when no model has been configured.
const DefaultModelID = "gpt-3.5-turbo"

// =============================================================================
// CHAT MODEL TYPE
// =============================================================================

// ChatModel describes a backend model and the two endpoint paths that serve it.
type ChatModel struct {
	// ID is the identifier persisted in settings (e.g. "gpt-4")
	ID string `toml:"id" json:"id"`

	// Name is the human-readable display name
	Name string `toml:"name" json:"name"`

	// ChatPath starts a new conversation (e.g. "/chat")
	ChatPath string `toml:"chat_path" json:"chat_path"`

	// ContinuePath continues the current conversation (e.g. "/chat-continue")
	ContinuePath string `toml:"continue_path" json:"continue_path"`
}

// Path returns the endpoint path for the given continuation target.
func (m ChatModel) Path(e Endpoint) string {
	if e == EndpointContinue {
		return m.ContinuePath
	}
	return m.ChatPath
}

// DisplayName returns Name, falling back to the ID.
func (m ChatModel) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// Validate checks that the model has an ID and two absolute paths.
func (m ChatModel) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("model id is required")
	}
	if !strings.HasPrefix(m.ChatPath, "/") {
		return fmt.Errorf("model %s: chat_path must start with '/': %q", m.ID, m.ChatPath)
	}
	if !strings.HasPrefix(m.ContinuePath, "/") {
		return fmt.Errorf("model %s: continue_path must start with '/': %q", m.ID, m.ContinuePath)
	}
	if m.ChatPath == m.ContinuePath {
		return fmt.Errorf("model %s: chat_path and continue_path must differ", m.ID)
	}
	return nil
}

// =============================================================================
// MODEL REGISTRY
// =============================================================================

// builtinModels is the registry of models the hosted backend serves.
var builtinModels = []ChatModel{
	{
		ID:           "gpt-3.5-turbo",
		Name:         "GPT 3.5 Turbo",
		ChatPath:     "/chat",
		ContinuePath: "/chat-continue",
	},
	{
		ID:           "gpt-4",
		Name:         "GPT 4",
		ChatPath:     "/chat-4",
		ContinuePath: "/chat-continue-4",
	},
}

// Catalog is an ordered, read-only set of chat models keyed by ID.
type Catalog struct {
	models []ChatModel
	byID   map[string]int
}

// DefaultCatalog returns a catalog holding the built-in models.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog(builtinModels...)
	return c
}

// NewCatalog builds a catalog. A later model with the same ID replaces an
// earlier one in place, which lets configuration override built-ins.
func NewCatalog(models ...ChatModel) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int, len(models))}
	for _, m := range models {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if i, ok := c.byID[m.ID]; ok {
			c.models[i] = m
			continue
		}
		c.byID[m.ID] = len(c.models)
		c.models = append(c.models, m)
	}
	return c, nil
}

// WithBuiltins returns a catalog of the built-in models extended (or
// overridden) by extra.
func WithBuiltins(extra ...ChatModel) (*Catalog, error) {
	all := make([]ChatModel, 0, len(builtinModels)+len(extra))
	all = append(all, builtinModels...)
	all = append(all, extra...)
	return NewCatalog(all...)
}

// Lookup returns the model with the given ID.
func (c *Catalog) Lookup(id string) (ChatModel, bool) {
	i, ok := c.byID[id]
	if !ok {
		return ChatModel{}, false
	}
	return c.models[i], true
}

// Has reports whether the catalog knows the given ID.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// All returns the models in registration order.
func (c *Catalog) All() []ChatModel {
	out := make([]ChatModel, len(c.models))
	copy(out, c.models)
	return out
}

// IDs returns the model identifiers in registration order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.models))
	for i, m := range c.models {
		ids[i] = m.ID
	}
	return ids
}

// Paths returns every distinct endpoint path served by the catalog.
func (c *Catalog) Paths() []string {
	seen := make(map[string]bool)
	var paths []string
	for _, m := range c.models {
		for _, p := range []string{m.ChatPath, m.ContinuePath} {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	return paths
}
