// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"sort"
	"strings"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// COMPLETER
// =============================================================================

// Completer handles tab completion for commands and arguments.
type Completer struct {
	registry *Registry

	// ModelsFn returns the model IDs offered for ArgTypeModel.
	ModelsFn func() []string
}

// NewCompleter creates a new completer with the given registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{registry: registry}
}

// Complete returns full-line candidates for input, sorted.
// Plain chat text has no completions.
func (c *Completer) Complete(input string) []string {
	if !IsCommand(input) {
		return nil
	}
	input = strings.TrimLeft(input, " \t")

	parts := splitCommandLine(input)
	trailingSpace := strings.HasSuffix(input, " ")

	// Still typing the command name
	if len(parts) <= 1 && !trailingSpace {
		prefix := ""
		if len(parts) == 1 {
			prefix = strings.ToLower(parts[0])
		}
		return c.completeCommands(prefix)
	}

	cmd := c.registry.Get(strings.ToLower(parts[0]))
	if cmd == nil {
		return nil
	}

	argIndex := len(parts) - 2
	partial := parts[len(parts)-1]
	if trailingSpace {
		argIndex++
		partial = ""
	}
	if argIndex < 0 || argIndex >= len(cmd.Args) {
		return nil
	}

	head := strings.Join(parts[:argIndex+1], " ") + " "
	var out []string
	for _, v := range c.argValues(cmd.Args[argIndex]) {
		if strings.HasPrefix(strings.ToLower(v), strings.ToLower(partial)) {
			out = append(out, head+v)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Completer) completeCommands(prefix string) []string {
	var out []string
	for _, cmd := range c.registry.All() {
		if strings.HasPrefix(cmd.Name, prefix) {
			out = append(out, cmd.Name)
		}
	}
	return out
}

func (c *Completer) argValues(arg ArgDef) []string {
	switch arg.Type {
	case ArgTypeEnum:
		return arg.Values
	case ArgTypeModel:
		if c.ModelsFn != nil {
			return c.ModelsFn()
		}
		return model.DefaultCatalog().IDs()
	case ArgTypeLanguage:
		var tags []string
		for _, l := range model.SpeechLanguages() {
			tags = append(tags, l.Tag)
		}
		return tags
	}
	return nil
}
