// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdownRenderer renders completed replies through glamour.
//
// Rendered output is cached per turn ID and dropped when the width changes.
// Streaming turns are never rendered as markdown since partial markup
// reflows as fragments arrive.
type markdownRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]string
}

func newMarkdownRenderer(style string) *markdownRenderer {
	return &markdownRenderer{
		style: style,
		width: 80,
		cache: make(map[string]string),
	}
}

// setWidth changes the wrap width, discarding the renderer and cache.
func (r *markdownRenderer) setWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width == r.width && r.renderer != nil {
		return
	}
	r.width = width
	r.renderer = nil
	r.cache = make(map[string]string)
}

// render returns the rendered markdown for a turn, or false if rendering failed.
func (r *markdownRenderer) render(turnID, text string) (string, bool) {
	if out, ok := r.cache[turnID]; ok {
		return out, true
	}
	if r.renderer == nil {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithWordWrap(r.width),
		)
		if err != nil {
			return "", false
		}
		r.renderer = tr
	}

	out, err := r.renderer.Render(text)
	if err != nil {
		return "", false
	}
	out = strings.Trim(out, "\n")
	r.cache[turnID] = out
	return out, true
}
