// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// TRANSCRIPT STYLES
	// ==========================================================================

	Title         lipgloss.Style
	UserLabel     lipgloss.Style
	UserText      lipgloss.Style
	AssistantMark lipgloss.Style
	AssistantText lipgloss.Style
	ErrorLine     lipgloss.Style
	RetryHint     lipgloss.Style
	Timestamp     lipgloss.Style
	Notice        lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputPlaceholder lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	StatusLabel  lipgloss.Style
	StatusValue  lipgloss.Style
	SpeechOn     lipgloss.Style
	SpeechOff    lipgloss.Style
	TargetFresh  lipgloss.Style
	TargetCont   lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	Spinner lipgloss.Style
}

// NewTheme creates a theme for the configured mode: "dark", "light", or
// "auto" (ask the terminal).
func NewTheme(mode string) *Theme {
	colorProfile := termenv.ColorProfile()

	var isDark bool
	switch strings.ToLower(mode) {
	case "light":
		isDark = false
	case "auto":
		isDark = termenv.HasDarkBackground()
	default:
		isDark = true
	}
	// AdaptiveColor consults this, so a forced mode recolors everything.
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// GlamourStyle returns the glamour standard style name matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.ColorProfile == termenv.Ascii {
		return "notty"
	}
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	t.Title = lipgloss.NewStyle().Bold(true).Foreground(Cyan)

	// Transcript
	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.UserText = lipgloss.NewStyle().Foreground(TextPrimary)
	t.AssistantMark = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.AssistantText = lipgloss.NewStyle().Foreground(TextPrimary).PaddingLeft(2)
	t.ErrorLine = lipgloss.NewStyle().Foreground(Rose).Bold(true).PaddingLeft(2)
	t.RetryHint = lipgloss.NewStyle().Foreground(TextMuted).Italic(true).PaddingLeft(2)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)
	t.Notice = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)

	// Input
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.InputPrompt = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.InputPlaceholder = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.StatusLabel = lipgloss.NewStyle().Foreground(TextMuted).Background(SurfaceDim)
	t.StatusValue = lipgloss.NewStyle().Foreground(TextPrimary).Background(SurfaceDim).Bold(true)
	t.SpeechOn = lipgloss.NewStyle().Foreground(Emerald).Background(SurfaceDim).Bold(true)
	t.SpeechOff = lipgloss.NewStyle().Foreground(TextMuted).Background(SurfaceDim)
	t.TargetFresh = lipgloss.NewStyle().Foreground(Emerald).Background(SurfaceDim)
	t.TargetCont = lipgloss.NewStyle().Foreground(Amber).Background(SurfaceDim)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	t.Spinner = lipgloss.NewStyle().Foreground(Purple)
}
