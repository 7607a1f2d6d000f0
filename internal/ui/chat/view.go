// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// renderChat renders the complete chat view.
// Layout: messages (viewport) + notice (1 line) + input (2 lines) + status (1 line).
// The reserved height in handleResize must match the fixed components here.
func (m Model) renderChat() string {
	if !m.ready {
		return "Loading..."
	}

	messages := m.viewport.View()
	if lipgloss.Height(messages) != m.viewport.Height {
		messages = lipgloss.NewStyle().
			Height(m.viewport.Height).
			MaxHeight(m.viewport.Height).
			Render(messages)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		messages,
		m.renderNotice(),
		m.renderInput(),
		m.renderStatusBar(),
	)
}

// updateViewport re-renders the transcript into the viewport.
func (m *Model) updateViewport() {
	m.viewport.SetContent(m.renderTranscript())
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m *Model) renderTranscript() string {
	if len(m.snap.Turns) == 0 {
		return m.renderEmptyState()
	}

	var b strings.Builder
	for i, t := range m.snap.Turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderTurn(t))
	}
	return b.String()
}

func (m *Model) renderEmptyState() string {
	lines := []string{
		m.theme.Title.Render("parley"),
		"",
		m.theme.Notice.Render("Type a message and press Enter. /help lists commands."),
	}
	return strings.Join(lines, "\n")
}

// renderTurn renders one user message and the reply it produced.
func (m *Model) renderTurn(t conversation.Turn) string {
	var b strings.Builder

	label := m.theme.UserLabel.Render("You")
	if m.showTimestamps {
		label += " " + m.theme.Timestamp.Render(t.CreatedAt.Format("15:04:05"))
	}
	b.WriteString(label)
	b.WriteString("\n")
	b.WriteString(m.wrap(m.theme.UserText, t.SendText))
	b.WriteString("\n")

	b.WriteString(m.renderReply(t))
	return b.String()
}

func (m *Model) renderReply(t conversation.Turn) string {
	var lines []string

	switch {
	case t.State == conversation.TurnPending:
		lines = append(lines, m.theme.AssistantMark.Render(m.spinner.View()+" thinking…"))
	case t.ResponseText != "":
		lines = append(lines, m.renderReplyText(t))
		if t.State == conversation.TurnStreaming {
			lines = append(lines, m.theme.AssistantMark.Render(m.spinner.View()))
		}
	case t.State == conversation.TurnStreaming:
		lines = append(lines, m.theme.AssistantMark.Render(m.spinner.View()))
	}

	if t.HasError() {
		lines = append(lines, m.theme.ErrorLine.Render(fmt.Sprintf("[X] %v", t.ResponseError)))
		if t.Retryable() {
			lines = append(lines, m.theme.RetryHint.Render("Ctrl+R or /retry to resend"))
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderReplyText(t conversation.Turn) string {
	if m.markdown != nil && t.State == conversation.TurnCompleted {
		if out, ok := m.markdown.render(t.ID, t.ResponseText); ok {
			return out
		}
	}
	return m.wrap(m.theme.AssistantText, t.ResponseText)
}

// wrap renders text with the style, wrapped to the viewport width.
func (m *Model) wrap(style lipgloss.Style, text string) string {
	if m.width > 4 {
		style = style.Width(m.width - 2)
	}
	return style.Render(text)
}

// =============================================================================
// NOTICE, INPUT AND STATUS BAR
// =============================================================================

func (m Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	text := util.Truncate(util.FirstLine(m.notice), max(m.width-2, 10))
	if m.noticeError {
		return m.theme.ErrorLine.UnsetPaddingLeft().Render(text)
	}
	return m.theme.Notice.Render(text)
}

func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(max(m.width, 1)).Render(m.input.View())
}

// renderStatusBar shows the model, the next endpoint, speech state and backend.
func (m Model) renderStatusBar() string {
	th := m.theme

	modelName := m.settings.ModelID()
	if cm, ok := m.settings.Catalog().Lookup(modelName); ok {
		modelName = cm.DisplayName()
	}

	target := th.TargetFresh.Render(model.EndpointFresh.String())
	if m.engine.History().ContinuationTarget() == model.EndpointContinue {
		target = th.TargetCont.Render(model.EndpointContinue.String())
	}

	speech := th.SpeechOff.Render("off")
	if m.settings.SpeechEnabled() {
		speech = th.SpeechOn.Render("on " + m.settings.SpeechLanguage())
	}

	sep := th.StatusLabel.Render("  ")
	left := th.StatusLabel.Render("model ") + th.StatusValue.Render(modelName) + sep +
		th.StatusLabel.Render("next ") + target + sep +
		th.StatusLabel.Render("speech ") + speech

	// Backend URL takes whatever room is left.
	room := m.width - lipgloss.Width(left) - 4
	if room > 8 {
		left += sep + th.StatusLabel.Render(util.Truncate(m.settings.BaseURL(), room-2))
	}

	return th.StatusBar.Width(max(m.width, 1)).Render(left)
}
