// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// Engine is what the chat view needs from the conversation engine.
type Engine interface {
	commands.Engine
	Send(text string) (conversation.Turn, error)
	IsInteracting() bool
	History() *conversation.History
}

// Options configures a chat Model.
type Options struct {
	Engine         Engine
	Settings       commands.Settings
	Theme          *styles.Theme
	Markdown       bool
	ShowTimestamps bool
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	engine   Engine
	settings commands.Settings
	registry *commands.Registry
	complete *commands.Completer
	keyMap   KeyMap

	// Styling
	theme          *styles.Theme
	markdown       *markdownRenderer
	showTimestamps bool

	// Dimensions
	width  int
	height int
	ready  bool

	// Conversation view
	snap        conversation.Snapshot
	updates     <-chan conversation.Snapshot
	unsubscribe func()

	// UI Components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	spinning bool

	// Notice line above the input
	notice      string
	noticeError bool

	// Tab completion cycling
	completions []string
	completeIdx int
	completeFor string

	quitting bool
}

// New creates a chat model subscribed to the engine's store.
func New(opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message, or /help"
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme("dark")
	}
	sp.Style = theme.Spinner
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.InputPlaceholder

	registry := commands.NewRegistry()
	completer := commands.NewCompleter(registry)
	completer.ModelsFn = func() []string { return opts.Settings.Catalog().IDs() }

	updates, unsubscribe := opts.Engine.Store().Subscribe(4)

	m := Model{
		engine:         opts.Engine,
		settings:       opts.Settings,
		registry:       registry,
		complete:       completer,
		keyMap:         DefaultKeyMap(),
		theme:          theme,
		showTimestamps: opts.ShowTimestamps,
		updates:        updates,
		unsubscribe:    unsubscribe,
		viewport:       vp,
		input:          ti,
		spinner:        sp,
	}
	if opts.Markdown {
		m.markdown = newMarkdownRenderer(theme.GlamourStyle())
	}
	return m
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the cursor blink and the store subscription.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForSnapshot(m.updates))
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case SnapshotMsg:
		return m.handleSnapshot(msg)

	case subscriptionClosedMsg:
		return m, nil

	case NoticeMsg:
		m.setNotice(msg.Text, msg.Error)
		return m, nil

	case ConfigReloadedMsg:
		return m.handleConfigReloaded(msg)

	case spinner.TickMsg:
		if !m.spinning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.updateViewport()
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// View renders the chat view.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderChat()
}

// Close ends the store subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true

	// Layout: viewport + notice (1) + input (border + line = 2) + status bar (1)
	const reserved = 4
	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = max(m.height-reserved, 1)

	const promptLen = 2 // "> "
	m.input.Width = max(m.width-4-promptLen, 10)

	if m.markdown != nil {
		m.markdown.setWidth(m.width - 4)
	}
	m.updateViewport()
	return m, nil
}

func (m Model) handleSnapshot(msg SnapshotMsg) (tea.Model, tea.Cmd) {
	atBottom := m.viewport.AtBottom() || m.snap.Version == 0
	m.snap = msg.Snapshot
	m.updateViewport()
	if atBottom {
		m.viewport.GotoBottom()
	}

	cmds := []tea.Cmd{waitForSnapshot(m.updates)}
	_, interacting := m.snap.Interacting()
	switch {
	case interacting && !m.spinning:
		m.spinning = true
		cmds = append(cmds, m.spinner.Tick)
	case !interacting:
		m.spinning = false
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleConfigReloaded(msg ConfigReloadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.setNotice("config reload failed: "+msg.Err.Error(), true)
		return m, nil
	}
	if cfg := msg.Config; cfg != nil {
		m.showTimestamps = cfg.UI.ShowTimestamps
		if cfg.UI.Markdown && m.markdown == nil {
			m.markdown = newMarkdownRenderer(m.theme.GlamourStyle())
			m.markdown.setWidth(m.width - 4)
		} else if !cfg.UI.Markdown {
			m.markdown = nil
		}
	}
	m.setNotice("Config reloaded.", false)
	m.updateViewport()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m.quit()

	case key.Matches(msg, m.keyMap.Cancel):
		if m.engine.Cancel() {
			m.setNotice("Reply canceled.", false)
			return m, nil
		}
		return m.quit()

	case key.Matches(msg, m.keyMap.Submit):
		return m.submit()

	case key.Matches(msg, m.keyMap.Complete):
		m.cycleCompletion()
		return m, nil

	case key.Matches(msg, m.keyMap.Retry):
		return m.runCommand("/retry")

	case key.Matches(msg, m.keyMap.Clear):
		if m.engine.IsInteracting() {
			m.setNotice("A reply is streaming. Ctrl+C cancels it.", true)
			return m, nil
		}
		return m.runCommand("/clear")

	case key.Matches(msg, m.keyMap.ToggleSpeech):
		return m.runCommand("/speech")

	case key.Matches(msg, m.keyMap.PageUp), key.Matches(msg, m.keyMap.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.completions = nil
	return m, cmd
}

// submit sends the input as a message or runs it as a command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if commands.IsCommand(text) {
		m.input.Reset()
		return m.runCommand(text)
	}

	if _, err := m.engine.Send(text); err != nil {
		switch {
		case errors.Is(err, conversation.ErrBusy):
			m.setNotice("Wait for the reply to finish, or press Ctrl+C to cancel it.", true)
		default:
			m.setNotice(err.Error(), true)
		}
		return m, nil
	}

	m.input.Reset()
	m.completions = nil
	m.clearNotice()
	m.viewport.GotoBottom()
	return m, nil
}

// runCommand executes a slash command and shows its result.
func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	m.completions = nil
	res, err := m.registry.Execute(&commands.Context{
		Engine:   m.engine,
		Settings: m.settings,
		Registry: m.registry,
	}, line)
	if err != nil {
		m.setNotice(err.Error(), true)
		return m, nil
	}
	if res.Quit {
		return m.quit()
	}

	m.setNotice(res.Output, false)
	if res.Turn != nil {
		m.viewport.GotoBottom()
	}
	m.updateViewport()
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	return m, tea.Quit
}

// cycleCompletion replaces the input with the next completion candidate.
func (m *Model) cycleCompletion() {
	value := m.input.Value()
	if m.completions == nil || value != m.completeFor {
		m.completions = m.complete.Complete(value)
		m.completeIdx = 0
	}
	if len(m.completions) == 0 {
		m.completions = nil
		return
	}

	next := m.completions[m.completeIdx%len(m.completions)]
	m.completeIdx++
	m.input.SetValue(next)
	m.input.CursorEnd()
	m.completeFor = next
}

func (m *Model) setNotice(text string, isError bool) {
	m.notice = text
	m.noticeError = isError
}

func (m *Model) clearNotice() {
	m.notice = ""
	m.noticeError = false
}
