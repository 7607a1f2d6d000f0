// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jeranaias/parley/internal/conversation"
	"github.com/jeranaias/parley/internal/model"
)

// ErrUnknownCommand is returned by Execute for an unregistered command name.
var ErrUnknownCommand = errors.New("unknown command")

// =============================================================================
// COLLABORATORS
// =============================================================================

// Engine is the part of the conversation engine the commands drive.
type Engine interface {
	Clear() error
	Retry(turnID string) (conversation.Turn, error)
	Cancel() bool
	Store() *conversation.Store
}

// Settings is the part of the settings store the commands read and change.
type Settings interface {
	conversation.Settings
	Catalog() *model.Catalog
	SetModel(id string) error
	SetBaseURL(raw string) error
	SetSpeechEnabled(on bool) error
	SetSpeechLanguage(tag string) error
	ToggleSpeech() (bool, error)
}

// Context carries the collaborators into a handler.
type Context struct {
	Engine   Engine
	Settings Settings
	Registry *Registry
}

// Result is what a command produced.
type Result struct {
	// Output is shown to the user (may be multi-line)
	Output string

	// Quit asks the front end to exit
	Quit bool

	// Turn is set when the command started a new stream (retry)
	Turn *conversation.Turn
}

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/model [id]")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	// Handler executes the command
	Handler func(ctx *Context, args []string) (Result, error)
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	Name        string
	Required    bool
	Type        ArgType
	Description string
	Values      []string // for ArgTypeEnum
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString   ArgType = iota // Free-form string
	ArgTypeModel                   // Model ID from the catalog
	ArgTypeLanguage                // Speech language tag
	ArgTypeEnum                    // One of Values
)

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a new command registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Execute parses input and runs the matching command.
func (r *Registry) Execute(ctx *Context, input string) (Result, error) {
	parsed := NewParser(r).Parse(input)
	if !parsed.IsCommand {
		return Result{}, fmt.Errorf("not a command: %q", input)
	}
	if parsed.Command == nil {
		return Result{}, fmt.Errorf("%w: %s (try /help)", ErrUnknownCommand, parsed.CommandName)
	}
	if err := ValidateArgs(parsed.Command, parsed.Args); err != nil {
		return Result{}, err
	}
	if ctx.Registry == nil {
		ctx.Registry = r
	}
	return parsed.Command.Handler(ctx, parsed.Args)
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	r.Register(&Command{
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Description: "Show commands and keys",
		Handler:     handleHelp,
	})

	r.Register(&Command{
		Name:        "/quit",
		Aliases:     []string{"/q", "/exit"},
		Description: "Exit parley",
		Handler:     handleQuit,
	})

	r.Register(&Command{
		Name:        "/clear",
		Aliases:     []string{"/c", "/new"},
		Description: "Clear the conversation and start fresh",
		Handler:     handleClear,
	})

	r.Register(&Command{
		Name:        "/retry",
		Aliases:     []string{"/r"},
		Description: "Resend the last failed message",
		Handler:     handleRetry,
	})

	r.Register(&Command{
		Name:        "/cancel",
		Aliases:     []string{"/stop"},
		Description: "Stop the reply that is streaming",
		Handler:     handleCancel,
	})

	r.Register(&Command{
		Name:        "/speech",
		Aliases:     []string{"/speak"},
		Description: "Toggle or set reading replies aloud",
		Usage:       "/speech [on|off]",
		Args: []ArgDef{
			{Name: "state", Type: ArgTypeEnum, Values: []string{"on", "off"}, Description: "on or off"},
		},
		Handler: handleSpeech,
	})

	r.Register(&Command{
		Name:        "/lang",
		Aliases:     []string{"/language"},
		Description: "Show or set the speech language",
		Usage:       "/lang [tag]",
		Args: []ArgDef{
			{Name: "tag", Type: ArgTypeLanguage, Description: "BCP 47 tag such as en-US"},
		},
		Handler: handleLanguage,
	})

	r.Register(&Command{
		Name:        "/model",
		Aliases:     []string{"/m"},
		Description: "Show or switch the chat model",
		Usage:       "/model [id]",
		Args: []ArgDef{
			{Name: "id", Type: ArgTypeModel, Description: "Model ID"},
		},
		Handler: handleModel,
	})

	r.Register(&Command{
		Name:        "/url",
		Description: "Show or set the backend base URL",
		Usage:       "/url [url]",
		Args: []ArgDef{
			{Name: "url", Type: ArgTypeString, Description: "http(s) base URL"},
		},
		Handler: handleURL,
	})
}
