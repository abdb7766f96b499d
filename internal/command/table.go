// Package command maps prefixed chat messages onto registered handlers.
package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Request carries everything a handler needs to know about the message that
// triggered it.
type Request struct {
	GuildID        string
	ChannelID      string
	MessageID      string
	AuthorID       string
	VoiceChannelID string // the author's voice channel, "" when not in voice
	Args           string
}

// Handler runs one command. Replies are sent as a side effect; a non-nil
// error means the command failed in a way the dispatcher should report.
type Handler func(req Request) error

// UnknownCommandError is returned by Resolve for unregistered command names.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Name)
}

// UserMessage is the reply shown to the user who typed the command.
func (e *UnknownCommandError) UserMessage() string {
	return fmt.Sprintf("Command %s not recognized.", e.Name)
}

// ErrMissingPrefix reports a Resolve call on a message that the caller should
// have filtered out already.
var ErrMissingPrefix = errors.New("message does not start with the command prefix")

type entry struct {
	name    string
	argHint string
	help    string
	run     Handler
}

// Table holds the registered commands for one guild session.
type Table struct {
	prefix  string
	entries map[string]*entry
}

// NewTable returns an empty table for the given command prefix.
func NewTable(prefix string) *Table {
	return &Table{
		prefix:  prefix,
		entries: make(map[string]*entry),
	}
}

// Option tweaks a registration.
type Option func(*entry)

// WithGuard wraps the handler so invocation holds the given mutex for the
// whole call, released on every exit path.
func WithGuard(guard *sync.Mutex) Option {
	return func(e *entry) {
		inner := e.run
		e.run = func(req Request) error {
			guard.Lock()
			defer guard.Unlock()
			return inner(req)
		}
	}
}

// WithHelp attaches the help text and argument hint shown by the help command.
func WithHelp(help, argHint string) Option {
	return func(e *entry) {
		e.help = help
		e.argHint = argHint
	}
}

// Register adds a command. Registration happens once at session construction;
// a duplicate name or nil handler is a programming error.
func (t *Table) Register(name string, h Handler, opts ...Option) error {
	if h == nil {
		return fmt.Errorf("command %q registered without a handler", name)
	}
	if _, exists := t.entries[name]; exists {
		return fmt.Errorf("command %q already registered", name)
	}

	e := &entry{name: name, run: h}
	for _, opt := range opts {
		opt(e)
	}
	t.entries[name] = e
	return nil
}

// Resolved is the outcome of parsing a message into a command invocation.
type Resolved struct {
	Name string
	Args string
	Run  Handler
}

// Resolve parses a prefixed message into a command and its argument string.
// The argument string is everything after the first whitespace, or "" when
// the message is just the command. Names match exactly, case-sensitive.
func (t *Table) Resolve(content string) (*Resolved, error) {
	if !strings.HasPrefix(content, t.prefix) {
		return nil, ErrMissingPrefix
	}

	body := content[len(t.prefix):]
	name, args := body, ""
	if i := strings.IndexAny(body, " \t"); i >= 0 {
		name, args = body[:i], body[i+1:]
	}

	e, ok := t.entries[name]
	if !ok {
		return nil, &UnknownCommandError{Name: name}
	}
	return &Resolved{Name: name, Args: args, Run: e.run}, nil
}

// Prefix returns the table's command prefix.
func (t *Table) Prefix() string {
	return t.prefix
}

// Help renders the full help listing, one line per command, sorted by name.
func (t *Table) Help() string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range names {
		b.WriteString(t.helpLine(t.entries[name]))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// HelpFor renders the help line for a single command.
func (t *Table) HelpFor(name string) (string, bool) {
	e, ok := t.entries[name]
	if !ok {
		return "", false
	}
	return t.helpLine(e), true
}

func (t *Table) helpLine(e *entry) string {
	var b strings.Builder
	b.WriteString("`")
	b.WriteString(t.prefix)
	b.WriteString(e.name)
	if e.argHint != "" {
		b.WriteString(" ")
		b.WriteString(e.argHint)
	}
	b.WriteString("`")
	if e.help != "" {
		b.WriteString(" - ")
		b.WriteString(e.help)
	}
	return b.String()
}
