// Package command answers slash commands in accepted messages.
package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"msggate/pkg/bus"
)

// Func handles one slash command. args is the text after the command word.
type Func func(ctx context.Context, args string, msg bus.Message, chat *bus.ChatContext) (*bus.Response, error)

type entry struct {
	help string
	fn   Func
}

// Router dispatches "/name args" messages to registered commands. Messages
// that are not a known command produce no reply.
type Router struct {
	mu       sync.RWMutex
	commands map[string]entry
}

// NewRouter returns a router with the built-in /start, /help and /id commands.
func NewRouter() *Router {
	r := &Router{commands: make(map[string]entry)}
	r.mustRegister("start", "Show the greeting", r.start)
	r.mustRegister("help", "List available commands", r.help)
	r.mustRegister("id", "Show this chat's id", chatID)
	return r
}

// Register adds or replaces a command. name is given without the slash.
func (r *Router) Register(name, help string, fn Func) error {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if name == "" || strings.ContainsAny(name, " @\t\n") {
		return fmt.Errorf("invalid command name %q", name)
	}
	if fn == nil {
		return errors.New("command handler is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = entry{help: strings.TrimSpace(help), fn: fn}
	return nil
}

func (r *Router) mustRegister(name, help string, fn Func) {
	if err := r.Register(name, help, fn); err != nil {
		panic(err)
	}
}

// HandleCommand implements pipeline.CommandHandler.
func (r *Router) HandleCommand(ctx context.Context, msg bus.Message, chat *bus.ChatContext) (*bus.Response, error) {
	word, args := splitCommand(msg.Body())
	name := normalizeSlashCommand(word)
	if name == "" {
		return nil, nil
	}

	r.mu.RLock()
	cmd, ok := r.commands[name]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	resp, err := cmd.fn(ctx, args, msg, chat)
	if err != nil {
		return nil, fmt.Errorf("command /%s: %w", name, err)
	}
	return resp, nil
}

// Names lists registered commands in alphabetical order.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Router) start(_ context.Context, _ string, _ bus.Message, chat *bus.ChatContext) (*bus.Response, error) {
	return chat.Reply("Hello! Send /help to see what I can do."), nil
}

func (r *Router) help(_ context.Context, _ string, _ bus.Message, chat *bus.ChatContext) (*bus.Response, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available commands:")
	for _, name := range names {
		b.WriteString("\n/")
		b.WriteString(name)
		if help := r.commands[name].help; help != "" {
			b.WriteString(" - ")
			b.WriteString(help)
		}
	}
	return chat.Reply(b.String()), nil
}

func chatID(_ context.Context, _ string, _ bus.Message, chat *bus.ChatContext) (*bus.Response, error) {
	return chat.Reply("Your chat_id: " + chat.ChatID), nil
}

func splitCommand(text string) (cmd string, rest string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	i := strings.IndexAny(text, " \n\t")
	if i == -1 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i:])
}

// normalizeSlashCommand strips the slash and any "@BotName" suffix.
func normalizeSlashCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if !strings.HasPrefix(cmd, "/") {
		return ""
	}
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(strings.TrimPrefix(cmd, "/"))
}
