package telegram

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Registry is the table of slash commands and callback keys a bot answers.
// Routers read it; the Telegram command menu is built from it.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]commands.Command
	callbacks map[string]tele.HandlerFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]tele.HandlerFunc),
	}
}

// RegisterCommand adds cmd under name, e.g. "/start". Names are case-insensitive.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	name = commands.Canonical(name)
	if err := cmd.Validate(name); err != nil {
		return fmt.Errorf("telegram: command %q: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		return fmt.Errorf("telegram: command %q registered twice", name)
	}
	r.commands[name] = cmd
	return nil
}

// RegisterCallback binds h to the callback key.
func (r *Registry) RegisterCallback(key string, h tele.HandlerFunc) error {
	if key == "" || h == nil {
		return fmt.Errorf("telegram: callback %q: empty key or nil handler", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[key]; dup {
		return fmt.Errorf("telegram: callback %q registered twice", key)
	}
	r.callbacks[key] = h
	return nil
}

// Lookup finds a command by name or alias and returns its registered name.
func (r *Registry) Lookup(name string) (string, commands.Command, bool) {
	name = commands.Canonical(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		if cmd.Answers(name) {
			return key, cmd, true
		}
	}
	return "", commands.Command{}, false
}

// Callback returns the handler bound to key.
func (r *Registry) Callback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// Names lists the command names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Menu returns the advertised commands in order, named without the slash
// as the Bot API expects.
func (r *Registry) Menu() []tele.Command {
	var menu []tele.Command
	for _, name := range r.Names() {
		_, cmd, _ := r.Lookup(name)
		if cmd.Advertised() {
			menu = append(menu, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: cmd.Description})
		}
	}
	return menu
}

// Size reports how many commands and callbacks are registered.
func (r *Registry) Size() (cmds, callbacks int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands), len(r.callbacks)
}

// publishMenu sets the Telegram command menu. A failure only costs the menu.
func publishMenu(bot *tele.Bot, reg *Registry) {
	menu := reg.Menu()
	if err := bot.SetCommands(menu); err != nil {
		logger.Warn(logger.Background(), logger.ComponentTGWire, "menu.publish",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return
	}
	logger.Info(logger.Background(), logger.ComponentTGWire, "menu.publish",
		slog.String("status", "ok"),
		slog.Int("commands", len(menu)),
	)
}
