// Package commands describes the slash commands a bot registers.
package commands

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is one slash command.
type Command struct {
	Handler tele.HandlerFunc
	// Description is shown in the Telegram command menu.
	Description string
	// AdminOnly commands are guarded by the router and never advertised.
	AdminOnly bool
	// Hidden commands work but stay out of the menu.
	Hidden  bool
	Aliases []string
}

// Advertised reports whether the command belongs in the public menu.
func (c Command) Advertised() bool { return !c.Hidden && !c.AdminOnly }

// Answers reports whether name is one of the command's aliases.
func (c Command) Answers(name string) bool {
	name = Canonical(name)
	for _, a := range c.Aliases {
		if Canonical(a) == name {
			return true
		}
	}
	return false
}

// Validate checks the command before it is registered under name.
func (c Command) Validate(name string) error {
	switch {
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return errors.New("name must start with a slash")
	case c.Handler == nil:
		return errors.New("handler is nil")
	case strings.TrimSpace(c.Description) == "":
		return errors.New("description is empty")
	}
	return nil
}

// Canonical lower-cases name and adds the leading slash.
func Canonical(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + name
}
