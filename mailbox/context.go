package mailbox

import (
	"fmt"

	"github.com/creativeprojects/mailstate/lib"
)

// Context scopes a folder tree, its reserved names and its RPC namespace.
type Context string

const (
	Mail     Context = "mail"
	Contacts Context = "contacts"
	Settings Context = "settings"
	Logs     Context = "logs"
	Help     Context = "help"
)

// Contexts lists every known context
var Contexts = []Context{Mail, Contacts, Settings, Logs, Help}

func (c Context) Valid() bool {
	for _, known := range Contexts {
		if c == known {
			return true
		}
	}
	return false
}

func (c Context) String() string {
	return string(c)
}

// ParseContext returns the context matching name
func ParseContext(name string) (Context, error) {
	context := Context(name)
	if !context.Valid() {
		return "", fmt.Errorf("%w: %q", lib.ErrUnknownContext, name)
	}
	return context, nil
}
