package message

import (
	"fmt"

	"github.com/creativeprojects/mailstate/lib"
)

// Action is a change of one flag
type Action string

const (
	Read       Action = "read"
	Unread     Action = "unread"
	Star       Action = "star"
	Unstar     Action = "unstar"
	Answered   Action = "answered"
	Unanswered Action = "unanswered"
	Junk       Action = "junk"
	NotJunk    Action = "notjunk"
)

type actionFlag struct {
	flag   string
	remove bool
}

var actions = map[Action]actionFlag{
	Read:       {lib.FlagSeen, false},
	Unread:     {lib.FlagSeen, true},
	Star:       {lib.FlagFlagged, false},
	Unstar:     {lib.FlagFlagged, true},
	Answered:   {lib.FlagAnswered, false},
	Unanswered: {lib.FlagAnswered, true},
	Junk:       {lib.FlagJunk, false},
	NotJunk:    {lib.FlagJunk, true},
}

// Actions lists every known action
func Actions() []Action {
	return []Action{Read, Unread, Star, Unstar, Answered, Unanswered, Junk, NotJunk}
}

func ParseAction(name string) (Action, error) {
	action := Action(name)
	if _, ok := actions[action]; !ok {
		return "", fmt.Errorf("%w: %q", lib.ErrUnknownAction, name)
	}
	return action, nil
}

// Flag returns the wire flag changed by the action, and whether the action removes it
func (a Action) Flag() (string, bool) {
	found := actions[a]
	return found.flag, found.remove
}
