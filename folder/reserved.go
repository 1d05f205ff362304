package folder

import (
	"strings"

	"github.com/creativeprojects/mailstate/mailbox"
)

// Reserved lists the names of the permanent folders of each context, in display order.
type Reserved map[mailbox.Context][]string

func DefaultReserved() Reserved {
	return Reserved{
		mailbox.Mail:     {"inbox", "drafts", "sent", "junk", "trash"},
		mailbox.Contacts: {"all", "people", "business", "collected"},
		mailbox.Settings: {"identity", "mail-settings", "portal-settings", "account-upgrades", "password"},
		mailbox.Logs:     {"statistics", "security", "contacts", "mail"},
		mailbox.Help:     {},
	}
}

// Slug returns the reserved name matching name (case-insensitive) in the context
func (r Reserved) Slug(context mailbox.Context, name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, reserved := range r[context] {
		if strings.EqualFold(reserved, name) {
			return reserved, true
		}
	}
	return "", false
}

// Position returns the display position of a reserved name, or -1
func (r Reserved) Position(context mailbox.Context, slug string) int {
	for i, reserved := range r[context] {
		if reserved == slug {
			return i
		}
	}
	return -1
}
