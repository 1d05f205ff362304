package lib

import "github.com/emersion/go-imap"

// Wire flag tokens. System flags follow the IMAP names, junk flags are keywords.
const (
	FlagSeen     = imap.SeenFlag
	FlagFlagged  = imap.FlaggedFlag
	FlagAnswered = imap.AnsweredFlag
	FlagJunk     = "$Junk"
)

func HasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

// AddFlag appends the flag when missing. The source slice is never modified.
func AddFlag(flags []string, flag string) []string {
	if HasFlag(flags, flag) {
		return flags
	}
	output := make([]string, len(flags), len(flags)+1)
	copy(output, flags)
	return append(output, flag)
}

// RemoveFlag returns a copy of flags without any occurrence of flag.
func RemoveFlag(flags []string, flag string) []string {
	output := make([]string, 0, len(flags))
	for _, f := range flags {
		if f == flag {
			continue
		}
		output = append(output, f)
	}
	return output
}

// StripRecentFlag removes the session-only \Recent flag, which a server never stores.
func StripRecentFlag(source []string) []string {
	return RemoveFlag(source, imap.RecentFlag)
}
