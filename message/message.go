// Package message caches the messages of the mail context, indexed by folder.
package message

import (
	"time"

	"github.com/creativeprojects/mailstate/lib"
	"github.com/creativeprojects/mailstate/mailbox"
	"github.com/dustin/go-humanize"
)

// Channels published by a Cache. Each one comes with its Error and Failed variants.
const (
	Loaded  = "loaded"
	Deleted = "deleted"
	Flagged = "flagged"
	Copied  = "copied"
	Moved   = "moved"
	Tagged  = "tagged"
)

const DefaultDateLayout = "2006-01-02 15:04"

type Tag struct {
	Name string
	Slug string
}

type Timestamp struct {
	Epoch   int64
	Display string
}

type Message struct {
	ID          mailbox.MessageID
	Subject     string
	From        string
	Flags       []string
	Seen        bool
	Flagged     bool
	Answered    bool
	Junk        bool
	Tags        []Tag
	Attachment  bool
	Size        uint32
	SizeDisplay string
	Received    Timestamp
	Arrived     Timestamp
}

// Clone returns a deep copy of the message
func (m *Message) Clone() Message {
	clone := *m
	clone.Flags = make([]string, len(m.Flags))
	copy(clone.Flags, m.Flags)
	clone.Tags = make([]Tag, len(m.Tags))
	copy(clone.Tags, m.Tags)
	return clone
}

// HasTag compares tag names case-insensitively
func (m *Message) HasTag(name string) bool {
	key := tagKey(name)
	for _, tag := range m.Tags {
		if tagKey(tag.Name) == key {
			return true
		}
	}
	return false
}

func (m *Message) setFlags(flags []string) {
	m.Flags = flags
	m.Seen = lib.HasFlag(flags, lib.FlagSeen)
	m.Flagged = lib.HasFlag(flags, lib.FlagFlagged)
	m.Answered = lib.HasFlag(flags, lib.FlagAnswered)
	m.Junk = lib.HasFlag(flags, lib.FlagJunk)
}

// merge updates the message in place with a fresher version
func (m *Message) merge(fresh *Message) {
	m.Subject = fresh.Subject
	m.From = fresh.From
	m.setFlags(fresh.Flags)
	m.Tags = fresh.Tags
	m.Attachment = fresh.Attachment
	m.Size = fresh.Size
	m.SizeDisplay = fresh.SizeDisplay
	m.Received = fresh.Received
	m.Arrived = fresh.Arrived
}

type formatter struct {
	layout   string
	location *time.Location
}

func (f formatter) timestamp(epoch int64) Timestamp {
	if epoch <= 0 {
		return Timestamp{}
	}
	return Timestamp{
		Epoch:   epoch,
		Display: time.Unix(epoch, 0).In(f.location).Format(f.layout),
	}
}

// normalize builds a cache message from its wire form: missing lists become empty,
// display strings are computed and tags are sorted.
func (f formatter) normalize(info mailbox.MessageInfo) *Message {
	m := &Message{
		ID:          info.ID,
		Subject:     info.Subject,
		From:        info.From,
		Attachment:  info.Attachment,
		Size:        info.Size,
		SizeDisplay: humanize.Bytes(uint64(info.Size)),
		Received:    f.timestamp(info.Received),
		Arrived:     f.timestamp(info.Arrived),
		Tags:        make([]Tag, 0, len(info.Tags)),
	}
	flags := make([]string, 0, len(info.Flags))
	for _, flag := range lib.StripRecentFlag(info.Flags) {
		flags = lib.AddFlag(flags, flag)
	}
	m.setFlags(flags)
	for _, name := range info.Tags {
		m.Tags = appendTag(m.Tags, name)
	}
	sortTags(m.Tags)
	return m
}
