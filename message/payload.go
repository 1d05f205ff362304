package message

import "github.com/creativeprojects/mailstate/mailbox"

// Listing is the payload of the Loaded channel
type Listing struct {
	FolderID mailbox.FolderID
	Messages []Message
}

// Deletion is the payload of the Deleted channel
type Deletion struct {
	FolderID   mailbox.FolderID
	MessageIDs []mailbox.MessageID
}

// FlagChange is the payload of the Flagged channel: only the messages that actually changed are listed.
type FlagChange struct {
	FolderID   mailbox.FolderID
	MessageIDs []mailbox.MessageID
	Action     Action
	Messages   []Message
}

// CopyResult is the payload of the Copied channel
type CopyResult struct {
	FolderID       mailbox.FolderID
	TargetFolderID mailbox.FolderID
	Entries        []mailbox.CopyEntry
	Messages       []Message
}

// MoveResult is the payload of the Moved channel
type MoveResult struct {
	FolderID       mailbox.FolderID
	TargetFolderID mailbox.FolderID
	MessageIDs     []mailbox.MessageID
}

// TagChange is the payload of the Tagged channel
type TagChange struct {
	FolderID   mailbox.FolderID
	MessageIDs []mailbox.MessageID
	Tags       []Tag
	Messages   []Message
}
