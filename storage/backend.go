// Package storage is the server side of the folder and message methods: a Backend keeps the
// data and a Dispatcher answers the gateway requests with it.
package storage

import (
	"github.com/creativeprojects/mailstate/lib"
	"github.com/creativeprojects/mailstate/mailbox"
)

// Backend stores folders and messages. Folder identities are unique across contexts and
// message identities are unique across folders.
type Backend interface {
	// DebugLogger sets a logger to send debug information to
	DebugLogger(logger lib.Logger)
	// Close the backend
	Close() error
	ListFolders(context mailbox.Context) ([]mailbox.FolderInfo, error)
	// CreateFolder fails with lib.ErrFolderExists when the parent already holds a folder of that name
	CreateFolder(context mailbox.Context, name string, parentID mailbox.FolderID) (mailbox.FolderInfo, error)
	// DeleteFolder also deletes the subfolders and the messages they hold
	DeleteFolder(context mailbox.Context, id mailbox.FolderID) error
	RenameFolder(context mailbox.Context, id mailbox.FolderID, name string) error
	MoveFolder(context mailbox.Context, id, targetID mailbox.FolderID) error
	ListMessages(folderID mailbox.FolderID) ([]mailbox.MessageInfo, error)
	// PutMessage stores a new message in a folder. The identity in info is ignored.
	PutMessage(folderID mailbox.FolderID, info mailbox.MessageInfo) (mailbox.MessageID, error)
	DeleteMessages(folderID mailbox.FolderID, ids []mailbox.MessageID) error
	FlagMessages(folderID mailbox.FolderID, ids []mailbox.MessageID, flag string, remove bool) error
	TagMessages(folderID mailbox.FolderID, ids []mailbox.MessageID, tags []string) error
	// CopyMessages gives a new identity to every copy
	CopyMessages(folderID mailbox.FolderID, ids []mailbox.MessageID, targetID mailbox.FolderID) ([]mailbox.CopyEntry, error)
	// MoveMessages keeps the identity of the messages
	MoveMessages(folderID mailbox.FolderID, ids []mailbox.MessageID, targetID mailbox.FolderID) error
}
