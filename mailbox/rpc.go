package mailbox

import "strings"

// Folder operations, available in every context
const (
	FolderList   = "folders.list"
	FolderAdd    = "folders.add"
	FolderRemove = "folders.remove"
	FolderRename = "folders.rename"
	FolderMove   = "folders.move"
)

// Message operations, only available in the mail context
const (
	MessageList   = "messages.list"
	MessageRemove = "messages.remove"
	MessageFlag   = "messages.flag"
	MessageCopy   = "messages.copy"
	MessageMove   = "messages.move"
	MessageTag    = "messages.tag"
)

// Method returns the fully qualified RPC method of an operation in a context
func Method(context Context, operation string) string {
	return string(context) + "." + operation
}

// SplitMethod is the reverse of Method
func SplitMethod(method string) (Context, string, bool) {
	context, operation, found := strings.Cut(method, ".")
	if !found || operation == "" {
		return "", "", false
	}
	return Context(context), operation, true
}

type FolderParams struct {
	FolderID FolderID `json:"folderID,omitempty"`
	Name     string   `json:"name,omitempty"`
	ParentID FolderID `json:"parentID,omitempty"`
	TargetID FolderID `json:"targetFolderID,omitempty"`
}

type MessageParams struct {
	FolderID       FolderID    `json:"folderID"`
	MessageIDs     []MessageID `json:"messageIDs,omitempty"`
	Flag           string      `json:"flag,omitempty"`
	Remove         bool        `json:"remove,omitempty"`
	TargetFolderID FolderID    `json:"targetFolderID,omitempty"`
	Tags           []string    `json:"tags,omitempty"`
}
