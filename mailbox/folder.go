package mailbox

// FolderInfo is the wire form of a folder
type FolderInfo struct {
	ID       FolderID `json:"folderID"`
	Name     string   `json:"name"`
	ParentID FolderID `json:"parentID,omitempty"`
}
