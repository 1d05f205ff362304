// Package folder keeps the folder tree of one context: permanent folders, whose names are
// reserved, and the tree of custom folders created by the user.
package folder

import "github.com/creativeprojects/mailstate/mailbox"

// Channels published by a Store. Each one comes with its Error and Failed variants.
const (
	Loaded  = "loaded"
	Added   = "added"
	Removed = "removed"
	Renamed = "renamed"
	Moved   = "moved"
)

type Transform int

const (
	// Tree nests custom folders under their parent
	Tree Transform = iota
	// Flat lists custom folders alphabetically, without nesting
	Flat
	// Options lists every folder as a selectable choice, indented by depth
	Options
)

func (t Transform) String() string {
	switch t {
	case Flat:
		return "flat"
	case Options:
		return "options"
	default:
		return "tree"
	}
}

// ParseTransform accepts "tree", "flat" or "options"
func ParseTransform(name string) (Transform, bool) {
	for _, transform := range []Transform{Tree, Flat, Options} {
		if transform.String() == name {
			return transform, true
		}
	}
	return Tree, false
}

// Folder is a copy of the store state: changing it has no effect on the store.
type Folder struct {
	ID         mailbox.FolderID
	Name       string
	ParentID   mailbox.FolderID
	Permanent  bool
	Subfolders []Folder
}

// Choice is a folder entry in the Options transform
type Choice struct {
	Value string
	Label string
	Depth int
	Folder
}

// Listing is the payload of the Loaded channel
type Listing struct {
	Context   mailbox.Context
	Transform Transform
	Permanent []Folder
	Custom    []Folder
	Choices   []Choice
}

// RemovedFolder is the payload of the Removed channel
type RemovedFolder struct {
	FolderID mailbox.FolderID
	ParentID mailbox.FolderID
}

// MovedFolder is the payload of the Moved channel
type MovedFolder struct {
	SourceFolderID mailbox.FolderID
	TargetFolderID mailbox.FolderID
}
