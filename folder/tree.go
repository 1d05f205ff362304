package folder

import (
	"sort"
	"strings"

	"github.com/creativeprojects/mailstate/mailbox"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type node struct {
	info      mailbox.FolderInfo
	permanent bool
	slug      string
	children  []mailbox.FolderID
}

// tree is the arena of folder records. It is not safe for concurrent use:
// the Store guards it with its mutex.
type tree struct {
	nodes     map[mailbox.FolderID]*node
	permanent []mailbox.FolderID
	roots     []mailbox.FolderID
}

func newTree() *tree {
	return &tree{
		nodes:     make(map[mailbox.FolderID]*node),
		permanent: make([]mailbox.FolderID, 0),
		roots:     make([]mailbox.FolderID, 0),
	}
}

func (t *tree) isEmpty() bool {
	return len(t.nodes) == 0
}

func (t *tree) get(id mailbox.FolderID) (*node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// isCustom is true when id is an existing custom folder
func (t *tree) isCustom(id mailbox.FolderID) bool {
	n, ok := t.nodes[id]
	return ok && !n.permanent
}

func (t *tree) addPermanent(info mailbox.FolderInfo, slug string, position func(string) int) {
	info.ParentID = mailbox.NoFolder
	t.nodes[info.ID] = &node{info: info, permanent: true, slug: slug}
	t.permanent = append(t.permanent, info.ID)
	sort.SliceStable(t.permanent, func(i, j int) bool {
		return position(t.nodes[t.permanent[i]].slug) < position(t.nodes[t.permanent[j]].slug)
	})
}

// addCustom links a custom folder under its parent. An unknown or permanent parent makes it a root.
func (t *tree) addCustom(info mailbox.FolderInfo) {
	if !t.isCustom(info.ParentID) {
		info.ParentID = mailbox.NoFolder
	}
	t.nodes[info.ID] = &node{info: info}
	t.link(info.ID)
}

func (t *tree) link(id mailbox.FolderID) {
	n := t.nodes[id]
	if n.info.ParentID == mailbox.NoFolder {
		t.roots = append(t.roots, id)
		return
	}
	parent := t.nodes[n.info.ParentID]
	parent.children = append(parent.children, id)
}

func (t *tree) unlink(id mailbox.FolderID) {
	n := t.nodes[id]
	if n.info.ParentID == mailbox.NoFolder {
		t.roots = without(t.roots, id)
		return
	}
	if parent, ok := t.nodes[n.info.ParentID]; ok {
		parent.children = without(parent.children, id)
	}
}

// move relinks a custom folder under target (NoFolder for the root level)
func (t *tree) move(id, target mailbox.FolderID) {
	t.unlink(id)
	t.nodes[id].info.ParentID = target
	t.link(id)
}

// removeSubtree deletes a folder and all its descendants, returning their identities
func (t *tree) removeSubtree(id mailbox.FolderID) []mailbox.FolderID {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	t.unlink(id)
	removed := make([]mailbox.FolderID, 0, 1)
	stack := []mailbox.FolderID{id}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if child, ok := t.nodes[current]; ok {
			stack = append(stack, child.children...)
		}
		delete(t.nodes, current)
		removed = append(removed, current)
	}
	if n.permanent {
		t.permanent = without(t.permanent, id)
	}
	return removed
}

// isDescendant is true when candidate is ancestor itself or sits anywhere below it
func (t *tree) isDescendant(candidate, ancestor mailbox.FolderID) bool {
	current := candidate
	for steps := 0; steps <= len(t.nodes); steps++ {
		if current == ancestor {
			return true
		}
		n, ok := t.nodes[current]
		if !ok || n.info.ParentID == mailbox.NoFolder {
			return false
		}
		current = n.info.ParentID
	}
	return false
}

// detachUnreachable turns every custom folder not reachable from a root into a root.
// It only happens when the server sends parent links forming a cycle.
func (t *tree) detachUnreachable() []mailbox.FolderID {
	reached := make(map[mailbox.FolderID]bool, len(t.nodes))
	stack := append([]mailbox.FolderID{}, t.roots...)
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[current] {
			continue
		}
		reached[current] = true
		stack = append(stack, t.nodes[current].children...)
	}
	detached := make([]mailbox.FolderID, 0)
	for id, n := range t.nodes {
		if n.permanent || reached[id] {
			continue
		}
		detached = append(detached, id)
	}
	sort.Slice(detached, func(i, j int) bool { return detached[i] < detached[j] })
	for _, id := range detached {
		if reached[id] {
			continue
		}
		t.unlink(id)
		t.nodes[id].info.ParentID = mailbox.NoFolder
		t.link(id)
		// everything below is now reachable
		stack := []mailbox.FolderID{id}
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if reached[current] {
				continue
			}
			reached[current] = true
			stack = append(stack, t.nodes[current].children...)
		}
	}
	return detached
}

func (t *tree) folder(id mailbox.FolderID, nested bool) Folder {
	n := t.nodes[id]
	folder := Folder{
		ID:        n.info.ID,
		Name:      n.info.Name,
		ParentID:  n.info.ParentID,
		Permanent: n.permanent,
	}
	if nested && len(n.children) > 0 {
		folder.Subfolders = make([]Folder, len(n.children))
		for i, child := range n.children {
			folder.Subfolders[i] = t.folder(child, true)
		}
	}
	return folder
}

func (t *tree) listing(context mailbox.Context, transform Transform) Listing {
	listing := Listing{
		Context:   context,
		Transform: transform,
		Permanent: make([]Folder, len(t.permanent)),
	}
	for i, id := range t.permanent {
		listing.Permanent[i] = t.folder(id, false)
	}
	switch transform {
	case Flat:
		listing.Custom = t.flat()
	case Options:
		listing.Custom = t.nested()
		listing.Choices = t.choices()
	default:
		listing.Custom = t.nested()
	}
	return listing
}

func (t *tree) nested() []Folder {
	folders := make([]Folder, len(t.roots))
	for i, id := range t.roots {
		folders[i] = t.folder(id, true)
	}
	return folders
}

func (t *tree) flat() []Folder {
	folders := make([]Folder, 0, len(t.nodes))
	for id, n := range t.nodes {
		if n.permanent {
			continue
		}
		folders = append(folders, t.folder(id, false))
	}
	collator := collate.New(language.Und, collate.IgnoreCase)
	sort.Slice(folders, func(i, j int) bool {
		order := collator.CompareString(folders[i].Name, folders[j].Name)
		if order == 0 {
			return folders[i].ID < folders[j].ID
		}
		return order < 0
	})
	return folders
}

func (t *tree) choices() []Choice {
	choices := make([]Choice, 0, len(t.nodes))
	for _, id := range t.permanent {
		choices = append(choices, t.choice(id, 0))
	}
	var walk func(ids []mailbox.FolderID, depth int)
	walk = func(ids []mailbox.FolderID, depth int) {
		for _, id := range ids {
			choices = append(choices, t.choice(id, depth))
			walk(t.nodes[id].children, depth+1)
		}
	}
	walk(t.roots, 0)
	return choices
}

func (t *tree) choice(id mailbox.FolderID, depth int) Choice {
	folder := t.folder(id, false)
	return Choice{
		Value:  id.String(),
		Label:  strings.Repeat("  ", depth) + folder.Name,
		Depth:  depth,
		Folder: folder,
	}
}

func without(ids []mailbox.FolderID, id mailbox.FolderID) []mailbox.FolderID {
	output := make([]mailbox.FolderID, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			output = append(output, existing)
		}
	}
	return output
}

// populate rebuilds the custom tree from a server listing. Parents that are unknown or
// permanent make a root, and so do the links forming a cycle.
func (t *tree) populate(custom []mailbox.FolderInfo) {
	for _, info := range custom {
		if _, exists := t.nodes[info.ID]; exists {
			continue
		}
		t.nodes[info.ID] = &node{info: info}
	}
	linked := make(map[mailbox.FolderID]bool, len(custom))
	for _, info := range custom {
		n := t.nodes[info.ID]
		if n.permanent || linked[info.ID] {
			continue
		}
		linked[info.ID] = true
		if n.info.ParentID == n.info.ID || !t.isCustom(n.info.ParentID) {
			n.info.ParentID = mailbox.NoFolder
		}
		t.link(info.ID)
	}
	t.detachUnreachable()
}
