package folder

import (
	"sync"

	"github.com/creativeprojects/mailstate/mailbox"
)

// Directory maps the permanent folders of every context to their server identity.
// One Directory is shared by the stores and the collaborators needing these lookups.
type Directory struct {
	mu    sync.RWMutex
	slugs map[mailbox.Context]map[string]mailbox.FolderID
}

func NewDirectory() *Directory {
	return &Directory{
		slugs: make(map[mailbox.Context]map[string]mailbox.FolderID),
	}
}

func (d *Directory) Set(context mailbox.Context, slug string, id mailbox.FolderID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.slugs[context] == nil {
		d.slugs[context] = make(map[string]mailbox.FolderID)
	}
	d.slugs[context][slug] = id
}

// Reset forgets the folders of a context
func (d *Directory) Reset(context mailbox.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.slugs, context)
}

// Lookup returns the identity of a permanent folder
func (d *Directory) Lookup(context mailbox.Context, slug string) (mailbox.FolderID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.slugs[context][slug]
	return id, ok
}

// Slug is the reverse of Lookup
func (d *Directory) Slug(context mailbox.Context, id mailbox.FolderID) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for slug, folderID := range d.slugs[context] {
		if folderID == id {
			return slug, true
		}
	}
	return "", false
}
