package folder

import (
	"fmt"
	"strings"
	"sync"

	"github.com/creativeprojects/mailstate/event"
	"github.com/creativeprojects/mailstate/gateway"
	"github.com/creativeprojects/mailstate/lib"
	"github.com/creativeprojects/mailstate/mailbox"
)

// Store keeps the folders of one context. Mutations are sent through the gateway and the
// result is published on the store hub: the operation channel on success, its Error variant
// when the request was rejected (locally or by the server) and its Failed variant when no
// usable answer came back.
type Store struct {
	mu            sync.Mutex
	caller        gateway.Caller
	hub           *event.Hub
	log           lib.Logger
	directory     *Directory
	reserved      Reserved
	context       mailbox.Context
	tree          *tree
	loading       bool
	loadTransform Transform
	generation    uint64
	pending       map[mailbox.FolderID]bool
	pendingAdds   map[string]bool
}

type Option func(*Store)

func WithLogger(logger lib.Logger) Option {
	return func(s *Store) {
		s.log = lib.OrNoLog(logger)
	}
}

// WithDirectory shares the permanent folders directory between stores
func WithDirectory(directory *Directory) Option {
	return func(s *Store) {
		if directory != nil {
			s.directory = directory
		}
	}
}

func WithReserved(reserved Reserved) Option {
	return func(s *Store) {
		if reserved != nil {
			s.reserved = reserved
		}
	}
}

func New(caller gateway.Caller, context mailbox.Context, options ...Option) (*Store, error) {
	if !context.Valid() {
		return nil, fmt.Errorf("%w: %q", lib.ErrUnknownContext, context)
	}
	s := &Store{
		caller:      caller,
		hub:         event.NewHub(),
		log:         &lib.NoLog{},
		reserved:    DefaultReserved(),
		context:     context,
		tree:        newTree(),
		pending:     make(map[mailbox.FolderID]bool),
		pendingAdds: make(map[string]bool),
	}
	for _, option := range options {
		option(s)
	}
	if s.directory == nil {
		s.directory = NewDirectory()
	}
	err := s.hub.DeclareOperation(Loaded, Added, Removed, Renamed, Moved)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Hub() *event.Hub {
	return s.hub
}

func (s *Store) Directory() *Directory {
	return s.directory
}

func (s *Store) Context() mailbox.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.context
}

// Load publishes the folder listing on the Loaded channel. The server is only asked the
// first time: afterwards the listing is built from the local tree.
func (s *Store) Load(transform Transform) {
	s.mu.Lock()
	if !s.tree.isEmpty() {
		listing := s.tree.listing(s.context, transform)
		s.mu.Unlock()
		s.hub.MustPublish(Loaded, listing)
		return
	}
	s.loadTransform = transform
	if s.loading {
		s.mu.Unlock()
		return
	}
	s.loading = true
	generation := s.generation
	method := mailbox.Method(s.context, mailbox.FolderList)
	s.mu.Unlock()

	s.caller.Call(method, nil, func(outcome gateway.Outcome) {
		s.loadCompleted(generation, outcome)
	})
}

func (s *Store) loadCompleted(generation uint64, outcome gateway.Outcome) {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		s.log.Printf("ignoring folder list from a previous context")
		return
	}
	s.loading = false
	if outcome.Kind != gateway.Success {
		s.mu.Unlock()
		s.publishOutcome(Loaded, outcome)
		return
	}
	infos := make([]mailbox.FolderInfo, 0)
	if err := outcome.Decode(&infos); err != nil {
		s.mu.Unlock()
		s.hub.MustPublish(event.Operation(Loaded).Failed, err)
		return
	}
	s.populate(infos)
	listing := s.tree.listing(s.context, s.loadTransform)
	s.log.Printf("loaded %d permanent and %d custom folders in %s", len(listing.Permanent), len(s.tree.nodes)-len(listing.Permanent), s.context)
	s.mu.Unlock()

	s.hub.MustPublish(Loaded, listing)
}

// populate must be called with the lock held
func (s *Store) populate(infos []mailbox.FolderInfo) {
	s.tree = newTree()
	s.directory.Reset(s.context)
	position := func(slug string) int {
		return s.reserved.Position(s.context, slug)
	}
	custom := make([]mailbox.FolderInfo, 0, len(infos))
	for _, info := range infos {
		if info.ID <= 0 {
			continue
		}
		if _, exists := s.tree.get(info.ID); exists {
			continue
		}
		if slug, ok := s.reserved.Slug(s.context, info.Name); ok {
			if _, taken := s.directory.Lookup(s.context, slug); taken {
				s.log.Printf("duplicate permanent folder %q (id %d) in %s", info.Name, info.ID, s.context)
				continue
			}
			s.tree.addPermanent(info, slug, position)
			s.directory.Set(s.context, slug, info.ID)
			continue
		}
		custom = append(custom, info)
	}
	s.tree.populate(custom)
}

// Add asks the server to create a custom folder under parentID (mailbox.NoFolder for the root level).
func (s *Store) Add(name string, parentID mailbox.FolderID) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: folder name", lib.ErrMissingArgument)
	}
	s.mu.Lock()
	method := mailbox.Method(s.context, mailbox.FolderAdd)
	if _, reserved := s.reserved.Slug(s.context, name); reserved {
		s.mu.Unlock()
		s.reject(Added, method, lib.ErrReservedName)
		return nil
	}
	if parentID != mailbox.NoFolder {
		if n, ok := s.tree.get(parentID); !ok {
			s.mu.Unlock()
			s.reject(Added, method, lib.ErrFolderNotFound)
			return nil
		} else if n.permanent {
			s.mu.Unlock()
			s.reject(Added, method, lib.ErrPermanentFolder)
			return nil
		}
	}
	key := pendingKey(parentID, name)
	if s.pendingAdds[key] || s.pending[parentID] {
		s.mu.Unlock()
		s.reject(Added, method, lib.ErrPending)
		return nil
	}
	s.pendingAdds[key] = true
	generation := s.generation
	s.mu.Unlock()

	params := mailbox.FolderParams{Name: name, ParentID: parentID}
	s.caller.Call(method, params, func(outcome gateway.Outcome) {
		s.addCompleted(generation, key, outcome)
	})
	return nil
}

func (s *Store) addCompleted(generation uint64, key string, outcome gateway.Outcome) {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return
	}
	delete(s.pendingAdds, key)
	if outcome.Kind != gateway.Success {
		s.mu.Unlock()
		s.publishOutcome(Added, outcome)
		return
	}
	info := mailbox.FolderInfo{}
	if err := outcome.Decode(&info); err != nil {
		s.mu.Unlock()
		s.hub.MustPublish(event.Operation(Added).Failed, err)
		return
	}
	if _, exists := s.tree.get(info.ID); exists || info.ID <= 0 {
		s.mu.Unlock()
		s.hub.MustPublish(event.Operation(Added).Failed, fmt.Errorf("invalid folder identity %d", info.ID))
		return
	}
	s.tree.addCustom(info)
	folder := s.tree.folder(info.ID, true)
	s.mu.Unlock()

	s.hub.MustPublish(Added, folder)
}

// Remove asks the server to delete a custom folder and all its subfolders
func (s *Store) Remove(id mailbox.FolderID) {
	s.mu.Lock()
	method := mailbox.Method(s.context, mailbox.FolderRemove)
	if err := s.checkMutable(id); err != nil {
		s.mu.Unlock()
		s.reject(Removed, method, err)
		return
	}
	s.pending[id] = true
	generation := s.generation
	s.mu.Unlock()

	s.caller.Call(method, mailbox.FolderParams{FolderID: id}, func(outcome gateway.Outcome) {
		s.removeCompleted(generation, id, outcome)
	})
}

func (s *Store) removeCompleted(generation uint64, id mailbox.FolderID, outcome gateway.Outcome) {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	if outcome.Kind != gateway.Success {
		s.mu.Unlock()
		s.publishOutcome(Removed, outcome)
		return
	}
	removed := RemovedFolder{FolderID: id}
	if n, ok := s.tree.get(id); ok {
		removed.ParentID = n.info.ParentID
		for _, descendant := range s.tree.removeSubtree(id) {
			delete(s.pending, descendant)
		}
	}
	s.mu.Unlock()

	s.hub.MustPublish(Removed, removed)
}

// Rename asks the server to change the name of a custom folder
func (s *Store) Rename(name string, id mailbox.FolderID) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: folder name", lib.ErrMissingArgument)
	}
	s.mu.Lock()
	method := mailbox.Method(s.context, mailbox.FolderRename)
	err := s.checkMutable(id)
	if err == nil {
		if _, reserved := s.reserved.Slug(s.context, name); reserved {
			err = lib.ErrReservedName
		}
	}
	if err != nil {
		s.mu.Unlock()
		s.reject(Renamed, method, err)
		return nil
	}
	s.pending[id] = true
	generation := s.generation
	s.mu.Unlock()

	s.caller.Call(method, mailbox.FolderParams{FolderID: id, Name: name}, func(outcome gateway.Outcome) {
		s.renameCompleted(generation, id, name, outcome)
	})
	return nil
}

func (s *Store) renameCompleted(generation uint64, id mailbox.FolderID, name string, outcome gateway.Outcome) {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	if outcome.Kind != gateway.Success {
		s.mu.Unlock()
		s.publishOutcome(Renamed, outcome)
		return
	}
	n, ok := s.tree.get(id)
	if !ok {
		s.mu.Unlock()
		s.reject(Renamed, outcome.Method, lib.ErrFolderNotFound)
		return
	}
	n.info.Name = name
	folder := s.tree.folder(id, true)
	s.mu.Unlock()

	s.hub.MustPublish(Renamed, folder)
}

// Move asks the server to move a custom folder under target (mailbox.NoFolder for the root level).
// A folder cannot be moved into itself or one of its own subfolders.
func (s *Store) Move(source, target mailbox.FolderID) {
	s.mu.Lock()
	method := mailbox.Method(s.context, mailbox.FolderMove)
	err := s.checkMove(source, target)
	if err == nil && s.pending[source] {
		err = lib.ErrPending
	}
	if err != nil {
		s.mu.Unlock()
		s.reject(Moved, method, err)
		return
	}
	s.pending[source] = true
	generation := s.generation
	s.mu.Unlock()

	params := mailbox.FolderParams{FolderID: source, TargetID: target}
	s.caller.Call(method, params, func(outcome gateway.Outcome) {
		s.moveCompleted(generation, source, target, outcome)
	})
}

func (s *Store) moveCompleted(generation uint64, source, target mailbox.FolderID, outcome gateway.Outcome) {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return
	}
	delete(s.pending, source)
	if outcome.Kind != gateway.Success {
		s.mu.Unlock()
		s.publishOutcome(Moved, outcome)
		return
	}
	// the tree may have changed while the request was in flight
	if err := s.checkMove(source, target); err != nil {
		s.mu.Unlock()
		s.log.Printf("cannot apply confirmed move of folder %d to %d: %s", source, target, err)
		s.reject(Moved, outcome.Method, err)
		return
	}
	s.tree.move(source, target)
	s.mu.Unlock()

	s.hub.MustPublish(Moved, MovedFolder{SourceFolderID: source, TargetFolderID: target})
}

// ChangeContext forgets every folder and loads the folders of another context.
// Answers to requests sent for the previous context are ignored.
func (s *Store) ChangeContext(context mailbox.Context, transform Transform) error {
	if !context.Valid() {
		return fmt.Errorf("%w: %q", lib.ErrUnknownContext, context)
	}
	s.mu.Lock()
	s.generation++
	s.context = context
	s.tree = newTree()
	s.loading = false
	s.pending = make(map[mailbox.FolderID]bool)
	s.pendingAdds = make(map[string]bool)
	s.mu.Unlock()

	s.Load(transform)
	return nil
}

// ListFolders returns a copy of the current folders, without asking the server
func (s *Store) ListFolders(transform Transform) Listing {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tree.listing(s.context, transform)
}

// GetFolder returns a copy of the folder, with its subfolders
func (s *Store) GetFolder(id mailbox.FolderID) (Folder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tree.get(id); !ok {
		return Folder{}, false
	}
	return s.tree.folder(id, true), true
}

// checkMutable must be called with the lock held
func (s *Store) checkMutable(id mailbox.FolderID) error {
	n, ok := s.tree.get(id)
	if !ok {
		return lib.ErrFolderNotFound
	}
	if n.permanent {
		return lib.ErrPermanentFolder
	}
	if s.pending[id] {
		return lib.ErrPending
	}
	return nil
}

// checkMove must be called with the lock held
func (s *Store) checkMove(source, target mailbox.FolderID) error {
	n, ok := s.tree.get(source)
	if !ok {
		return lib.ErrFolderNotFound
	}
	if n.permanent {
		return lib.ErrPermanentFolder
	}
	if target == mailbox.NoFolder {
		return nil
	}
	t, ok := s.tree.get(target)
	if !ok {
		return lib.ErrFolderNotFound
	}
	if t.permanent {
		return lib.ErrPermanentFolder
	}
	if s.tree.isDescendant(target, source) {
		return lib.ErrFolderCycle
	}
	return nil
}

func (s *Store) reject(operation, method string, err error) {
	s.log.Printf("%s rejected: %s", method, err)
	s.hub.MustPublish(event.Operation(operation).Error, gateway.Reject(method, err))
}

func (s *Store) publishOutcome(operation string, outcome gateway.Outcome) {
	channels := event.Operation(operation)
	if outcome.Kind == gateway.Rejected {
		s.hub.MustPublish(channels.Error, outcome.Err)
		return
	}
	s.hub.MustPublish(channels.Failed, outcome.Err)
}

func pendingKey(parentID mailbox.FolderID, name string) string {
	return parentID.String() + "/" + strings.ToLower(name)
}
