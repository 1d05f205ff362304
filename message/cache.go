package message

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/creativeprojects/mailstate/event"
	"github.com/creativeprojects/mailstate/gateway"
	"github.com/creativeprojects/mailstate/lib"
	"github.com/creativeprojects/mailstate/mailbox"
)

// Cache owns the messages of the folders loaded so far. A message is in one folder index at
// most. Every mutation names the folder it applies to, which must be the current folder
// (the last one successfully loaded).
type Cache struct {
	mu          sync.Mutex
	caller      gateway.Caller
	hub         *event.Hub
	log         lib.Logger
	format      formatter
	messages    map[mailbox.MessageID]*Message
	folders     map[mailbox.FolderID][]mailbox.MessageID
	location    map[mailbox.MessageID]mailbox.FolderID
	initialized map[mailbox.FolderID]bool
	loading     map[mailbox.FolderID]bool
	current     mailbox.FolderID
}

type Option func(*Cache)

func WithLogger(logger lib.Logger) Option {
	return func(c *Cache) {
		c.log = lib.OrNoLog(logger)
	}
}

// WithDateFormat sets the layout and location of the timestamps display strings
func WithDateFormat(layout string, location *time.Location) Option {
	return func(c *Cache) {
		if layout != "" {
			c.format.layout = layout
		}
		if location != nil {
			c.format.location = location
		}
	}
}

func NewCache(caller gateway.Caller, options ...Option) (*Cache, error) {
	c := &Cache{
		caller: caller,
		hub:    event.NewHub(),
		log:    &lib.NoLog{},
		format: formatter{
			layout:   DefaultDateLayout,
			location: time.Local,
		},
		messages:    make(map[mailbox.MessageID]*Message),
		folders:     make(map[mailbox.FolderID][]mailbox.MessageID),
		location:    make(map[mailbox.MessageID]mailbox.FolderID),
		initialized: make(map[mailbox.FolderID]bool),
		loading:     make(map[mailbox.FolderID]bool),
	}
	for _, option := range options {
		option(c)
	}
	err := c.hub.DeclareOperation(Loaded, Deleted, Flagged, Copied, Moved, Tagged)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) Hub() *event.Hub {
	return c.hub
}

func method(operation string) string {
	return mailbox.Method(mailbox.Mail, operation)
}

// Load publishes the messages of a folder on the Loaded channel and makes it the current folder.
// The server is only asked the first time the folder is loaded.
func (c *Cache) Load(folder mailbox.FolderID) error {
	return c.load(folder, false)
}

// Reload asks the server for the messages of a folder even when they are already cached.
// Messages missing from the answer are dropped from the cache.
func (c *Cache) Reload(folder mailbox.FolderID) error {
	return c.load(folder, true)
}

func (c *Cache) load(folder mailbox.FolderID, force bool) error {
	if folder <= 0 {
		return fmt.Errorf("%w: folder", lib.ErrMissingArgument)
	}
	c.mu.Lock()
	if c.initialized[folder] && !force {
		c.current = folder
		listing := Listing{FolderID: folder, Messages: c.snapshot(folder)}
		c.mu.Unlock()
		c.hub.MustPublish(Loaded, listing)
		return nil
	}
	if c.loading[folder] {
		c.mu.Unlock()
		return nil
	}
	c.loading[folder] = true
	c.mu.Unlock()

	c.caller.Call(method(mailbox.MessageList), mailbox.MessageParams{FolderID: folder}, func(outcome gateway.Outcome) {
		c.loadCompleted(folder, outcome)
	})
	return nil
}

func (c *Cache) loadCompleted(folder mailbox.FolderID, outcome gateway.Outcome) {
	c.mu.Lock()
	delete(c.loading, folder)
	if outcome.Kind != gateway.Success {
		c.mu.Unlock()
		c.publishOutcome(Loaded, outcome)
		return
	}
	infos := make([]mailbox.MessageInfo, 0)
	if err := outcome.Decode(&infos); err != nil {
		c.mu.Unlock()
		c.hub.MustPublish(event.Operation(Loaded).Failed, err)
		return
	}
	c.replaceIndex(folder, infos)
	c.initialized[folder] = true
	c.current = folder
	listing := Listing{FolderID: folder, Messages: c.snapshot(folder)}
	c.mu.Unlock()

	c.hub.MustPublish(Loaded, listing)
}

// replaceIndex must be called with the lock held. The folder index becomes the server listing:
// known identities are merged in place, identities no longer listed are dropped.
func (c *Cache) replaceIndex(folder mailbox.FolderID, infos []mailbox.MessageInfo) {
	index := make([]mailbox.MessageID, 0, len(infos))
	listed := make(map[mailbox.MessageID]bool, len(infos))
	for _, info := range infos {
		if info.ID <= 0 || listed[info.ID] {
			continue
		}
		listed[info.ID] = true
		fresh := c.format.normalize(info)
		if existing, ok := c.messages[info.ID]; ok {
			existing.merge(fresh)
			if previous := c.location[info.ID]; previous != folder {
				c.log.Printf("message %d moved from folder %d to %d", info.ID, previous, folder)
				c.unindex(previous, info.ID)
			}
		} else {
			c.messages[info.ID] = fresh
		}
		c.location[info.ID] = folder
		index = append(index, info.ID)
	}
	for _, id := range c.folders[folder] {
		if !listed[id] {
			delete(c.messages, id)
			delete(c.location, id)
		}
	}
	c.folders[folder] = index
}

// Delete asks the server to delete messages of the current folder
func (c *Cache) Delete(folder mailbox.FolderID, ids []mailbox.MessageID) error {
	c.mu.Lock()
	if err := c.checkCurrent(folder); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	if len(ids) == 0 {
		c.reject(Deleted, mailbox.MessageRemove, lib.ErrNoMessages)
		return nil
	}
	ids = unique(ids)

	params := mailbox.MessageParams{FolderID: folder, MessageIDs: ids}
	c.caller.Call(method(mailbox.MessageRemove), params, func(outcome gateway.Outcome) {
		c.deleteCompleted(folder, ids, outcome)
	})
	return nil
}

func (c *Cache) deleteCompleted(folder mailbox.FolderID, ids []mailbox.MessageID, outcome gateway.Outcome) {
	if outcome.Kind != gateway.Success {
		c.publishOutcome(Deleted, outcome)
		return
	}
	c.mu.Lock()
	for _, id := range ids {
		if c.location[id] != folder {
			continue
		}
		c.unindex(folder, id)
		delete(c.messages, id)
		delete(c.location, id)
	}
	c.mu.Unlock()

	c.hub.MustPublish(Deleted, Deletion{FolderID: folder, MessageIDs: ids})
}

// Flag changes one flag on messages of the current folder. Only the messages needing the change
// are sent to the server: the returned list can be shorter than ids, or empty, in which case
// no request is made and nothing is published.
func (c *Cache) Flag(folder mailbox.FolderID, ids []mailbox.MessageID, action Action) ([]mailbox.MessageID, error) {
	if _, ok := actions[action]; !ok {
		return nil, fmt.Errorf("%w: %q", lib.ErrUnknownAction, action)
	}
	flag, remove := action.Flag()

	c.mu.Lock()
	if err := c.checkCurrent(folder); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	narrowed := make([]mailbox.MessageID, 0, len(ids))
	for _, id := range unique(ids) {
		m, ok := c.messages[id]
		if !ok || c.location[id] != folder {
			continue
		}
		// removing needs the flag, adding needs it missing
		if lib.HasFlag(m.Flags, flag) == remove {
			narrowed = append(narrowed, id)
		}
	}
	c.mu.Unlock()

	if len(narrowed) == 0 {
		return narrowed, nil
	}
	params := mailbox.MessageParams{FolderID: folder, MessageIDs: narrowed, Flag: flag, Remove: remove}
	c.caller.Call(method(mailbox.MessageFlag), params, func(outcome gateway.Outcome) {
		c.flagCompleted(folder, narrowed, action, outcome)
	})
	return narrowed, nil
}

func (c *Cache) flagCompleted(folder mailbox.FolderID, ids []mailbox.MessageID, action Action, outcome gateway.Outcome) {
	if outcome.Kind != gateway.Success {
		c.publishOutcome(Flagged, outcome)
		return
	}
	flag, remove := action.Flag()
	c.mu.Lock()
	change := FlagChange{
		FolderID:   folder,
		MessageIDs: make([]mailbox.MessageID, 0, len(ids)),
		Action:     action,
		Messages:   make([]Message, 0, len(ids)),
	}
	for _, id := range ids {
		m, ok := c.messages[id]
		if !ok {
			continue
		}
		if remove {
			m.setFlags(lib.RemoveFlag(m.Flags, flag))
		} else {
			m.setFlags(lib.AddFlag(m.Flags, flag))
		}
		change.MessageIDs = append(change.MessageIDs, id)
		change.Messages = append(change.Messages, m.Clone())
	}
	c.mu.Unlock()

	c.hub.MustPublish(Flagged, change)
}

// Copy asks the server to copy messages of the current folder into target.
// The copies get new identities from the server.
func (c *Cache) Copy(folder mailbox.FolderID, ids []mailbox.MessageID, target mailbox.FolderID) error {
	if target <= 0 {
		return fmt.Errorf("%w: target folder", lib.ErrMissingArgument)
	}
	c.mu.Lock()
	if err := c.checkCurrent(folder); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	if err := checkTransfer(folder, ids, target); err != nil {
		c.reject(Copied, mailbox.MessageCopy, err)
		return nil
	}
	ids = unique(ids)

	params := mailbox.MessageParams{FolderID: folder, MessageIDs: ids, TargetFolderID: target}
	c.caller.Call(method(mailbox.MessageCopy), params, func(outcome gateway.Outcome) {
		c.copyCompleted(folder, target, outcome)
	})
	return nil
}

func (c *Cache) copyCompleted(folder, target mailbox.FolderID, outcome gateway.Outcome) {
	if outcome.Kind != gateway.Success {
		c.publishOutcome(Copied, outcome)
		return
	}
	entries := make([]mailbox.CopyEntry, 0)
	if err := outcome.Decode(&entries); err != nil {
		c.hub.MustPublish(event.Operation(Copied).Failed, err)
		return
	}
	c.mu.Lock()
	result := CopyResult{
		FolderID:       folder,
		TargetFolderID: target,
		Entries:        entries,
		Messages:       make([]Message, 0, len(entries)),
	}
	for _, entry := range entries {
		source, ok := c.messages[entry.SourceMessageID]
		if !ok || entry.TargetMessageID <= 0 {
			continue
		}
		if _, exists := c.messages[entry.TargetMessageID]; exists {
			c.log.Printf("copy of message %d: identity %d already cached", entry.SourceMessageID, entry.TargetMessageID)
			continue
		}
		clone := source.Clone()
		clone.ID = entry.TargetMessageID
		c.messages[clone.ID] = &clone
		c.location[clone.ID] = target
		c.folders[target] = append(c.folders[target], clone.ID)
		result.Messages = append(result.Messages, clone.Clone())
	}
	c.mu.Unlock()

	c.hub.MustPublish(Copied, result)
}

// Move asks the server to move messages of the current folder into target. Messages keep their identity.
func (c *Cache) Move(folder mailbox.FolderID, ids []mailbox.MessageID, target mailbox.FolderID) error {
	if target <= 0 {
		return fmt.Errorf("%w: target folder", lib.ErrMissingArgument)
	}
	c.mu.Lock()
	if err := c.checkCurrent(folder); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	if err := checkTransfer(folder, ids, target); err != nil {
		c.reject(Moved, mailbox.MessageMove, err)
		return nil
	}
	ids = unique(ids)

	params := mailbox.MessageParams{FolderID: folder, MessageIDs: ids, TargetFolderID: target}
	c.caller.Call(method(mailbox.MessageMove), params, func(outcome gateway.Outcome) {
		c.moveCompleted(folder, ids, target, outcome)
	})
	return nil
}

func (c *Cache) moveCompleted(folder mailbox.FolderID, ids []mailbox.MessageID, target mailbox.FolderID, outcome gateway.Outcome) {
	if outcome.Kind != gateway.Success {
		c.publishOutcome(Moved, outcome)
		return
	}
	c.mu.Lock()
	result := MoveResult{
		FolderID:       folder,
		TargetFolderID: target,
		MessageIDs:     make([]mailbox.MessageID, 0, len(ids)),
	}
	for _, id := range ids {
		if c.location[id] != folder {
			continue
		}
		c.unindex(folder, id)
		c.location[id] = target
		c.folders[target] = append(c.folders[target], id)
		result.MessageIDs = append(result.MessageIDs, id)
	}
	c.mu.Unlock()

	c.hub.MustPublish(Moved, result)
}

// Tag adds tags to messages of the current folder
func (c *Cache) Tag(folder mailbox.FolderID, ids []mailbox.MessageID, tags ...string) error {
	c.mu.Lock()
	if err := c.checkCurrent(folder); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			names = append(names, tag)
		}
	}
	if len(ids) == 0 {
		c.reject(Tagged, mailbox.MessageTag, lib.ErrNoMessages)
		return nil
	}
	if len(names) == 0 {
		c.reject(Tagged, mailbox.MessageTag, lib.ErrNoTags)
		return nil
	}
	ids = unique(ids)

	params := mailbox.MessageParams{FolderID: folder, MessageIDs: ids, Tags: names}
	c.caller.Call(method(mailbox.MessageTag), params, func(outcome gateway.Outcome) {
		c.tagCompleted(folder, ids, names, outcome)
	})
	return nil
}

func (c *Cache) tagCompleted(folder mailbox.FolderID, ids []mailbox.MessageID, names []string, outcome gateway.Outcome) {
	if outcome.Kind != gateway.Success {
		c.publishOutcome(Tagged, outcome)
		return
	}
	c.mu.Lock()
	change := TagChange{
		FolderID:   folder,
		MessageIDs: make([]mailbox.MessageID, 0, len(ids)),
		Tags:       make([]Tag, 0, len(names)),
		Messages:   make([]Message, 0, len(ids)),
	}
	for _, name := range names {
		change.Tags = appendTag(change.Tags, name)
	}
	for _, id := range ids {
		m, ok := c.messages[id]
		if !ok {
			continue
		}
		tags := make([]Tag, len(m.Tags), len(m.Tags)+len(change.Tags))
		copy(tags, m.Tags)
		for _, tag := range change.Tags {
			tags = appendTag(tags, tag.Name)
		}
		sortTags(tags)
		m.Tags = tags
		change.MessageIDs = append(change.MessageIDs, id)
		change.Messages = append(change.Messages, m.Clone())
	}
	c.mu.Unlock()

	c.hub.MustPublish(Tagged, change)
}

// GetMessage returns a copy of a cached message
func (c *Cache) GetMessage(id mailbox.MessageID) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.messages[id]
	if !ok {
		return Message{}, false
	}
	return m.Clone(), true
}

// GetMessages returns copies of the cached messages, skipping the unknown identities
func (c *Cache) GetMessages(ids []mailbox.MessageID) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	output := make([]Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := c.messages[id]; ok {
			output = append(output, m.Clone())
		}
	}
	return output
}

// Snapshot returns copies of the messages of a folder, in folder order
func (c *Cache) Snapshot(folder mailbox.FolderID) ([]Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.folders[folder]; !ok {
		return nil, false
	}
	return c.snapshot(folder), true
}

// Current is the last folder successfully loaded, or mailbox.NoFolder
func (c *Cache) Current() mailbox.FolderID {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

// FolderOf returns the folder index holding the message
func (c *Cache) FolderOf(id mailbox.MessageID) (mailbox.FolderID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	folder, ok := c.location[id]
	return folder, ok
}

// snapshot must be called with the lock held
func (c *Cache) snapshot(folder mailbox.FolderID) []Message {
	index := c.folders[folder]
	output := make([]Message, 0, len(index))
	for _, id := range index {
		output = append(output, c.messages[id].Clone())
	}
	return output
}

// unindex must be called with the lock held
func (c *Cache) unindex(folder mailbox.FolderID, id mailbox.MessageID) {
	index := c.folders[folder]
	for i, existing := range index {
		if existing == id {
			c.folders[folder] = append(index[:i:i], index[i+1:]...)
			return
		}
	}
}

// checkCurrent must be called with the lock held
func (c *Cache) checkCurrent(folder mailbox.FolderID) error {
	if folder != c.current || folder == mailbox.NoFolder {
		return fmt.Errorf("%w: folder %d, current folder %d", lib.ErrFolderMismatch, folder, c.current)
	}
	return nil
}

func checkTransfer(folder mailbox.FolderID, ids []mailbox.MessageID, target mailbox.FolderID) error {
	if target == folder {
		return lib.ErrSameFolder
	}
	if len(ids) == 0 {
		return lib.ErrNoMessages
	}
	return nil
}

func (c *Cache) reject(operation, rpc string, err error) {
	c.log.Printf("%s rejected: %s", method(rpc), err)
	c.hub.MustPublish(event.Operation(operation).Error, gateway.Reject(method(rpc), err))
}

func (c *Cache) publishOutcome(operation string, outcome gateway.Outcome) {
	channels := event.Operation(operation)
	if outcome.Kind == gateway.Rejected {
		c.hub.MustPublish(channels.Error, outcome.Err)
		return
	}
	c.hub.MustPublish(channels.Failed, outcome.Err)
}

func unique(ids []mailbox.MessageID) []mailbox.MessageID {
	seen := make(map[mailbox.MessageID]bool, len(ids))
	output := make([]mailbox.MessageID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		output = append(output, id)
	}
	return output
}
