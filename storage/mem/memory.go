package mem

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/creativeprojects/mailstate/lib"
	"github.com/creativeprojects/mailstate/mailbox"
)

type Backend struct {
	mu            sync.Mutex
	folders       map[mailbox.FolderID]*memFolder
	messages      map[mailbox.MessageID]*memMessage
	lastFolderID  mailbox.FolderID
	lastMessageID mailbox.MessageID
	log           lib.Logger
}

func New() *Backend {
	return NewWithLogger(nil)
}

func NewWithLogger(logger lib.Logger) *Backend {
	return &Backend{
		folders:  make(map[mailbox.FolderID]*memFolder),
		messages: make(map[mailbox.MessageID]*memMessage),
		log:      lib.OrNoLog(logger),
	}
}

func (m *Backend) DebugLogger(logger lib.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log = lib.OrNoLog(logger)
}

func (m *Backend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.folders = make(map[mailbox.FolderID]*memFolder)
	m.messages = make(map[mailbox.MessageID]*memMessage)
	return nil
}

func (m *Backend) ListFolders(context mailbox.Context) ([]mailbox.FolderInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]mailbox.FolderInfo, 0)
	for _, folder := range m.folders {
		if folder.context == context {
			list = append(list, folder.info)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (m *Backend) CreateFolder(context mailbox.Context, name string, parentID mailbox.FolderID) (mailbox.FolderInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if parentID != mailbox.NoFolder {
		if _, err := m.folder(context, parentID); err != nil {
			return mailbox.FolderInfo{}, err
		}
	}
	if m.siblingExists(context, parentID, name, mailbox.NoFolder) {
		return mailbox.FolderInfo{}, fmt.Errorf("%w: %q", lib.ErrFolderExists, name)
	}
	m.lastFolderID++
	info := mailbox.FolderInfo{
		ID:       m.lastFolderID,
		Name:     name,
		ParentID: parentID,
	}
	m.folders[info.ID] = &memFolder{context: context, info: info}
	m.log.Printf("folder created: context=%s id=%d name=%q parent=%d", context, info.ID, name, parentID)
	return info, nil
}

func (m *Backend) DeleteFolder(context mailbox.Context, id mailbox.FolderID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.folder(context, id); err != nil {
		return err
	}
	deleted := map[mailbox.FolderID]bool{id: true}
	// keep going until no folder has a deleted parent
	for found := true; found; {
		found = false
		for folderID, folder := range m.folders {
			if !deleted[folderID] && deleted[folder.info.ParentID] {
				deleted[folderID] = true
				found = true
			}
		}
	}
	for folderID := range deleted {
		delete(m.folders, folderID)
	}
	for messageID, message := range m.messages {
		if deleted[message.folderID] {
			delete(m.messages, messageID)
		}
	}
	m.log.Printf("folder deleted: context=%s id=%d (%d folders)", context, id, len(deleted))
	return nil
}

func (m *Backend) RenameFolder(context mailbox.Context, id mailbox.FolderID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	folder, err := m.folder(context, id)
	if err != nil {
		return err
	}
	if m.siblingExists(context, folder.info.ParentID, name, id) {
		return fmt.Errorf("%w: %q", lib.ErrFolderExists, name)
	}
	folder.info.Name = name
	return nil
}

func (m *Backend) MoveFolder(context mailbox.Context, id, targetID mailbox.FolderID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	folder, err := m.folder(context, id)
	if err != nil {
		return err
	}
	if targetID != mailbox.NoFolder {
		if _, err := m.folder(context, targetID); err != nil {
			return err
		}
	}
	if m.siblingExists(context, targetID, folder.info.Name, id) {
		return fmt.Errorf("%w: %q", lib.ErrFolderExists, folder.info.Name)
	}
	folder.info.ParentID = targetID
	return nil
}

func (m *Backend) ListMessages(folderID mailbox.FolderID) ([]mailbox.MessageInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.folders[folderID]; !ok {
		return nil, lib.ErrFolderNotFound
	}
	list := make([]mailbox.MessageInfo, 0)
	for _, message := range m.messages {
		if message.folderID == folderID {
			list = append(list, message.clone())
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (m *Backend) PutMessage(folderID mailbox.FolderID, info mailbox.MessageInfo) (mailbox.MessageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.folders[folderID]; !ok {
		return 0, lib.ErrFolderNotFound
	}
	m.lastMessageID++
	info.ID = m.lastMessageID
	message := &memMessage{folderID: folderID, info: info}
	message.info = message.clone()
	m.messages[info.ID] = message
	return info.ID, nil
}

func (m *Backend) DeleteMessages(folderID mailbox.FolderID, ids []mailbox.MessageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	messages, err := m.selection(folderID, ids)
	if err != nil {
		return err
	}
	for _, message := range messages {
		delete(m.messages, message.info.ID)
	}
	return nil
}

func (m *Backend) FlagMessages(folderID mailbox.FolderID, ids []mailbox.MessageID, flag string, remove bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	messages, err := m.selection(folderID, ids)
	if err != nil {
		return err
	}
	for _, message := range messages {
		if remove {
			message.info.Flags = lib.RemoveFlag(message.info.Flags, flag)
			continue
		}
		message.info.Flags = lib.AddFlag(message.info.Flags, flag)
	}
	return nil
}

func (m *Backend) TagMessages(folderID mailbox.FolderID, ids []mailbox.MessageID, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	messages, err := m.selection(folderID, ids)
	if err != nil {
		return err
	}
	for _, message := range messages {
		message.info.Tags = lib.AddTags(message.info.Tags, tags)
	}
	return nil
}

func (m *Backend) CopyMessages(folderID mailbox.FolderID, ids []mailbox.MessageID, targetID mailbox.FolderID) ([]mailbox.CopyEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.folders[targetID]; !ok {
		return nil, lib.ErrFolderNotFound
	}
	messages, err := m.selection(folderID, ids)
	if err != nil {
		return nil, err
	}
	entries := make([]mailbox.CopyEntry, 0, len(messages))
	for _, message := range messages {
		m.lastMessageID++
		info := message.clone()
		info.ID = m.lastMessageID
		m.messages[info.ID] = &memMessage{folderID: targetID, info: info}
		entries = append(entries, mailbox.CopyEntry{
			SourceMessageID: message.info.ID,
			TargetMessageID: info.ID,
		})
	}
	return entries, nil
}

func (m *Backend) MoveMessages(folderID mailbox.FolderID, ids []mailbox.MessageID, targetID mailbox.FolderID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.folders[targetID]; !ok {
		return lib.ErrFolderNotFound
	}
	messages, err := m.selection(folderID, ids)
	if err != nil {
		return err
	}
	for _, message := range messages {
		message.folderID = targetID
	}
	return nil
}

// folder must be called with the lock held
func (m *Backend) folder(context mailbox.Context, id mailbox.FolderID) (*memFolder, error) {
	folder, ok := m.folders[id]
	if !ok || folder.context != context {
		return nil, fmt.Errorf("%w: %d", lib.ErrFolderNotFound, id)
	}
	return folder, nil
}

// siblingExists must be called with the lock held
func (m *Backend) siblingExists(context mailbox.Context, parentID mailbox.FolderID, name string, except mailbox.FolderID) bool {
	for id, folder := range m.folders {
		if id != except && folder.context == context && folder.info.ParentID == parentID && strings.EqualFold(folder.info.Name, name) {
			return true
		}
	}
	return false
}

// selection returns the messages of the folder, failing when one of them is not there.
// It must be called with the lock held.
func (m *Backend) selection(folderID mailbox.FolderID, ids []mailbox.MessageID) ([]*memMessage, error) {
	if _, ok := m.folders[folderID]; !ok {
		return nil, lib.ErrFolderNotFound
	}
	messages := make([]*memMessage, 0, len(ids))
	for _, id := range ids {
		message, ok := m.messages[id]
		if !ok || message.folderID != folderID {
			return nil, fmt.Errorf("%w: %d", lib.ErrMessageNotFound, id)
		}
		messages = append(messages, message)
	}
	return messages, nil
}
