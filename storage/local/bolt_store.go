package local

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creativeprojects/mailstate/lib"
	"github.com/creativeprojects/mailstate/mailbox"
	bolt "go.etcd.io/bbolt"
)

const (
	metadataBucket  = "metadata"
	foldersBucket   = "folders"
	messagesBucket  = "messages"
	versionKey      = "version"
	boltFileVersion = 1
)

type folderRecord struct {
	Context mailbox.Context
	Info    mailbox.FolderInfo
}

type messageRecord struct {
	FolderID mailbox.FolderID
	Info     mailbox.MessageInfo
}

type BoltStore struct {
	dbFile string
	db     *bolt.DB
	log    lib.Logger
}

func NewBoltStore(filename string) (*BoltStore, error) {
	return NewBoltStoreWithLogger(filename, nil)
}

func NewBoltStoreWithLogger(filename string, logger lib.Logger) (*BoltStore, error) {
	options := *bolt.DefaultOptions
	options.Timeout = 10 * time.Second

	err := os.MkdirAll(filepath.Dir(filename), 0700)
	if err != nil {
		return nil, fmt.Errorf("cannot open %q: %w", filename, err)
	}

	db, err := bolt.Open(filename, 0600, &options)
	if err != nil {
		return nil, err
	}

	store := &BoltStore{
		dbFile: filename,
		db:     db,
		log:    lib.OrNoLog(logger),
	}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *BoltStore) init() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{metadataBucket, foldersBucket, messagesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		version := boltFileVersion
		data, err := SerializeObject(&version)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(metadataBucket)).Put([]byte(versionKey), data)
	})
}

func (s *BoltStore) DebugLogger(logger lib.Logger) {
	s.log = lib.OrNoLog(logger)
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Backup copies the database into filename
func (s *BoltStore) Backup(filename string) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.CopyFile(filename, 0600)
	})
}

func (s *BoltStore) ListFolders(context mailbox.Context) ([]mailbox.FolderInfo, error) {
	list := make([]mailbox.FolderInfo, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return forEachFolder(tx, func(record *folderRecord) error {
			if record.Context == context {
				list = append(list, record.Info)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *BoltStore) CreateFolder(context mailbox.Context, name string, parentID mailbox.FolderID) (mailbox.FolderInfo, error) {
	var info mailbox.FolderInfo
	err := s.db.Update(func(tx *bolt.Tx) error {
		if parentID != mailbox.NoFolder {
			if _, err := getFolder(tx, context, parentID); err != nil {
				return err
			}
		}
		if err := checkSibling(tx, context, parentID, name, mailbox.NoFolder); err != nil {
			return err
		}
		bucket := tx.Bucket([]byte(foldersBucket))
		sequence, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("cannot get next folder ID: %w", err)
		}
		info = mailbox.FolderInfo{
			ID:       mailbox.FolderID(sequence),
			Name:     name,
			ParentID: parentID,
		}
		return putFolder(tx, &folderRecord{Context: context, Info: info})
	})
	if err != nil {
		return mailbox.FolderInfo{}, err
	}
	s.log.Printf("folder created: context=%s id=%d name=%q parent=%d", context, info.ID, name, parentID)
	return info, nil
}

func (s *BoltStore) DeleteFolder(context mailbox.Context, id mailbox.FolderID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := getFolder(tx, context, id); err != nil {
			return err
		}
		children := make(map[mailbox.FolderID][]mailbox.FolderID)
		err := forEachFolder(tx, func(record *folderRecord) error {
			if record.Context == context {
				children[record.Info.ParentID] = append(children[record.Info.ParentID], record.Info.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		deleted := make(map[mailbox.FolderID]bool)
		stack := []mailbox.FolderID{id}
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if deleted[current] {
				continue
			}
			deleted[current] = true
			stack = append(stack, children[current]...)
		}
		folders := tx.Bucket([]byte(foldersBucket))
		for folderID := range deleted {
			if err := folders.Delete(SerializeID(folderID)); err != nil {
				return err
			}
		}
		// collect the keys first: a bucket cannot be modified inside ForEach
		keys := make([][]byte, 0)
		messages := tx.Bucket([]byte(messagesBucket))
		err = messages.ForEach(func(key, value []byte) error {
			record, err := DeserializeObject[messageRecord](value)
			if err != nil {
				return err
			}
			if deleted[record.FolderID] {
				keys = append(keys, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := messages.Delete(key); err != nil {
				return err
			}
		}
		s.log.Printf("folder deleted: context=%s id=%d (%d folders, %d messages)", context, id, len(deleted), len(keys))
		return nil
	})
}

func (s *BoltStore) RenameFolder(context mailbox.Context, id mailbox.FolderID, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		record, err := getFolder(tx, context, id)
		if err != nil {
			return err
		}
		if err := checkSibling(tx, context, record.Info.ParentID, name, id); err != nil {
			return err
		}
		record.Info.Name = name
		return putFolder(tx, record)
	})
}

func (s *BoltStore) MoveFolder(context mailbox.Context, id, targetID mailbox.FolderID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		record, err := getFolder(tx, context, id)
		if err != nil {
			return err
		}
		if targetID != mailbox.NoFolder {
			if _, err := getFolder(tx, context, targetID); err != nil {
				return err
			}
		}
		if err := checkSibling(tx, context, targetID, record.Info.Name, id); err != nil {
			return err
		}
		record.Info.ParentID = targetID
		return putFolder(tx, record)
	})
}

func (s *BoltStore) ListMessages(folderID mailbox.FolderID) ([]mailbox.MessageInfo, error) {
	list := make([]mailbox.MessageInfo, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := folderExists(tx, folderID); err != nil {
			return err
		}
		return tx.Bucket([]byte(messagesBucket)).ForEach(func(key, value []byte) error {
			record, err := DeserializeObject[messageRecord](value)
			if err != nil {
				return err
			}
			if record.FolderID == folderID {
				list = append(list, record.Info)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *BoltStore) PutMessage(folderID mailbox.FolderID, info mailbox.MessageInfo) (mailbox.MessageID, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := folderExists(tx, folderID); err != nil {
			return err
		}
		sequence, err := tx.Bucket([]byte(messagesBucket)).NextSequence()
		if err != nil {
			return fmt.Errorf("cannot get next message ID: %w", err)
		}
		info.ID = mailbox.MessageID(sequence)
		return putMessage(tx, &messageRecord{FolderID: folderID, Info: info})
	})
	if err != nil {
		return 0, err
	}
	s.log.Printf("message saved: folder=%d id=%d size=%d flags=%+v", folderID, info.ID, info.Size, info.Flags)
	return info.ID, nil
}

func (s *BoltStore) DeleteMessages(folderID mailbox.FolderID, ids []mailbox.MessageID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		records, err := selection(tx, folderID, ids)
		if err != nil {
			return err
		}
		bucket := tx.Bucket([]byte(messagesBucket))
		for _, record := range records {
			if err := bucket.Delete(SerializeID(record.Info.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) FlagMessages(folderID mailbox.FolderID, ids []mailbox.MessageID, flag string, remove bool) error {
	return s.update(folderID, ids, func(record *messageRecord) {
		if remove {
			record.Info.Flags = lib.RemoveFlag(record.Info.Flags, flag)
			return
		}
		record.Info.Flags = lib.AddFlag(record.Info.Flags, flag)
	})
}

func (s *BoltStore) TagMessages(folderID mailbox.FolderID, ids []mailbox.MessageID, tags []string) error {
	return s.update(folderID, ids, func(record *messageRecord) {
		record.Info.Tags = lib.AddTags(record.Info.Tags, tags)
	})
}

func (s *BoltStore) CopyMessages(folderID mailbox.FolderID, ids []mailbox.MessageID, targetID mailbox.FolderID) ([]mailbox.CopyEntry, error) {
	entries := make([]mailbox.CopyEntry, 0, len(ids))
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := folderExists(tx, targetID); err != nil {
			return err
		}
		records, err := selection(tx, folderID, ids)
		if err != nil {
			return err
		}
		bucket := tx.Bucket([]byte(messagesBucket))
		for _, record := range records {
			sequence, err := bucket.NextSequence()
			if err != nil {
				return fmt.Errorf("cannot get next message ID: %w", err)
			}
			entry := mailbox.CopyEntry{
				SourceMessageID: record.Info.ID,
				TargetMessageID: mailbox.MessageID(sequence),
			}
			record.FolderID = targetID
			record.Info.ID = entry.TargetMessageID
			if err := putMessage(tx, record); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *BoltStore) MoveMessages(folderID mailbox.FolderID, ids []mailbox.MessageID, targetID mailbox.FolderID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := folderExists(tx, targetID); err != nil {
			return err
		}
		records, err := selection(tx, folderID, ids)
		if err != nil {
			return err
		}
		for _, record := range records {
			record.FolderID = targetID
			if err := putMessage(tx, record); err != nil {
				return err
			}
		}
		return nil
	})
}

// update applies change to every selected message in a single transaction
func (s *BoltStore) update(folderID mailbox.FolderID, ids []mailbox.MessageID, change func(record *messageRecord)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		records, err := selection(tx, folderID, ids)
		if err != nil {
			return err
		}
		for _, record := range records {
			change(record)
			if err := putMessage(tx, record); err != nil {
				return err
			}
		}
		return nil
	})
}

func forEachFolder(tx *bolt.Tx, fn func(record *folderRecord) error) error {
	return tx.Bucket([]byte(foldersBucket)).ForEach(func(key, value []byte) error {
		record, err := DeserializeObject[folderRecord](value)
		if err != nil {
			return err
		}
		return fn(record)
	})
}

func getFolder(tx *bolt.Tx, context mailbox.Context, id mailbox.FolderID) (*folderRecord, error) {
	data := tx.Bucket([]byte(foldersBucket)).Get(SerializeID(id))
	if data == nil {
		return nil, fmt.Errorf("%w: %d", lib.ErrFolderNotFound, id)
	}
	record, err := DeserializeObject[folderRecord](data)
	if err != nil {
		return nil, err
	}
	if record.Context != context {
		return nil, fmt.Errorf("%w: %d", lib.ErrFolderNotFound, id)
	}
	return record, nil
}

func folderExists(tx *bolt.Tx, id mailbox.FolderID) error {
	if tx.Bucket([]byte(foldersBucket)).Get(SerializeID(id)) == nil {
		return fmt.Errorf("%w: %d", lib.ErrFolderNotFound, id)
	}
	return nil
}

func putFolder(tx *bolt.Tx, record *folderRecord) error {
	data, err := SerializeObject(record)
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(foldersBucket)).Put(SerializeID(record.Info.ID), data)
}

func putMessage(tx *bolt.Tx, record *messageRecord) error {
	data, err := SerializeObject(record)
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(messagesBucket)).Put(SerializeID(record.Info.ID), data)
}

func checkSibling(tx *bolt.Tx, context mailbox.Context, parentID mailbox.FolderID, name string, except mailbox.FolderID) error {
	return forEachFolder(tx, func(record *folderRecord) error {
		if record.Info.ID != except && record.Context == context && record.Info.ParentID == parentID && strings.EqualFold(record.Info.Name, name) {
			return fmt.Errorf("%w: %q", lib.ErrFolderExists, name)
		}
		return nil
	})
}

// selection loads the messages of the folder, failing when one of them is not there
func selection(tx *bolt.Tx, folderID mailbox.FolderID, ids []mailbox.MessageID) ([]*messageRecord, error) {
	if err := folderExists(tx, folderID); err != nil {
		return nil, err
	}
	bucket := tx.Bucket([]byte(messagesBucket))
	records := make([]*messageRecord, 0, len(ids))
	for _, id := range ids {
		data := bucket.Get(SerializeID(id))
		if data == nil {
			return nil, fmt.Errorf("%w: %d", lib.ErrMessageNotFound, id)
		}
		record, err := DeserializeObject[messageRecord](data)
		if err != nil {
			return nil, err
		}
		if record.FolderID != folderID {
			return nil, fmt.Errorf("%w: %d", lib.ErrMessageNotFound, id)
		}
		records = append(records, record)
	}
	return records, nil
}
