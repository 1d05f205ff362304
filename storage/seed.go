package storage

import (
	"fmt"
	"time"

	"github.com/creativeprojects/mailstate/lib"
	"github.com/creativeprojects/mailstate/mailbox"
)

// Progresser is notified after each message
type Progresser interface {
	Increment()
}

// GenerateMessages fills a folder with random messages. pbar can be nil.
func GenerateMessages(backend Backend, folderID mailbox.FolderID, count, minSize, maxSize int, pbar Progresser) error {
	from := time.Date(2010, 1, 1, 12, 0, 0, 0, time.Local)
	for i := 1; i <= count; i++ {
		received := lib.GenerateDateFrom(from)
		info := mailbox.MessageInfo{
			Subject:    lib.GenerateSubject(i),
			From:       lib.GenerateAddress(),
			Flags:      lib.GenerateFlags(4),
			Tags:       lib.GenerateTags(3),
			Attachment: i%5 == 0,
			Size:       lib.GenerateSize(minSize, maxSize),
			Received:   received.Unix(),
			Arrived:    received.Add(time.Duration(i) * time.Second).Unix(),
		}
		if _, err := backend.PutMessage(folderID, info); err != nil {
			return fmt.Errorf("cannot save message %d: %w", i, err)
		}
		if pbar != nil {
			pbar.Increment()
		}
	}
	return nil
}
