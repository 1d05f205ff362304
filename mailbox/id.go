package mailbox

import "strconv"

// FolderID is the server-assigned identity of a folder. Valid identities are positive.
type FolderID int64

// MessageID is the server-assigned identity of a message. Valid identities are positive.
type MessageID int64

// NoFolder stands for "no parent" (root level)
const NoFolder FolderID = 0

func (i FolderID) IsZero() bool {
	return i == NoFolder
}

func (i FolderID) String() string {
	return strconv.FormatInt(int64(i), 10)
}

func (i MessageID) String() string {
	return strconv.FormatInt(int64(i), 10)
}

func ParseFolderID(value string) (FolderID, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return NoFolder, err
	}
	return FolderID(id), nil
}

func ParseMessageIDs(values []string) ([]MessageID, error) {
	ids := make([]MessageID, 0, len(values))
	for _, value := range values {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, MessageID(id))
	}
	return ids, nil
}
