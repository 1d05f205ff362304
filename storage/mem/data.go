package mem

import "github.com/creativeprojects/mailstate/mailbox"

type memFolder struct {
	context mailbox.Context
	info    mailbox.FolderInfo
}

type memMessage struct {
	folderID mailbox.FolderID
	info     mailbox.MessageInfo
}

func (m *memMessage) clone() mailbox.MessageInfo {
	info := m.info
	info.Flags = append([]string{}, m.info.Flags...)
	info.Tags = append([]string{}, m.info.Tags...)
	return info
}
