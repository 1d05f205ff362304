package test

import (
	"testing"
	"time"

	"github.com/creativeprojects/mailstate/lib"
	"github.com/creativeprojects/mailstate/mailbox"
	"github.com/creativeprojects/mailstate/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleMessage = mailbox.MessageInfo{
	Subject:    "A little message, just for you",
	From:       "contact@example.org",
	Flags:      []string{lib.FlagSeen},
	Tags:       []string{"Personal"},
	Attachment: true,
	Size:       1234,
	Received:   time.Date(2020, 10, 20, 12, 11, 0, 0, time.UTC).Unix(),
	Arrived:    time.Date(2020, 10, 20, 12, 12, 0, 0, time.UTC).Unix(),
}

// RunTestsOnBackend is the unit tests runner called by the concrete implementations of storage.Backend.
// It expects an empty backend.
func RunTestsOnBackend(t *testing.T, backend storage.Backend) {
	require.NotNil(t, backend)

	var inbox, work, projects, archive mailbox.FolderInfo
	var first, second mailbox.MessageID

	t.Run("ListEmpty", func(t *testing.T) {
		list, err := backend.ListFolders(mailbox.Mail)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("CreateFolders", func(t *testing.T) {
		inbox = createFolder(t, backend, mailbox.Mail, "inbox", mailbox.NoFolder)
		work = createFolder(t, backend, mailbox.Mail, "Work", mailbox.NoFolder)
		projects = createFolder(t, backend, mailbox.Mail, "Projects", work.ID)
		archive = createFolder(t, backend, mailbox.Mail, "Archive", projects.ID)

		list, err := backend.ListFolders(mailbox.Mail)
		require.NoError(t, err)
		assert.ElementsMatch(t, []mailbox.FolderInfo{inbox, work, projects, archive}, list)
	})

	t.Run("FolderIDsAreUniqueAcrossContexts", func(t *testing.T) {
		all := createFolder(t, backend, mailbox.Contacts, "all", mailbox.NoFolder)
		assert.NotContains(t, []mailbox.FolderID{inbox.ID, work.ID, projects.ID, archive.ID}, all.ID)

		list, err := backend.ListFolders(mailbox.Contacts)
		require.NoError(t, err)
		assert.Equal(t, []mailbox.FolderInfo{all}, list)

		// a folder of another context is not visible
		err = backend.RenameFolder(mailbox.Contacts, work.ID, "Job")
		assert.ErrorIs(t, err, lib.ErrFolderNotFound)
	})

	t.Run("CreateExistingFolder", func(t *testing.T) {
		_, err := backend.CreateFolder(mailbox.Mail, "WORK", mailbox.NoFolder)
		assert.ErrorIs(t, err, lib.ErrFolderExists)
		// same name under another parent is fine
		createFolder(t, backend, mailbox.Mail, "Work", projects.ID)
	})

	t.Run("CreateFolderInMissingParent", func(t *testing.T) {
		_, err := backend.CreateFolder(mailbox.Mail, "Lost", 9999)
		assert.ErrorIs(t, err, lib.ErrFolderNotFound)
	})

	t.Run("RenameFolder", func(t *testing.T) {
		require.NoError(t, backend.RenameFolder(mailbox.Mail, projects.ID, "Clients"))
		assert.ErrorIs(t, backend.RenameFolder(mailbox.Mail, work.ID, "inbox"), lib.ErrFolderExists)
		projects.Name = "Clients"
		assert.Contains(t, listFolders(t, backend, mailbox.Mail), projects)
	})

	t.Run("MoveFolder", func(t *testing.T) {
		require.NoError(t, backend.MoveFolder(mailbox.Mail, archive.ID, mailbox.NoFolder))
		archive.ParentID = mailbox.NoFolder
		assert.Contains(t, listFolders(t, backend, mailbox.Mail), archive)
		assert.ErrorIs(t, backend.MoveFolder(mailbox.Mail, archive.ID, 9999), lib.ErrFolderNotFound)
	})

	t.Run("PutMessages", func(t *testing.T) {
		var err error
		first, err = backend.PutMessage(inbox.ID, sampleMessage)
		require.NoError(t, err)
		second, err = backend.PutMessage(inbox.ID, sampleMessage)
		require.NoError(t, err)
		assert.NotZero(t, first)
		assert.Greater(t, second, first)

		_, err = backend.PutMessage(9999, sampleMessage)
		assert.ErrorIs(t, err, lib.ErrFolderNotFound)

		messages := listMessages(t, backend, inbox.ID)
		require.Len(t, messages, 2)
		expected := sampleMessage
		expected.ID = first
		assert.Equal(t, expected, messages[0])
	})

	t.Run("FlagMessages", func(t *testing.T) {
		require.NoError(t, backend.FlagMessages(inbox.ID, []mailbox.MessageID{first}, lib.FlagSeen, true))
		require.NoError(t, backend.FlagMessages(inbox.ID, []mailbox.MessageID{first, second}, lib.FlagFlagged, false))

		messages := listMessages(t, backend, inbox.ID)
		assert.ElementsMatch(t, []string{lib.FlagFlagged}, messages[0].Flags)
		assert.ElementsMatch(t, []string{lib.FlagSeen, lib.FlagFlagged}, messages[1].Flags)

		err := backend.FlagMessages(work.ID, []mailbox.MessageID{first}, lib.FlagSeen, false)
		assert.ErrorIs(t, err, lib.ErrMessageNotFound)
	})

	t.Run("TagMessages", func(t *testing.T) {
		require.NoError(t, backend.TagMessages(inbox.ID, []mailbox.MessageID{first}, []string{"personal", "Urgent"}))
		messages := listMessages(t, backend, inbox.ID)
		assert.Equal(t, []string{"Personal", "Urgent"}, messages[0].Tags)
		assert.Equal(t, []string{"Personal"}, messages[1].Tags)
	})

	t.Run("CopyMessages", func(t *testing.T) {
		entries, err := backend.CopyMessages(inbox.ID, []mailbox.MessageID{first}, work.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, first, entries[0].SourceMessageID)
		assert.NotEqual(t, first, entries[0].TargetMessageID)
		assert.NotEqual(t, second, entries[0].TargetMessageID)

		copied := listMessages(t, backend, work.ID)
		require.Len(t, copied, 1)
		assert.Equal(t, entries[0].TargetMessageID, copied[0].ID)
		assert.Equal(t, sampleMessage.Subject, copied[0].Subject)
		assert.Len(t, listMessages(t, backend, inbox.ID), 2)
	})

	t.Run("MoveMessages", func(t *testing.T) {
		require.NoError(t, backend.MoveMessages(inbox.ID, []mailbox.MessageID{second}, archive.ID))
		moved := listMessages(t, backend, archive.ID)
		require.Len(t, moved, 1)
		assert.Equal(t, second, moved[0].ID)
		assert.Len(t, listMessages(t, backend, inbox.ID), 1)

		err := backend.MoveMessages(inbox.ID, []mailbox.MessageID{second}, work.ID)
		assert.ErrorIs(t, err, lib.ErrMessageNotFound)
	})

	t.Run("DeleteMessages", func(t *testing.T) {
		require.NoError(t, backend.DeleteMessages(inbox.ID, []mailbox.MessageID{first}))
		assert.Empty(t, listMessages(t, backend, inbox.ID))
		assert.ErrorIs(t, backend.DeleteMessages(inbox.ID, []mailbox.MessageID{first}), lib.ErrMessageNotFound)
	})

	t.Run("DeleteFolderCascades", func(t *testing.T) {
		require.NoError(t, backend.DeleteFolder(mailbox.Mail, work.ID))
		list := listFolders(t, backend, mailbox.Mail)
		assert.ElementsMatch(t, []mailbox.FolderInfo{inbox, archive}, list)

		_, err := backend.ListMessages(work.ID)
		assert.ErrorIs(t, err, lib.ErrFolderNotFound)
		assert.ErrorIs(t, backend.DeleteFolder(mailbox.Mail, work.ID), lib.ErrFolderNotFound)
		// the moved message is still there
		assert.Len(t, listMessages(t, backend, archive.ID), 1)
	})
}

func createFolder(t *testing.T, backend storage.Backend, context mailbox.Context, name string, parentID mailbox.FolderID) mailbox.FolderInfo {
	t.Helper()

	info, err := backend.CreateFolder(context, name, parentID)
	require.NoError(t, err)
	assert.Greater(t, info.ID, mailbox.NoFolder)
	assert.Equal(t, name, info.Name)
	assert.Equal(t, parentID, info.ParentID)
	return info
}

func listFolders(t *testing.T, backend storage.Backend, context mailbox.Context) []mailbox.FolderInfo {
	t.Helper()

	list, err := backend.ListFolders(context)
	require.NoError(t, err)
	return list
}

func listMessages(t *testing.T, backend storage.Backend, folderID mailbox.FolderID) []mailbox.MessageInfo {
	t.Helper()

	list, err := backend.ListMessages(folderID)
	require.NoError(t, err)
	return list
}
