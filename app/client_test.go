package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/creativeprojects/mailstate/cfg"
	"github.com/creativeprojects/mailstate/collection"
	"github.com/creativeprojects/mailstate/event"
	"github.com/creativeprojects/mailstate/folder"
	"github.com/creativeprojects/mailstate/lib"
	"github.com/creativeprojects/mailstate/mailbox"
	"github.com/creativeprojects/mailstate/message"
	"github.com/creativeprojects/mailstate/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, options Options) (*Client, *Connection) {
	t.Helper()
	conn, err := Open(cfg.Account{Type: cfg.Memory}, options.Reserved, lib.NewTestLogger(t, "storage"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	options.Logger = lib.NewTestLogger(t, "client")
	client, err := NewClient(conn.Transport, options)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client, conn
}

func TestClientSession(t *testing.T) {
	client, conn := newClient(t, Options{
		Synchronous: true,
		Templates: view.MapSource{
			"list": `{{range .}}{{template "row" .}}{{end}}`,
			"row":  `[{{.Subject}}]`,
		},
	})

	_, err := client.PermanentFolder(mailbox.Mail, "inbox")
	assert.ErrorIs(t, err, lib.ErrFolderNotFound)

	folders, err := client.Folders(mailbox.Mail)
	require.NoError(t, err)
	same, err := client.Folders(mailbox.Mail)
	require.NoError(t, err)
	assert.Same(t, folders, same)

	_, err = event.Await(folders.Hub(), folder.Loaded, time.Second, func() error {
		folders.Load(folder.Tree)
		return nil
	})
	require.NoError(t, err)

	inbox, err := client.PermanentFolder(mailbox.Mail, "inbox")
	require.NoError(t, err)
	for _, subject := range []string{"one", "two"} {
		_, err = conn.Backend.PutMessage(inbox, mailbox.MessageInfo{Subject: subject})
		require.NoError(t, err)
	}

	payload, err := event.Await(client.Messages().Hub(), message.Loaded, time.Second, func() error {
		return client.Messages().Load(inbox)
	})
	require.NoError(t, err)
	messages := payload.(message.Listing).Messages
	require.Len(t, messages, 2)

	output, err := client.Views().Fill(context.Background(), "list", messages)
	require.NoError(t, err)
	assert.Contains(t, output, "[one]")
	assert.Contains(t, output, "[two]")

	// the contacts store shares the directory
	contacts, err := client.Folders(mailbox.Contacts)
	require.NoError(t, err)
	contacts.Load(folder.Tree)
	_, err = client.PermanentFolder(mailbox.Contacts, "people")
	assert.NoError(t, err)

	_, err = client.Folders(mailbox.Context("calendar"))
	assert.ErrorIs(t, err, lib.ErrUnknownContext)
}

func TestClientTabs(t *testing.T) {
	client, _ := newClient(t, Options{MaxTabs: 2})

	_, err := client.ActiveTab()
	assert.ErrorIs(t, err, lib.ErrCollectionEmpty)

	recorder := event.NewRecorder(10)
	require.NoError(t, client.Tabs().Hub().Subscribe(collection.Added, recorder))

	inbox, err := client.OpenTab("Inbox", mailbox.Mail, 1)
	require.NoError(t, err)
	people, err := client.OpenTab("People", mailbox.Contacts, 7)
	require.NoError(t, err)
	_, err = client.OpenTab("Logs", mailbox.Logs, 9)
	assert.ErrorIs(t, err, lib.ErrCollectionFull)
	_, err = client.OpenTab("Calendar", mailbox.Context("calendar"), 1)
	assert.ErrorIs(t, err, lib.ErrUnknownContext)

	active, err := client.ActiveTab()
	require.NoError(t, err)
	assert.Same(t, people, active)

	require.NoError(t, client.Focus(inbox))
	active, err = client.ActiveTab()
	require.NoError(t, err)
	assert.Same(t, inbox, active)

	require.NoError(t, client.CloseTab(inbox))
	assert.ErrorIs(t, client.CloseTab(inbox), lib.ErrEntityNotFound)
	assert.ErrorIs(t, client.Focus(inbox), lib.ErrEntityNotFound)
	assert.Equal(t, 1, client.Tabs().Count())

	// two opened and one focused
	assert.Equal(t, 3, recorder.Len())
}

func TestOpenAccounts(t *testing.T) {
	reserved := folder.Reserved{mailbox.Mail: {"inbox"}}

	conn, err := Open(cfg.Account{Type: cfg.Local, File: filepath.Join(t.TempDir(), "local.db")}, reserved, nil)
	require.NoError(t, err)
	require.NotNil(t, conn.Dispatcher)
	list, err := conn.Backend.ListFolders(mailbox.Mail)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "inbox", list[0].Name)
	require.NoError(t, conn.Close())

	conn, err = Open(cfg.Account{Type: cfg.Remote, ServerURL: "localhost:8025"}, reserved, nil)
	require.NoError(t, err)
	assert.Nil(t, conn.Backend)
	assert.NoError(t, conn.Close())

	_, err = Open(cfg.Account{Type: cfg.Remote}, reserved, nil)
	assert.Error(t, err)

	_, err = OpenBackend(cfg.Account{Type: cfg.Remote, ServerURL: "localhost:8025"}, nil)
	assert.Error(t, err)
}
